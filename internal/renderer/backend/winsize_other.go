//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package backend

func cellPixelSize(int) (int, int) {
	return 0, 0
}
