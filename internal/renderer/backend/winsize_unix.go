//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package backend

import "golang.org/x/sys/unix"

// cellPixelSize divides the window's pixel size by its cell count.
// Terminals that do not fill in the pixel fields report zeros.
func cellPixelSize(fd int) (int, int) {
	ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 || ws.Row == 0 {
		return 0, 0
	}
	return int(ws.Xpixel) / int(ws.Col), int(ws.Ypixel) / int(ws.Row)
}
