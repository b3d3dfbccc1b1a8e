//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package app

import "golang.org/x/sys/unix"

// suspendProcess stops the process group until the shell continues it.
func suspendProcess() error {
	return unix.Kill(0, unix.SIGTSTP)
}
