//go:build !windows

package lock

import (
	"os"

	"golang.org/x/sys/unix"
)

// tryLock attempts a non-blocking flock. Where the host provides only
// exclusive advisory locks, shared requests are indistinguishable from
// exclusive ones at the syscall level, but flock itself supports LOCK_SH
// natively on Unix, so the distinction is honored here.
func tryLock(f *os.File, mode Mode) (bool, error) {
	op := unix.LOCK_EX
	if mode == Shared {
		op = unix.LOCK_SH
	}

	err := unix.Flock(int(f.Fd()), op|unix.LOCK_NB)
	if err == nil {
		return true, nil
	}
	if err == unix.EWOULDBLOCK || err == unix.EAGAIN {
		return false, nil
	}
	return false, err
}

func unlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
