//go:build windows

package lock

import (
	"os"

	"golang.org/x/sys/windows"
)

// tryLock attempts a non-blocking LockFileEx. Windows has no native shared
// advisory lock distinct from exclusive at this granularity, so shared
// requests are treated as exclusive, matching the host's actual guarantee.
func tryLock(f *os.File, mode Mode) (bool, error) {
	var flags uint32 = windows.LOCKFILE_FAIL_IMMEDIATELY | windows.LOCKFILE_EXCLUSIVE_LOCK

	ol := new(windows.Overlapped)
	err := windows.LockFileEx(windows.Handle(f.Fd()), flags, 0, 1, 0, ol)
	if err == nil {
		return true, nil
	}
	if err == windows.ERROR_IO_PENDING || err == windows.ERROR_LOCK_VIOLATION {
		return false, nil
	}
	return false, err
}

func unlock(f *os.File) error {
	ol := new(windows.Overlapped)
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, ol)
}
