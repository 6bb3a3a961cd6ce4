//go:build !windows

package cache

import (
	"os"
	"syscall"
)

// tryLock takes and immediately releases a non-blocking exclusive flock so a
// container held open by a live solver reports as locked instead of reusable.
func tryLock(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		return err
	}
	return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
