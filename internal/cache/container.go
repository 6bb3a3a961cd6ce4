package cache

import (
	"bytes"
	"fmt"
	"os"
)

// containerMagic is the leading bytes of every container the setup phase
// writes. A file without it is not ours, or was truncated mid-write.
var containerMagic = []byte("scene_id:")

// verifyContainer checks the persisted container's structural integrity:
// present, non-empty, carrying the expected header, openable for writing,
// and not locked by another process. A container left inconsistent by a
// crashed writer fails here and the setup phase reruns from scratch rather
// than repairing in place.
func verifyContainer(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cache: container missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("cache: container %s is empty", path)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("cache: container not writable: %w", err)
	}
	defer f.Close()
	header := make([]byte, len(containerMagic))
	if _, err := f.Read(header); err != nil || !bytes.Equal(header, containerMagic) {
		return fmt.Errorf("cache: container %s has an unrecognized header", path)
	}
	if err := tryLock(f); err != nil {
		return fmt.Errorf("cache: container locked: %w", err)
	}
	return nil
}
