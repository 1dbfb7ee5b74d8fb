package segment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/uuid"
)

// dirLock is an exclusive writer lock for a segment directory. The lock file
// records the owner id and pid so a stale or competing writer is
// identifiable from the error message.
type dirLock struct {
	path  string
	owner string
}

func acquireDirLock(path string) (*dirLock, error) {
	owner := uuid.NewString()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			held, _ := os.ReadFile(path)
			return nil, fmt.Errorf("%w: %s held by %s", ErrLocked, path, string(held))
		}
		return nil, fmt.Errorf("segment: acquire lock %s: %w", path, err)
	}
	fmt.Fprintf(f, "%s pid=%d", owner, os.Getpid())
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("segment: write lock %s: %w", path, err)
	}
	return &dirLock{path: path, owner: owner}, nil
}

func (l *dirLock) release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("segment: release lock %s: %w", l.path, err)
	}
	return nil
}
