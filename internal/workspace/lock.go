package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrLocked means another controller already holds the workspace
var ErrLocked = errors.New("workspace is locked by another run")

// Lock is a best-effort exclusive claim on a workspace. It is advisory:
// it stops a second `philby run`, not other processes editing files.
type Lock struct {
	path string
}

// Lock creates the lock file exclusively. The file records the holder's pid
// so a stale lock left by a crash can be identified and removed by hand.
func (w *Workspace) Lock() (*Lock, error) {
	path := filepath.Join(w.root, LockFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		holder := "unknown"
		if data, readErr := os.ReadFile(path); readErr == nil && len(data) > 0 {
			holder = strings.TrimSpace(string(data))
		}
		return nil, fmt.Errorf("%w (pid %s, remove %s if stale)", ErrLocked, holder, path)
	}
	if err != nil {
		return nil, fmt.Errorf("create lock: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write lock: %w", err)
	}
	return &Lock{path: path}, nil
}

// Release removes the lock file; calling it twice is harmless
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	err := os.Remove(l.path)
	l.path = ""
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
