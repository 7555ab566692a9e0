// Package runlock keeps two collector runs of the same mode from overlapping.
//
// A lock is a file holding the owner's PID. A lock whose PID is no longer
// alive is stale and is cleared by the next run.
package runlock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// ErrLocked is returned when another live process holds the lock.
var ErrLocked = errors.New("run already in progress")

// Lock is a held run lock.
type Lock struct {
	path string
	pid  int
}

// alive is replaced in tests.
var alive = func(pid int) bool {
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

// Path returns the lock file path of a mode.
func Path(dir, mode string) string {
	return filepath.Join(dir, "options-collector-"+mode+".lock")
}

// Acquire takes the lock of mode in dir.
func Acquire(dir, mode string) (*Lock, error) {
	return acquire(Path(dir, mode), os.Getpid())
}

func acquire(path string, pid int) (*Lock, error) {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(pid))
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("write lock %s: %w", path, errors.Join(werr, cerr))
			}
			return &Lock{path: path, pid: pid}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("create lock %s: %w", path, err)
		}

		owner, err := Owner(path)
		if err == nil && owner != pid && alive(owner) {
			return nil, fmt.Errorf("%w: pid %d holds %s", ErrLocked, owner, path)
		}
		// Stale or unreadable: clear and retry once.
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("clear stale lock %s: %w", path, err)
		}
	}
	return nil, fmt.Errorf("%w: lost race for %s", ErrLocked, path)
}

// Owner returns the PID recorded in a lock file.
func Owner(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}

// Release removes the lock if it is still ours. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	owner, err := Owner(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err == nil && owner != l.pid {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }
