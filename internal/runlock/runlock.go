// Package runlock keeps two squash runs from encoding at the same time.
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// ErrBusy is returned when another squash process holds the lock.
var ErrBusy = errors.New("another squash run is already in progress")

// Lock is a held advisory lock on the state directory.
type Lock struct {
	path string
	lock *flock.Flock
}

// Acquire takes the lock at path without blocking. The holder's PID is
// written into the file so a refused run can say who holds it.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure lock directory: %w", err)
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		if pid := holderPID(path); pid > 0 {
			return nil, fmt.Errorf("%w (pid %d holds %s)", ErrBusy, pid, path)
		}
		return nil, fmt.Errorf("%w (%s)", ErrBusy, path)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("record lock holder: %w", err)
	}
	return &Lock{path: path, lock: fl}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Release unlocks and clears the holder PID. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil || !l.lock.Locked() {
		return nil
	}
	_ = os.Truncate(l.path, 0)
	return l.lock.Unlock()
}

func holderPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
