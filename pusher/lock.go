// Package pusher implements the per-branch landing worker of spec.md §4.2:
// under an exclusive filesystem lock on one numbered working directory, it
// clones, verifies, rewrites, and pushes a patchset, escalating through a
// bounded retry ladder on retryable failure.
package pusher

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"go.mozilla.org/autoland/faults"
)

// WorkdirLock holds an exclusive flock(2) lock on one numbered pusher
// working directory, grounded on the resource-ownership framing of the
// teacher's common/shell.go and worker/pool.go: no pack example wraps
// flock(2) directly, so this is built on stdlib syscall.Flock — see
// DESIGN.md.
type WorkdirLock struct {
	Root string // <root>/pusher.N
	N    int
	file *os.File
}

// AcquireWorkdirLock tries root/pusher.0, root/pusher.1, ... in order until
// it obtains an exclusive, non-blocking lock on one's .lock file, creating
// the directory tree as needed. It never blocks waiting for a busy slot —
// concurrent pusher processes move on to the next N instead.
func AcquireWorkdirLock(root string) (*WorkdirLock, error) {
	for n := 0; ; n++ {
		dir := filepath.Join(root, fmt.Sprintf("pusher.%d", n))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, faults.New(faults.Internal, "pusher.AcquireWorkdirLock", err)
		}
		lockPath := filepath.Join(dir, ".lock")
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return nil, faults.New(faults.Internal, "pusher.AcquireWorkdirLock", err)
		}
		if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
			f.Close()
			if err == syscall.EWOULDBLOCK {
				continue
			}
			return nil, faults.New(faults.Internal, "pusher.AcquireWorkdirLock", err)
		}
		return &WorkdirLock{Root: dir, N: n, file: f}, nil
	}
}

// Release drops the lock and closes the underlying file descriptor.
func (l *WorkdirLock) Release() error {
	if l.file == nil {
		return nil
	}
	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return faults.New(faults.Internal, "pusher.Release", err)
	}
	return closeErr
}

// CleanDir is the pristine branch-keyed cache path under the lock.
func (l *WorkdirLock) CleanDir(branch string) string {
	return filepath.Join(l.Root, "clean", branch)
}

// ActiveDir is the working checkout path under the lock.
func (l *WorkdirLock) ActiveDir(branch string) string {
	return filepath.Join(l.Root, "active", branch)
}
