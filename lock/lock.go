// Package lock serialises nsview runs that write the snapshot history
// database.
//
// The lock is an flock(2) on a well-known file. Code that must hold it
// runs inside Run and receives a Held token; functions that mutate
// shared state take a Held so the requirement is visible in their
// signature.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// Held is proof that the writer lock is held. It cannot be implemented
// outside this package.
type Held interface {
	// Path returns the lock file path.
	Path() string

	held()
}

type held struct {
	path string
}

func (h *held) Path() string { return h.path }
func (*held) held()          {}

const (
	initialBackoff = 25 * time.Millisecond
	maxBackoff     = 500 * time.Millisecond
)

// Run takes the lock at path, runs fn and releases the lock. It polls
// with exponential backoff and gives up when ctx is done.
func Run(ctx context.Context, path string, fn func(context.Context, Held) error) error {
	f, err := acquire(ctx, path)
	if err != nil {
		return err
	}
	defer f.Close()

	return fn(ctx, &held{path: path})
}

func acquire(ctx context.Context, path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	backoff := initialBackoff
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) {
			f.Close()
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, fmt.Errorf("waiting for lock %s: %w", path, ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
