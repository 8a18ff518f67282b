// Package netns identifies network namespaces by inode and runs code
// with the calling thread switched into one.
package netns

import (
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// SelfPath is the network namespace of the calling thread's process.
const SelfPath = "/proc/self/ns/net"

const threadSelfPath = "/proc/thread-self/ns/net"

// Inode returns the inode of the namespace file at path. Two paths name
// the same namespace exactly when their inodes match. The empty path is
// the current namespace.
func Inode(path string) (uint64, error) {
	if path == "" {
		path = SelfPath
	}
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return st.Ino, nil
}

// Run executes fn with the calling goroutine locked to a thread that
// has joined the namespace at path, then switches the thread back. The
// empty path runs fn in place.
func Run(path string, fn func() error) error {
	if path == "" {
		return fn()
	}

	target, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open netns %s: %w", path, err)
	}
	defer target.Close()

	runtime.LockOSThread()
	origin, err := os.Open(threadSelfPath)
	if err != nil {
		runtime.UnlockOSThread()
		return fmt.Errorf("open current netns: %w", err)
	}
	defer origin.Close()

	if err := unix.Setns(int(target.Fd()), unix.CLONE_NEWNET); err != nil {
		runtime.UnlockOSThread()
		return fmt.Errorf("setns %s: %w", path, err)
	}
	defer func() {
		// A thread that cannot get back stays locked and is torn down
		// when the goroutine exits.
		if err := unix.Setns(int(origin.Fd()), unix.CLONE_NEWNET); err == nil {
			runtime.UnlockOSThread()
		}
	}()

	return fn()
}
