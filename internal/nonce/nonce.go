// Package nonce allocates unique, strictly increasing call identifiers
// used to correlate upstream responses with pending calls.
//
// A single process uses the in-memory allocator. When multiple OS
// processes share one backing store, issuance is serialized through an
// exclusive lock file so ids stay globally unique and monotonic; a lock
// held longer than a few seconds is presumed abandoned and force-released.
package nonce

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// DefaultStaleAfter is how long a held lock file may exist before it is
// presumed abandoned by a dead process.
const DefaultStaleAfter = 3 * time.Second

// Allocator issues strictly increasing nonces derived from the wall
// clock in nanoseconds. Safe for concurrent use.
type Allocator struct {
	mu   sync.Mutex
	last int64
	lock *FileLock
}

// NewAllocator returns an in-process allocator.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// NewSharedAllocator returns an allocator that serializes issuance
// across processes through a lock file at path.
func NewSharedAllocator(path string) *Allocator {
	return &Allocator{lock: NewFileLock(path, DefaultStaleAfter)}
}

// Next returns the next nonce. Nanosecond wall time keeps ids unique
// across restarts; the bump below keeps them strictly increasing even
// when the clock is coarse or steps backwards.
func (a *Allocator) Next() int64 {
	if a.lock != nil {
		a.lock.Acquire()
		defer a.lock.Release()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	n := time.Now().UnixNano()
	if n <= a.last {
		n = a.last + 1
	}
	a.last = n
	return n
}

// FileLock is an exclusive cross-process lock backed by O_EXCL file
// creation, with stale-lock recovery.
type FileLock struct {
	path       string
	staleAfter time.Duration
}

// NewFileLock creates a lock at path. staleAfter bounds how long a lock
// may be held before another process force-releases it.
func NewFileLock(path string, staleAfter time.Duration) *FileLock {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &FileLock{path: path, staleAfter: staleAfter}
}

// Acquire blocks until the lock file is created exclusively. A lock file
// older than staleAfter is removed first; its holder is presumed dead.
func (l *FileLock) Acquire() {
	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return
		}

		if info, statErr := os.Stat(l.path); statErr == nil {
			if time.Since(info.ModTime()) > l.staleAfter {
				os.Remove(l.path)
				continue
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Release removes the lock file.
func (l *FileLock) Release() {
	os.Remove(l.path)
}
