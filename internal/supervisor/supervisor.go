package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrClosed is returned by Launch after CancelAll.
var ErrClosed = errors.New("supervisor closed")

// maxPerResource bounds concurrent jobs of one resource. The oldest
// job is evicted when a client hammers the same selection.
const maxPerResource = 5

// job is one running client task.
type job struct {
	key    string
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor owns the running jobs of a single client connection.
type Supervisor struct {
	base       context.Context
	cancelBase context.CancelFunc
	logger     *slog.Logger

	mu     sync.Mutex
	jobs   map[string][]*job
	closed bool
}

// New creates a supervisor rooted at ctx. Cancelling ctx cancels every
// job it ever launches.
func New(ctx context.Context, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(ctx)
	return &Supervisor{
		base:       base,
		cancelBase: cancel,
		logger:     logger,
		jobs:       make(map[string][]*job),
	}
}

// Launch runs fn as a job under the resource name. key identifies the
// request parameters: when the newest existing job for the resource has
// a different key, every older job is cancelled and only the new job
// survives. Repeats of the same key accumulate up to maxPerResource,
// evicting oldest first.
func (s *Supervisor) Launch(resource, key string, fn func(ctx context.Context)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	ctx, cancel := context.WithCancel(s.base)
	j := &job{key: key, cancel: cancel, done: make(chan struct{})}

	list := append(s.jobs[resource], j)
	if n := len(list); n > 1 && list[n-2].key != key {
		s.logger.Debug("superseding jobs", "resource", resource, "cancelled", n-1)
		for _, old := range list[:n-1] {
			old.cancel()
		}
		list = []*job{j}
	}
	for len(list) > maxPerResource {
		list[0].cancel()
		list = list[1:]
	}
	s.jobs[resource] = list
	s.mu.Unlock()

	go func() {
		defer close(j.done)
		defer s.remove(resource, j)
		fn(ctx)
	}()
	return nil
}

// remove drops a finished job from the table.
func (s *Supervisor) remove(resource string, j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.jobs[resource]
	for i, candidate := range list {
		if candidate == j {
			s.jobs[resource] = append(list[:i], list[i+1:]...)
			break
		}
	}
	j.cancel()
}

// Running reports the number of live jobs for a resource.
func (s *Supervisor) Running(resource string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs[resource])
}

// CancelAll cancels every job and refuses further launches. It does
// not wait for job functions to return.
func (s *Supervisor) CancelAll() {
	s.mu.Lock()
	s.closed = true
	s.jobs = make(map[string][]*job)
	s.mu.Unlock()

	s.cancelBase()
}
