// Package taskregistry tracks in-flight background tasks so each (user,
// task type) pair runs at most once and can be cancelled on demand.
package taskregistry

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Entry describes one running task.
type Entry struct {
	ID        string
	UserID    string
	Type      string
	StartedAt time.Time
	cancel    context.CancelFunc
}

// Registry is the process-local task table. All methods are safe for
// concurrent use.
type Registry struct {
	mu    sync.Mutex
	tasks map[string]Entry // keyed by userID + "/" + taskType
}

// New builds an empty registry.
func New() *Registry {
	return &Registry{tasks: make(map[string]Entry)}
}

func key(userID, taskType string) string { return userID + "/" + taskType }

// Register records a task and returns its handle plus a context cancelled
// when the task is removed. A task of the same type already running for the
// user is cancelled and replaced.
func (r *Registry) Register(ctx context.Context, userID, taskType string) (string, context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(userID, taskType)
	if prev, ok := r.tasks[k]; ok {
		prev.cancel()
	}

	tctx, cancel := context.WithCancel(ctx)
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	r.tasks[k] = Entry{
		ID:        id,
		UserID:    userID,
		Type:      taskType,
		StartedAt: time.Now(),
		cancel:    cancel,
	}
	return id, tctx
}

// Done removes a finished task. The removal is keyed by handle so a task
// replaced by a newer registration does not clobber its successor.
func (r *Registry) Done(userID, taskType, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(userID, taskType)
	if cur, ok := r.tasks[k]; ok && cur.ID == id {
		cur.cancel()
		delete(r.tasks, k)
	}
}

// Cancel aborts the user's task of the given type, if one is running.
func (r *Registry) Cancel(userID, taskType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(userID, taskType)
	cur, ok := r.tasks[k]
	if !ok {
		return false
	}
	cur.cancel()
	delete(r.tasks, k)
	return true
}

// CancelUser aborts every running task for the user and reports how many
// were cancelled.
func (r *Registry) CancelUser(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for k, e := range r.tasks {
		if e.UserID == userID {
			e.cancel()
			delete(r.tasks, k)
			n++
		}
	}
	return n
}

// Running lists current tasks, newest first not guaranteed.
func (r *Registry) Running() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, len(r.tasks))
	for _, e := range r.tasks {
		out = append(out, e)
	}
	return out
}

// Sweep cancels tasks older than maxAge. Stuck consumers otherwise pin
// their (user, type) slot forever.
func (r *Registry) Sweep(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	cutoff := time.Now().Add(-maxAge)
	for k, e := range r.tasks {
		if e.StartedAt.Before(cutoff) {
			e.cancel()
			delete(r.tasks, k)
			n++
		}
	}
	return n
}
