package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/tissuelab/slideflow/internal/domain"
	derrors "github.com/tissuelab/slideflow/internal/domain/errors"
)

// MemoryStore is the in-memory registry of workflows, jobs, per-branch FIFO
// queues, and the running set. It is the single source of truth for the
// scheduler: every multi-collection inspection happens inside one Mutate
// critical section and therefore observes a consistent snapshot.
type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[string]*domain.Workflow
	jobs      map[string]*domain.Job
	queues    map[string][]string
	running   map[string]struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows: make(map[string]*domain.Workflow),
		jobs:      make(map[string]*domain.Job),
		queues:    make(map[string][]string),
		running:   make(map[string]struct{}),
	}
}

// AddWorkflow registers a workflow and all of its member jobs. The workflow
// becomes visible to readers with its full job list in place.
func (s *MemoryStore) AddWorkflow(ctx context.Context, w *domain.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[w.ID()] = w
	for _, j := range w.Jobs() {
		s.jobs[j.ID()] = j
	}
	return nil
}

// AddJob registers a job and, if its workflow is known, ensures membership.
func (s *MemoryStore) AddJob(ctx context.Context, j *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID()] = j
	if w, ok := s.workflows[j.WorkflowID()]; ok {
		w.AddJob(j)
	}
	return nil
}

// Enqueue appends the job to its branch FIFO, creating the queue lazily.
func (s *MemoryStore) Enqueue(ctx context.Context, j *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[j.Branch()] = append(s.queues[j.Branch()], j.ID())
	return nil
}

// GetWorkflow retrieves a workflow by id.
func (s *MemoryStore) GetWorkflow(ctx context.Context, id string) (*domain.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workflows[id]
	if !ok {
		return nil, derrors.ErrWorkflowNotFound
	}
	return w, nil
}

// GetJob retrieves a job by id.
func (s *MemoryStore) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, derrors.ErrJobNotFound
	}
	return j, nil
}

// ListUserWorkflows returns all workflows owned by the user, oldest first.
func (s *MemoryStore) ListUserWorkflows(ctx context.Context, userID string) ([]*domain.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Workflow
	for _, w := range s.workflows {
		if w.UserID() == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt().Before(out[k].CreatedAt()) })
	return out, nil
}

// CancelJob cancels a PENDING job and removes it from its branch queue, all
// under the store lock. Returns ErrJobNotFound for unknown ids and
// ErrJobNotCancellable when the job has left PENDING.
func (s *MemoryStore) CancelJob(ctx context.Context, id string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, derrors.ErrJobNotFound
	}
	if err := j.MarkCancelled(); err != nil {
		return nil, err
	}
	s.removeFromQueue(j.Branch(), id)
	return j, nil
}

// Mutate runs fn with exclusive read/write access to every collection in the
// store. The scheduler's selection cycle and the dispatcher's slot release go
// through here.
func (s *MemoryStore) Mutate(fn func(tx *Tx)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&Tx{s: s})
}

func (s *MemoryStore) removeFromQueue(branch, id string) {
	q := s.queues[branch]
	for i, qid := range q {
		if qid == id {
			s.queues[branch] = append(q[:i], q[i+1:]...)
			break
		}
	}
	if len(s.queues[branch]) == 0 {
		delete(s.queues, branch)
	}
}

// Tx is the view handed to a Mutate callback. It must not escape the callback.
type Tx struct {
	s *MemoryStore
}

// Job looks up a job by id.
func (tx *Tx) Job(id string) (*domain.Job, bool) {
	j, ok := tx.s.jobs[id]
	return j, ok
}

// Branches returns the branch labels that currently have queues, sorted for a
// deterministic scan order.
func (tx *Tx) Branches() []string {
	out := make([]string, 0, len(tx.s.queues))
	for b := range tx.s.queues {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// QueueLen returns the number of queued entries for a branch.
func (tx *Tx) QueueLen(branch string) int {
	return len(tx.s.queues[branch])
}

// Head returns the job id at the head of a branch queue.
func (tx *Tx) Head(branch string) (string, bool) {
	q := tx.s.queues[branch]
	if len(q) == 0 {
		return "", false
	}
	return q[0], true
}

// PopHead removes and returns the head of a branch queue, pruning the queue
// when it empties.
func (tx *Tx) PopHead(branch string) (string, bool) {
	q := tx.s.queues[branch]
	if len(q) == 0 {
		return "", false
	}
	id := q[0]
	tx.s.queues[branch] = q[1:]
	if len(tx.s.queues[branch]) == 0 {
		delete(tx.s.queues, branch)
	}
	return id, true
}

// RunningCount returns the size of the running set.
func (tx *Tx) RunningCount() int {
	return len(tx.s.running)
}

// RunningIDs returns the ids of all running jobs.
func (tx *Tx) RunningIDs() []string {
	out := make([]string, 0, len(tx.s.running))
	for id := range tx.s.running {
		out = append(out, id)
	}
	return out
}

// AddRunning inserts a job id into the running set.
func (tx *Tx) AddRunning(id string) {
	tx.s.running[id] = struct{}{}
}

// RemoveRunning removes a job id from the running set.
func (tx *Tx) RemoveRunning(id string) {
	delete(tx.s.running, id)
}

// BranchBusy reports whether any running job belongs to the branch.
func (tx *Tx) BranchBusy(branch string) bool {
	for id := range tx.s.running {
		if j, ok := tx.s.jobs[id]; ok && j.Branch() == branch {
			return true
		}
	}
	return false
}

// ActiveUsers returns the distinct owners of running jobs.
func (tx *Tx) ActiveUsers() map[string]struct{} {
	users := make(map[string]struct{})
	for id := range tx.s.running {
		if j, ok := tx.s.jobs[id]; ok {
			users[j.UserID()] = struct{}{}
		}
	}
	return users
}
