package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tissuelab/slideflow/internal/domain"
	"github.com/tissuelab/slideflow/internal/infrastructure/storage"
	"github.com/tissuelab/slideflow/internal/tasks"
)

// gateTask blocks every run until released and records admission order.
type gateTask struct {
	mu      sync.Mutex
	order   []string
	gates   map[string]chan struct{}
	release bool // when true, runs return immediately
}

func newGateTask(release bool) *gateTask {
	return &gateTask{gates: make(map[string]chan struct{}), release: release}
}

func (t *gateTask) Run(ctx context.Context, job *domain.Job) error {
	t.mu.Lock()
	t.order = append(t.order, job.ID())
	gate := make(chan struct{})
	t.gates[job.ID()] = gate
	release := t.release
	t.mu.Unlock()

	if !release {
		<-gate
	}
	return nil
}

func (t *gateTask) releaseJob(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gate, ok := t.gates[id]; ok {
		close(gate)
		delete(t.gates, id)
	}
}

func (t *gateTask) releaseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, gate := range t.gates {
		close(gate)
		delete(t.gates, id)
	}
}

func (t *gateTask) startedOrder() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

type fixture struct {
	store     *storage.MemoryStore
	scheduler *Scheduler
	task      *gateTask
}

func newFixture(t *testing.T, release bool, cfg Config) *fixture {
	t.Helper()
	if cfg.Interval == 0 {
		cfg.Interval = 2 * time.Millisecond
	}
	store := storage.NewMemoryStore()
	task := newGateTask(release)
	registry := tasks.NewRegistry()
	registry.Register(domain.JobTypeCellSegmentation, task)
	registry.Register(domain.JobTypeTissueMask, task)
	dispatcher := NewDispatcher(store, registry, nil, nil, nil)
	return &fixture{
		store:     store,
		scheduler: NewScheduler(store, dispatcher, nil, nil, cfg),
		task:      task,
	}
}

func (f *fixture) submit(t *testing.T, userID, branch string) *domain.Job {
	t.Helper()
	ctx := context.Background()
	job := domain.NewJob("wf-"+userID, userID, branch, domain.JobTypeCellSegmentation, "slide.png")
	require.NoError(t, f.store.AddJob(ctx, job))
	require.NoError(t, f.store.Enqueue(ctx, job))
	return job
}

// start runs the scheduler loop in the background until the test ends.
func (f *fixture) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go f.scheduler.Run(ctx)
}

func (f *fixture) snapshot() (running int, branches map[string]int, users map[string]struct{}) {
	branches = make(map[string]int)
	users = make(map[string]struct{})
	f.store.Mutate(func(tx *storage.Tx) {
		running = tx.RunningCount()
		for _, id := range tx.RunningIDs() {
			if j, ok := tx.Job(id); ok {
				branches[j.Branch()]++
				users[j.UserID()] = struct{}{}
			}
		}
	})
	return
}

func TestScheduler_BranchFIFO(t *testing.T) {
	f := newFixture(t, false, Config{})
	j1 := f.submit(t, "u1", "A")
	j2 := f.submit(t, "u1", "A")
	f.start(t)

	require.Eventually(t, func() bool {
		return j1.Status() == domain.JobStatusRunning
	}, time.Second, time.Millisecond)

	// J2 must wait for J1: same branch runs serially
	assert.Equal(t, domain.JobStatusPending, j2.Status())

	f.task.releaseJob(j1.ID())
	require.Eventually(t, func() bool {
		return j2.Status() == domain.JobStatusRunning
	}, time.Second, time.Millisecond)
	assert.Equal(t, domain.JobStatusSucceeded, j1.Status())

	f.task.releaseJob(j2.ID())
	require.Eventually(t, func() bool {
		return j2.Status() == domain.JobStatusSucceeded
	}, time.Second, time.Millisecond)

	assert.Equal(t, []string{j1.ID(), j2.ID()}, f.task.startedOrder())
}

func TestScheduler_ActiveUsersLimit(t *testing.T) {
	f := newFixture(t, false, Config{})
	jobs := []*domain.Job{
		f.submit(t, "u1", "b1"),
		f.submit(t, "u2", "b2"),
		f.submit(t, "u3", "b3"),
		f.submit(t, "u4", "b4"),
	}
	f.start(t)

	require.Eventually(t, func() bool {
		running, _, _ := f.snapshot()
		return running == 3
	}, time.Second, time.Millisecond)

	// Never a fourth distinct user while three are active
	for i := 0; i < 20; i++ {
		running, _, users := f.snapshot()
		assert.LessOrEqual(t, running, 3)
		assert.LessOrEqual(t, len(users), 3)
		time.Sleep(time.Millisecond)
	}

	waiting := 0
	for _, j := range jobs {
		if j.Status() == domain.JobStatusPending {
			waiting++
		}
	}
	assert.Equal(t, 1, waiting)

	f.task.releaseAll()
	require.Eventually(t, func() bool {
		for _, j := range jobs {
			if j.Status() != domain.JobStatusSucceeded {
				f.task.releaseAll()
				return false
			}
		}
		return true
	}, 2*time.Second, time.Millisecond)
}

func TestScheduler_MaxWorkers(t *testing.T) {
	f := newFixture(t, false, Config{})
	var jobs []*domain.Job
	branches := []string{"b1", "b2", "b3", "b4", "b5"}
	for _, b := range branches {
		jobs = append(jobs, f.submit(t, "u1", b))
	}
	f.start(t)

	require.Eventually(t, func() bool {
		running, _, _ := f.snapshot()
		return running == 4
	}, time.Second, time.Millisecond)

	for i := 0; i < 20; i++ {
		running, branchCounts, _ := f.snapshot()
		assert.LessOrEqual(t, running, 4)
		for branch, n := range branchCounts {
			assert.LessOrEqual(t, n, 1, "branch %s has %d running jobs", branch, n)
		}
		time.Sleep(time.Millisecond)
	}

	f.task.releaseAll()
	require.Eventually(t, func() bool {
		for _, j := range jobs {
			if j.Status() != domain.JobStatusSucceeded {
				f.task.releaseAll()
				return false
			}
		}
		return true
	}, 2*time.Second, time.Millisecond)
}

func TestScheduler_CancelledJobNeverRuns(t *testing.T) {
	f := newFixture(t, true, Config{})
	job := f.submit(t, "u1", "b")

	_, err := f.store.CancelJob(context.Background(), job.ID())
	require.NoError(t, err)

	// Drive several cycles directly; the job must stay cancelled.
	for i := 0; i < 5; i++ {
		started := f.scheduler.Cycle()
		assert.Empty(t, started)
	}
	assert.Equal(t, domain.JobStatusCancelled, job.Status())
	assert.Empty(t, f.task.startedOrder())
}

func TestScheduler_EvictsStaleHeads(t *testing.T) {
	f := newFixture(t, true, Config{})
	stale := f.submit(t, "u1", "b")
	live := f.submit(t, "u1", "b")

	// Cancel without queue removal to simulate a stale head entry.
	require.NoError(t, stale.MarkCancelled())

	started := f.scheduler.Cycle()
	require.Len(t, started, 1)
	assert.Equal(t, live.ID(), started[0].ID())
	assert.Equal(t, domain.JobStatusCancelled, stale.Status())

	// The stale entry is gone from the queue.
	f.store.Mutate(func(tx *storage.Tx) {
		assert.Equal(t, 0, tx.QueueLen("b"))
	})
}

func TestScheduler_BranchSerialAcrossCycles(t *testing.T) {
	f := newFixture(t, false, Config{})
	j1 := f.submit(t, "u1", "b")
	j2 := f.submit(t, "u2", "b")

	started := f.scheduler.Cycle()
	require.Len(t, started, 1)
	assert.Equal(t, j1.ID(), started[0].ID())

	// Branch busy: second head stays queued while j1 holds the branch.
	started = f.scheduler.Cycle()
	assert.Empty(t, started)
	assert.Equal(t, domain.JobStatusPending, j2.Status())
}

func TestScheduler_SelectsAcrossBranchesInOneCycle(t *testing.T) {
	f := newFixture(t, false, Config{})
	f.submit(t, "u1", "b1")
	f.submit(t, "u2", "b2")
	f.submit(t, "u3", "b3")

	started := f.scheduler.Cycle()
	assert.Len(t, started, 3)

	running, branchCounts, users := f.snapshot()
	assert.Equal(t, 3, running)
	assert.Len(t, branchCounts, 3)
	assert.Len(t, users, 3)
}
