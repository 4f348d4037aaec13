package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/komyaka/wordstat/internal/events"
	"github.com/komyaka/wordstat/internal/models"
)

// Run is one tracked expansion run. Its event log and result snapshot are
// maintained by a single drain goroutine; readers take the snapshot under
// the run's lock.
type Run struct {
	ID        string
	StartedAt time.Time

	cancel context.CancelFunc

	mu          sync.Mutex
	status      models.RunStatus
	log         []events.Event
	results     []models.KeywordRecord
	finishedAt  time.Time
	subscribers map[chan events.Event]struct{}
}

// Status returns the run's current lifecycle state.
func (r *Run) Status() models.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Results returns the run's accumulated results. Complete only once the run
// is terminal; partial results are available after cancellation.
func (r *Run) Results() []models.KeywordRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results
}

// FinishedAt returns when the run reached a terminal state (zero if still running).
func (r *Run) FinishedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finishedAt
}

// Cancel requests cooperative cancellation. Safe to call repeatedly.
func (r *Run) Cancel() { r.cancel() }

// Subscribe atomically snapshots the event log so far and registers a live
// channel for subsequent events. The returned cancel func must be called
// when the subscriber is done.
func (r *Run) Subscribe() (backlog []events.Event, live chan events.Event, cancel func()) {
	ch := make(chan events.Event, 64)
	r.mu.Lock()
	backlog = append([]events.Event(nil), r.log...)
	terminal := r.status.Terminal()
	if !terminal {
		r.subscribers[ch] = struct{}{}
	}
	r.mu.Unlock()
	if terminal {
		close(ch)
		return backlog, ch, func() {}
	}
	return backlog, ch, func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
}

// consume records e in the log, updates terminal state, and fans out to
// subscribers without blocking on slow ones.
func (r *Run) consume(e events.Event) {
	r.mu.Lock()
	r.log = append(r.log, e)
	if e.Type.Terminal() {
		switch e.Type {
		case events.TypeCompleted:
			r.status = models.StatusCompleted
		case events.TypeCancelled:
			r.status = models.StatusCancelled
		case events.TypeFailed:
			r.status = models.StatusFailed
		}
		r.results = e.Results
		r.finishedAt = time.Now()
	}
	// Fan out under the lock: sends are non-blocking, and holding the lock
	// keeps an unsubscribing reader from closing a channel mid-send.
	for ch := range r.subscribers {
		select {
		case ch <- e:
		default:
			// Slow subscriber: skip rather than stall the drain loop.
		}
		if e.Type.Terminal() {
			delete(r.subscribers, ch)
			close(ch)
		}
	}
	r.mu.Unlock()
}

// Runner owns the set of in-flight and finished runs for the HTTP boundary.
type Runner struct {
	engine *Engine
	logger *zap.Logger

	mu   sync.Mutex
	runs map[string]*Run
}

// NewRunner creates a run registry around eng.
func NewRunner(eng *Engine, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{engine: eng, logger: logger, runs: make(map[string]*Run)}
}

// Start validates req and launches a run on its own goroutine, returning
// immediately with the tracked Run.
func (rn *Runner) Start(ctx context.Context, req models.RunRequest) (*Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		ID:          uuid.New().String(),
		StartedAt:   time.Now(),
		cancel:      cancel,
		status:      models.StatusRunning,
		subscribers: make(map[chan events.Event]struct{}),
	}
	rn.mu.Lock()
	rn.runs[run.ID] = run
	rn.mu.Unlock()

	bus := events.NewBus(0)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for e := range bus.Events() {
			run.consume(e)
		}
	}()
	go func() {
		defer cancel()
		rn.engine.Run(runCtx, run.ID, req, bus)
		bus.Close()
		<-drained
		if n := bus.Dropped(); n > 0 {
			rn.logger.Warn("event bus dropped events", zap.String("run_id", run.ID), zap.Int64("dropped", n))
		}
	}()
	return run, nil
}

// Get returns the run with the given id.
func (rn *Runner) Get(id string) (*Run, bool) {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	run, ok := rn.runs[id]
	return run, ok
}

// Cancel requests cancellation of the run with the given id.
func (rn *Runner) Cancel(id string) bool {
	run, ok := rn.Get(id)
	if !ok {
		return false
	}
	run.Cancel()
	return true
}

// List returns all tracked runs, newest first.
func (rn *Runner) List() []*Run {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	out := make([]*Run, 0, len(rn.runs))
	for _, r := range rn.runs {
		out = append(out, r)
	}
	sortRunsNewestFirst(out)
	return out
}

func sortRunsNewestFirst(runs []*Run) {
	for i := 1; i < len(runs); i++ {
		for j := i; j > 0 && runs[j].StartedAt.After(runs[j-1].StartedAt); j-- {
			runs[j], runs[j-1] = runs[j-1], runs[j]
		}
	}
}
