package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/mirrorctl/internal/ports"
)

var (
	ErrTaskExists  = errors.New("task already scheduled")
	ErrArenaClosed = errors.New("task arena closed")
)

type TaskFunc func(ctx context.Context)

// TaskArena owns a set of named periodic tasks. Each task runs once right away
// and then on every tick; a tick that fires while the previous run is still
// outstanding is skipped.
type TaskArena struct {
	clock ports.Clock
	log   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	tasks  map[string]*task
	closed bool
}

type task struct {
	name     string
	interval time.Duration
	fn       TaskFunc
	cancel   context.CancelFunc
	trigger  chan struct{}
	busy     atomic.Bool
}

func NewTaskArena(clock ports.Clock, log zerolog.Logger) *TaskArena {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &TaskArena{
		clock:  clock,
		log:    log.With().Str("component", "tasks").Logger(),
		ctx:    ctx,
		cancel: cancel,
		tasks:  map[string]*task{},
	}
}

func (a *TaskArena) Schedule(name string, interval time.Duration, fn TaskFunc) error {
	if interval <= 0 {
		return fmt.Errorf("schedule %q: interval must be positive", name)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrArenaClosed
	}
	if _, ok := a.tasks[name]; ok {
		return fmt.Errorf("schedule %q: %w", name, ErrTaskExists)
	}

	ctx, cancel := context.WithCancel(a.ctx)
	t := &task{
		name:     name,
		interval: interval,
		fn:       fn,
		cancel:   cancel,
		trigger:  make(chan struct{}, 1),
	}
	a.tasks[name] = t

	a.wg.Add(1)
	go a.loop(ctx, t)

	return nil
}

// Cancel stops the named task without waiting for an in-flight run, so it is
// safe to call from inside that run.
func (a *TaskArena) Cancel(name string) bool {
	a.mu.Lock()
	t, ok := a.tasks[name]
	if ok {
		delete(a.tasks, name)
	}
	a.mu.Unlock()

	if ok {
		t.cancel()
	}

	return ok
}

// Trigger requests an immediate run of the named task, subject to the same
// skip-if-busy rule as ticks.
func (a *TaskArena) Trigger(name string) bool {
	a.mu.Lock()
	t, ok := a.tasks[name]
	a.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case t.trigger <- struct{}{}:
	default:
	}

	return true
}

func (a *TaskArena) Has(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, ok := a.tasks[name]
	return ok
}

func (a *TaskArena) Names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	names := make([]string, 0, len(a.tasks))
	for name := range a.tasks {
		names = append(names, name)
	}

	return names
}

// Close cancels every task and waits for loops and in-flight runs to return.
// It is idempotent.
func (a *TaskArena) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.tasks = map[string]*task{}
	a.mu.Unlock()

	a.cancel()
	a.wg.Wait()
}

func (a *TaskArena) loop(ctx context.Context, t *task) {
	defer a.wg.Done()

	ticker := a.clock.NewTicker(t.interval)
	defer ticker.Stop()

	a.dispatch(ctx, t)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			a.dispatch(ctx, t)
		case <-t.trigger:
			a.dispatch(ctx, t)
		}
	}
}

func (a *TaskArena) dispatch(ctx context.Context, t *task) {
	if ctx.Err() != nil {
		return
	}
	if !t.busy.CompareAndSwap(false, true) {
		a.log.Debug().Str("task", t.name).Msg("previous run still outstanding, skipping tick")
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer t.busy.Store(false)

		t.fn(ctx)
	}()
}
