// README: Orchestrator drives one generation stage: one live stream, latest-snapshot state.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ryokou/internal/ai"
)

var (
	// ErrGeneration wraps every backend or decoding failure of a run.
	ErrGeneration = errors.New("generation failed")
	// ErrTimeout is returned when a run exceeds the stream timeout. Retrying is safe.
	ErrTimeout = errors.New("generation timed out")
	// ErrSuperseded is returned by Generate when a newer context replaced the run it waited for.
	ErrSuperseded = errors.New("generation superseded by a newer context")
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseStreaming Phase = "streaming"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// Stage supplies what differs between the suggestion and itinerary passes.
type Stage[P any] interface {
	Name() string
	Request(tc TripContext) (ai.Request, error)
	Merge(prev, next P) P
}

// State is the observable state of an orchestrator. Snapshot is always the
// latest merged snapshot of the current run.
type State[P any] struct {
	Phase      Phase        `json:"phase"`
	Context    *TripContext `json:"context,omitempty"`
	Snapshot   P            `json:"snapshot"`
	Error      string       `json:"error,omitempty"`
	Err        error        `json:"-"`
	Generation uint64       `json:"generation"`
}

// Settled reports whether the run has finished either way.
func (s State[P]) Settled() bool {
	return s.Phase == PhaseSucceeded || s.Phase == PhaseFailed
}

type Options struct {
	StreamTimeout time.Duration
	ToolTimeout   time.Duration
	MaxToolTurns  int
}

const DefaultStreamTimeout = 3 * time.Minute

type Orchestrator[P any] struct {
	backend ai.Backend
	stage   Stage[P]
	opts    Options

	mu     sync.Mutex
	gen    uint64
	state  State[P]
	cancel context.CancelFunc
	done   chan struct{}
	subs   map[chan State[P]]struct{}
}

func NewOrchestrator[P any](backend ai.Backend, stage Stage[P], opts Options) *Orchestrator[P] {
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = DefaultStreamTimeout
	}
	return &Orchestrator[P]{
		backend: backend,
		stage:   stage,
		opts:    opts,
		state:   State[P]{Phase: PhaseIdle},
		subs:    make(map[chan State[P]]struct{}),
	}
}

// Generate runs the stage for tc and blocks until the run settles. If tc equals
// the current context and that run is streaming or has succeeded, no new run
// is started and Generate waits for (or returns) the existing one. Cancelling
// ctx cancels the run.
func (o *Orchestrator[P]) Generate(ctx context.Context, tc TripContext) (State[P], error) {
	gen, done, err := o.start(ctx, tc)
	if err != nil {
		return o.State(), err
	}

	select {
	case <-done:
	case <-ctx.Done():
		return o.State(), ctx.Err()
	}

	st := o.State()
	if st.Generation != gen {
		return st, ErrSuperseded
	}
	return st, st.Err
}

// Start is Generate without waiting. The run is detached from ctx's cancellation.
func (o *Orchestrator[P]) Start(ctx context.Context, tc TripContext) error {
	_, _, err := o.start(context.WithoutCancel(ctx), tc)
	return err
}

// Prewarm primes the backend with the request tc would produce. It is best effort.
func (o *Orchestrator[P]) Prewarm(ctx context.Context, tc TripContext) error {
	req, err := o.stage.Request(tc)
	if err != nil {
		return err
	}
	if err := o.backend.Prewarm(ctx, req); err != nil {
		slog.Debug("prewarm failed", "stage", o.stage.Name(), "error", err)
		return err
	}
	return nil
}

// State returns the latest state.
func (o *Orchestrator[P]) State() State[P] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Subscribe delivers states latest-wins: a slow reader only sees the newest
// state. The current state is delivered immediately. Call the returned func
// to unsubscribe.
func (o *Orchestrator[P]) Subscribe() (<-chan State[P], func()) {
	ch := make(chan State[P], 1)
	o.mu.Lock()
	o.subs[ch] = struct{}{}
	ch <- o.state
	o.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, ch)
			o.mu.Unlock()
		})
	}
}

// Cancel stops the live run, if any. The run settles as failed.
func (o *Orchestrator[P]) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

func (o *Orchestrator[P]) start(ctx context.Context, tc TripContext) (uint64, <-chan struct{}, error) {
	if err := tc.Validate(); err != nil {
		return 0, nil, err
	}
	req, err := o.stage.Request(tc)
	if err != nil {
		return 0, nil, err
	}
	req.ToolTimeout = o.opts.ToolTimeout
	req.MaxTurns = o.opts.MaxToolTurns

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Context != nil && o.state.Context.Equal(tc) &&
		(o.state.Phase == PhaseStreaming || o.state.Phase == PhaseSucceeded) {
		return o.gen, o.done, nil
	}

	if o.cancel != nil {
		o.cancel()
	}
	o.gen++
	gen := o.gen

	runCtx, cancel := context.WithTimeout(ctx, o.opts.StreamTimeout)
	done := make(chan struct{})
	o.cancel, o.done = cancel, done

	own := tc
	var zero P
	o.state = State[P]{Phase: PhaseStreaming, Context: &own, Snapshot: zero, Generation: gen}
	o.publishLocked()

	slog.Info("generation started", "stage", o.stage.Name(), "generation", gen, "destination", tc.Destination.ID)
	go o.run(runCtx, cancel, done, gen, req)
	return gen, done, nil
}

func (o *Orchestrator[P]) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}, gen uint64, req ai.Request) {
	defer close(done)
	defer cancel()

	var last string
	err := o.backend.Stream(ctx, req, func(text string) {
		last = text
		var next P
		if !ai.DecodePartial(text, &next) {
			return
		}
		o.apply(gen, func(st *State[P]) {
			st.Snapshot = o.stage.Merge(st.Snapshot, next)
		})
	})

	if err == nil {
		var final P
		if err = ai.DecodeFinal(last, &final); err == nil {
			o.apply(gen, func(st *State[P]) {
				st.Snapshot = o.stage.Merge(st.Snapshot, final)
				st.Phase = PhaseSucceeded
			})
			slog.Info("generation succeeded", "stage", o.stage.Name(), "generation", gen)
			return
		}
	}

	err = o.classify(ctx, err)
	o.apply(gen, func(st *State[P]) {
		st.Phase = PhaseFailed
		st.Err = err
		st.Error = err.Error()
	})
	slog.Warn("generation failed", "stage", o.stage.Name(), "generation", gen, "error", err)
}

func (o *Orchestrator[P]) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s stage exceeded %s", ErrTimeout, o.stage.Name(), o.opts.StreamTimeout)
	}
	return fmt.Errorf("%w: %s stage: %w", ErrGeneration, o.stage.Name(), err)
}

// apply mutates the state of run gen. Updates from superseded runs are dropped.
func (o *Orchestrator[P]) apply(gen uint64, fn func(st *State[P])) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen {
		return
	}
	fn(&o.state)
	o.publishLocked()
}

func (o *Orchestrator[P]) publishLocked() {
	for ch := range o.subs {
		select {
		case ch <- o.state:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- o.state:
			default:
			}
		}
	}
}
