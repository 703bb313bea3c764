package graph

import (
	"context"
	"errors"
	"time"

	"github.com/complyai/policygraph/generation"
	"github.com/complyai/policygraph/log"
	"github.com/complyai/policygraph/retrieval"
)

// DefaultEventBuffer is the default capacity of the event channel a
// run emits on. A full buffer applies backpressure to the producing
// stage rather than dropping events.
const DefaultEventBuffer = 64

// Executor walks a route's stage sequence for one request and streams
// lifecycle events. All events for a run are produced by a single
// goroutine, so consumers observe them in execution order.
type Executor struct {
	logger log.Logger
	buffer int
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the logger used for internal failure detail.
func WithLogger(l log.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithEventBuffer sets the event channel capacity.
func WithEventBuffer(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.buffer = n
		}
	}
}

// NewExecutor builds an Executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		logger: log.Default(),
		buffer: DefaultEventBuffer,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the route against st and returns the ordered event
// stream. The channel is closed when the run ends. A run that
// finishes emits exactly one terminal event; a run cut short by ctx
// cancellation emits none and relies on the close to signal the end.
func (e *Executor) Execute(ctx context.Context, route Route, st *State) <-chan Event {
	events := make(chan Event, e.buffer)
	go e.run(ctx, route, st, events)
	return events
}

func (e *Executor) run(ctx context.Context, route Route, st *State, events chan<- Event) {
	defer close(events)

	routeName := route.Name
	emit := func(ev Event) bool {
		ev.CorrelationID = st.Request.CorrelationID
		ev.Route = routeName
		ev.Timestamp = time.Now().UTC()
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	cancelled := func() {
		e.logger.Info("run cancelled, session=%s correlation=%s", st.Request.SessionID, st.Request.CorrelationID)
		e.cleanup(route, st)
	}

	// runStages walks one stage slice. It reports false when the run
	// has ended, after a fatal failure or cancellation.
	runStages := func(stages []Stage) bool {
		for _, stage := range stages {
			if ctx.Err() != nil {
				cancelled()
				return false
			}
			if stage.Skipped {
				if !emit(Event{Stage: stage.Name, Status: StatusSkipped, SkipReason: stage.SkipReason}) {
					cancelled()
					return false
				}
				continue
			}
			if !emit(Event{Stage: stage.Name, Status: StatusStarted}) {
				cancelled()
				return false
			}

			err := e.runStage(ctx, stage, st, func(fragment string) {
				emit(Event{Stage: stage.Name, Status: StatusProgress, Fragment: fragment})
			})
			if err != nil {
				if ctx.Err() != nil {
					// Parent cancellation ends the run. A stage-level
					// timeout does not trip this and is handled below.
					cancelled()
					return false
				}
				e.logger.Error("stage failed, stage=%s session=%s correlation=%s err=%v",
					stage.Name, st.Request.SessionID, st.Request.CorrelationID, err)
				if stage.Recoverable {
					if !emit(Event{Stage: stage.Name, Status: StatusFailed, Err: userSafeMessage(stage.Name, err), Recovered: true}) {
						cancelled()
						return false
					}
					if stage.Recover != nil {
						stage.Recover(st)
					}
					continue
				}
				emit(Event{Stage: stage.Name, Status: StatusFailed, Err: userSafeMessage(stage.Name, err)})
				e.cleanup(route, st)
				emit(Event{Status: StatusFailed, Err: userSafeMessage(stage.Name, err), Terminal: true})
				return false
			}

			if !emit(Event{Stage: stage.Name, Status: StatusCompleted}) {
				cancelled()
				return false
			}
		}
		return true
	}

	if !runStages(route.Stages) {
		return
	}
	if route.Branch != nil {
		routeName = route.Branch.Pick(st)
		if !runStages(route.Branch.Tails[routeName]) {
			return
		}
	}

	emit(Event{
		Status:    StatusCompleted,
		Terminal:  true,
		Answer:    st.Answer,
		Citations: st.Snippets,
		Degraded:  st.Degraded,
	})
}

// runStage applies the stage-level timeout, if any, around the stage
// body.
func (e *Executor) runStage(ctx context.Context, stage Stage, st *State, emit func(fragment string)) error {
	if stage.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, stage.Timeout)
		defer cancel()
	}
	return stage.Run(ctx, st, emit)
}

// cleanup runs the route's best-effort teardown. Failures are logged,
// never surfaced.
func (e *Executor) cleanup(route Route, st *State) {
	if route.Cleanup == nil {
		return
	}
	// The run context may already be cancelled; cleanup gets its own
	// short deadline so a partial turn can still be saved.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := route.Cleanup(ctx, st); err != nil {
		e.logger.Warn("cleanup failed, session=%s correlation=%s err=%v",
			st.Request.SessionID, st.Request.CorrelationID, err)
	}
}

// userSafeMessage maps an internal stage error to the message exposed
// on failed events. Provider payloads and wrapped detail stay in the
// logs.
func userSafeMessage(stage string, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return stage + " timed out"
	case errors.Is(err, generation.ErrRejected):
		return "the request was declined by the provider's content policy"
	case errors.Is(err, generation.ErrUnavailable):
		return "response generation is temporarily unavailable"
	case errors.Is(err, retrieval.ErrUnavailable):
		return "policy context retrieval is temporarily unavailable"
	case errors.Is(err, ErrInvalidInput):
		return "the request is invalid"
	}
	switch stage {
	case StageClassifyIntent:
		return "intent classification failed"
	case StageLoadHistory:
		return "conversation history could not be loaded"
	case StagePersistHistory:
		return "the conversation could not be saved"
	default:
		return stage + " failed"
	}
}
