package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyai/policygraph/generation"
	"github.com/complyai/policygraph/retrieval"
)

func collect(events <-chan Event) []Event {
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func stageNames(events []Event) []string {
	var out []string
	for _, ev := range events {
		out = append(out, ev.Stage+":"+string(ev.Status))
	}
	return out
}

func TestExecuteOrderedEvents(t *testing.T) {
	var ran []string
	route := Route{
		Name: RouteGeneral,
		Stages: []Stage{
			{Name: StageLoadHistory, Run: func(ctx context.Context, st *State, emit func(string)) error {
				ran = append(ran, StageLoadHistory)
				return nil
			}},
			{Name: StageGenerateResponse, Run: func(ctx context.Context, st *State, emit func(string)) error {
				ran = append(ran, StageGenerateResponse)
				emit("hel")
				emit("lo")
				st.Answer = "hello"
				st.AnswerComplete = true
				return nil
			}},
		},
	}

	st := &State{Request: Request{SessionID: "s1", Message: "hi", CorrelationID: "c1"}}
	events := collect(NewExecutor().Execute(context.Background(), route, st))

	assert.Equal(t, []string{
		"load-history:started",
		"load-history:completed",
		"generate-response:started",
		"generate-response:progress",
		"generate-response:progress",
		"generate-response:completed",
		":completed",
	}, stageNames(events))
	assert.Equal(t, []string{StageLoadHistory, StageGenerateResponse}, ran)

	terminal := events[len(events)-1]
	assert.True(t, terminal.Terminal)
	assert.Equal(t, "hello", terminal.Answer)
	assert.Equal(t, "c1", terminal.CorrelationID)
	assert.Equal(t, RouteGeneral, terminal.Route)

	// Fragments arrive in emission order.
	assert.Equal(t, "hel", events[3].Fragment)
	assert.Equal(t, "lo", events[4].Fragment)
}

func TestExecuteSkippedStage(t *testing.T) {
	route := Route{
		Name: RoutePolicy,
		Stages: []Stage{
			{Name: StageClassifyIntent, Skipped: true, SkipReason: "route hint present"},
			{Name: StageGenerateResponse, Run: func(ctx context.Context, st *State, emit func(string)) error {
				st.Answer = "ok"
				return nil
			}},
		},
	}

	events := collect(NewExecutor().Execute(context.Background(), route, &State{}))

	require.Len(t, events, 4)
	assert.Equal(t, StatusSkipped, events[0].Status)
	assert.Equal(t, StageClassifyIntent, events[0].Stage)
	assert.Equal(t, "route hint present", events[0].SkipReason)
	assert.Equal(t, StatusStarted, events[1].Status)
}

func TestExecuteRecoverableFailure(t *testing.T) {
	route := Route{
		Name: RoutePolicy,
		Stages: []Stage{
			{
				Name: StageRetrieveContext,
				Run: func(ctx context.Context, st *State, emit func(string)) error {
					return retrieval.ErrUnavailable
				},
				Recoverable: true,
				Recover: func(st *State) {
					st.Snippets = nil
					st.Degraded = true
				},
			},
			{Name: StageGenerateResponse, Run: func(ctx context.Context, st *State, emit func(string)) error {
				st.Answer = "degraded answer"
				return nil
			}},
		},
	}

	events := collect(NewExecutor().Execute(context.Background(), route, &State{}))

	assert.Equal(t, []string{
		"retrieve-context:started",
		"retrieve-context:failed",
		"generate-response:started",
		"generate-response:completed",
		":completed",
	}, stageNames(events))

	failed := events[1]
	assert.True(t, failed.Recovered)
	assert.Equal(t, "policy context retrieval is temporarily unavailable", failed.Err)

	terminal := events[len(events)-1]
	assert.Equal(t, StatusCompleted, terminal.Status)
	assert.True(t, terminal.Degraded)
	assert.Equal(t, "degraded answer", terminal.Answer)
}

func TestExecuteFatalFailure(t *testing.T) {
	cleanups := 0
	route := Route{
		Name: RouteGeneral,
		Stages: []Stage{
			{Name: StageGenerateResponse, Run: func(ctx context.Context, st *State, emit func(string)) error {
				return generation.ErrRejected
			}},
			{Name: StagePersistHistory, Run: func(ctx context.Context, st *State, emit func(string)) error {
				t.Error("persist must not run after a fatal failure")
				return nil
			}},
		},
		Cleanup: func(ctx context.Context, st *State) error {
			cleanups++
			return nil
		},
	}

	events := collect(NewExecutor().Execute(context.Background(), route, &State{}))

	assert.Equal(t, []string{
		"generate-response:started",
		"generate-response:failed",
		":failed",
	}, stageNames(events))
	assert.Equal(t, 1, cleanups)

	terminal := events[len(events)-1]
	assert.True(t, terminal.Terminal)
	assert.Equal(t, StatusFailed, terminal.Status)
	assert.Equal(t, "the request was declined by the provider's content policy", terminal.Err)
}

func TestExecuteCleanupErrorSwallowed(t *testing.T) {
	route := Route{
		Name: RouteGeneral,
		Stages: []Stage{
			{Name: StageGenerateResponse, Run: func(ctx context.Context, st *State, emit func(string)) error {
				return generation.ErrUnavailable
			}},
		},
		Cleanup: func(ctx context.Context, st *State) error {
			return errors.New("persist also down")
		},
	}

	events := collect(NewExecutor().Execute(context.Background(), route, &State{}))

	terminal := events[len(events)-1]
	assert.True(t, terminal.Terminal)
	assert.Equal(t, "response generation is temporarily unavailable", terminal.Err)
}

func TestExecuteStageTimeout(t *testing.T) {
	route := Route{
		Name: RoutePolicy,
		Stages: []Stage{
			{
				Name:    StageRetrieveContext,
				Timeout: 10 * time.Millisecond,
				Run: func(ctx context.Context, st *State, emit func(string)) error {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(time.Second):
						return nil
					}
				},
				Recoverable: true,
				Recover:     func(st *State) { st.Degraded = true },
			},
			{Name: StageGenerateResponse, Run: func(ctx context.Context, st *State, emit func(string)) error {
				st.Answer = "still answered"
				return nil
			}},
		},
	}

	events := collect(NewExecutor().Execute(context.Background(), route, &State{}))

	failed := events[1]
	assert.Equal(t, StatusFailed, failed.Status)
	assert.True(t, failed.Recovered)
	assert.Equal(t, "retrieve-context timed out", failed.Err)

	terminal := events[len(events)-1]
	assert.Equal(t, StatusCompleted, terminal.Status)
	assert.True(t, terminal.Degraded)
}

func TestExecuteCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cleanups := 0
	route := Route{
		Name: RouteGeneral,
		Stages: []Stage{
			{Name: StageGenerateResponse, Run: func(ctx context.Context, st *State, emit func(string)) error {
				emit("par")
				cancel()
				<-ctx.Done()
				return ctx.Err()
			}},
		},
		Cleanup: func(ctx context.Context, st *State) error {
			cleanups++
			return nil
		},
	}

	events := collect(NewExecutor().Execute(ctx, route, &State{}))

	// The stream ends by closing without a terminal event.
	for _, ev := range events {
		assert.False(t, ev.Terminal)
	}
	assert.Equal(t, 1, cleanups)
}

func TestExecuteBranch(t *testing.T) {
	classify := Stage{Name: StageClassifyIntent, Run: func(ctx context.Context, st *State, emit func(string)) error {
		st.Intent = "policy-analysis"
		return nil
	}}
	retrieve := Stage{Name: StageRetrieveContext, Run: func(ctx context.Context, st *State, emit func(string)) error {
		st.Snippets = []retrieval.Snippet{{SourceID: "hr-7", Scope: retrieval.ScopeCompany, Text: "..."}}
		return nil
	}}
	generate := Stage{Name: StageGenerateResponse, Run: func(ctx context.Context, st *State, emit func(string)) error {
		st.Answer = "answer"
		return nil
	}}

	route := Route{
		Stages: []Stage{classify},
		Branch: &Branch{
			Pick: func(st *State) string {
				if st.Intent == "policy-analysis" {
					return RoutePolicy
				}
				return RouteGeneral
			},
			Tails: map[string][]Stage{
				RoutePolicy:  {retrieve, generate},
				RouteGeneral: {generate},
			},
		},
	}

	events := collect(NewExecutor().Execute(context.Background(), route, &State{}))

	assert.Equal(t, []string{
		"classify-intent:started",
		"classify-intent:completed",
		"retrieve-context:started",
		"retrieve-context:completed",
		"generate-response:started",
		"generate-response:completed",
		":completed",
	}, stageNames(events))

	// Events before the branch carry no route; events after carry the
	// picked one.
	assert.Empty(t, events[0].Route)
	assert.Equal(t, RoutePolicy, events[2].Route)
	assert.Len(t, events[len(events)-1].Citations, 1)
}

func TestRequestValidate(t *testing.T) {
	assert.NoError(t, Request{SessionID: "s", Message: "hi"}.Validate())
	assert.NoError(t, Request{SessionID: "s", DocumentRef: "doc-1"}.Validate())

	err := Request{Message: "hi"}.Validate()
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = Request{SessionID: "s", Message: "   \t\n"}.Validate()
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUserSafeMessage(t *testing.T) {
	assert.Equal(t, "generate-response timed out", userSafeMessage(StageGenerateResponse, context.DeadlineExceeded))
	assert.Equal(t, "intent classification failed", userSafeMessage(StageClassifyIntent, errors.New("provider exploded: key=sk-123")))
	assert.Equal(t, "the conversation could not be saved", userSafeMessage(StagePersistHistory, errors.New("pq: connection refused")))
	assert.NotContains(t, userSafeMessage(StageGenerateResponse, errors.New("secret detail")), "secret")
}
