// Package graph contains the execution graph and streaming executor at
// the heart of the orchestration core. A request is routed onto one of
// two fixed stage sequences, and the executor walks that sequence
// emitting a strictly ordered stream of stage lifecycle events.
package graph

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/complyai/policygraph/intent"
	"github.com/complyai/policygraph/retrieval"
	"github.com/complyai/policygraph/session"
)

// Stage names shared by both routes.
const (
	StageValidate         = "validate"
	StageLoadHistory      = "load-history"
	StageClassifyIntent   = "classify-intent"
	StageRetrieveContext  = "retrieve-context"
	StageGenerateResponse = "generate-response"
	StagePersistHistory   = "persist-history"
)

// Route names.
const (
	RouteGeneral = "general"
	RoutePolicy  = "policy"
)

// ErrInvalidInput is returned for malformed requests, before any stage
// runs.
var ErrInvalidInput = errors.New("invalid input")

// Request is one unit of work entering the graph.
type Request struct {
	// SessionID identifies the conversation this request belongs to.
	SessionID string
	// Message is the user's text.
	Message string
	// DocumentRef optionally points at a session-uploaded document.
	DocumentRef string
	// RouteHint, when set, skips intent classification.
	RouteHint intent.Intent
	// CorrelationID tags every event emitted for this request.
	CorrelationID string
}

// State is the accumulated context threaded through the stages of one
// run. Stages read what earlier stages wrote; nothing outside the run
// sees it.
type State struct {
	Request Request

	// Intent is the resolved route intent, from the hint or the
	// classifier.
	Intent intent.Intent
	// History is the session's prior turns.
	History []session.Turn
	// Snippets is the retrieved policy context.
	Snippets []retrieval.Snippet
	// Degraded records that retrieval failed and an empty context was
	// substituted.
	Degraded bool
	// Answer is the generated response text.
	Answer string
	// AnswerComplete reports that Answer is a full, committable
	// response rather than a truncated stream.
	AnswerComplete bool
}

// StageFunc is the body of one stage. It may emit partial content
// fragments through emit and must honor ctx cancellation at its
// adapter-call boundaries.
type StageFunc func(ctx context.Context, st *State, emit func(fragment string)) error

// Stage is one named step of a route.
type Stage struct {
	// Name is the stage identifier used in events.
	Name string
	// Run executes the stage. Unset for skipped stages.
	Run StageFunc
	// Recoverable stages substitute a safe default on failure and let
	// the run continue.
	Recoverable bool
	// Recover applies the safe default after a recoverable failure.
	Recover func(st *State)
	// Timeout bounds the stage; zero means no stage-level bound.
	Timeout time.Duration
	// Skipped marks a stage that was ruled out before sequencing
	// began. It is recorded as an event but never run.
	Skipped bool
	// SkipReason says why, for observability.
	SkipReason string
}

// Route is a fixed, ordered sequence of stages selected by intent.
// When the intent is not known up front, the common prefix runs first
// and Branch picks one of a closed set of continuations.
type Route struct {
	// Name is RouteGeneral or RoutePolicy. Empty until Branch picks,
	// when routing depends on in-run classification.
	Name string
	// Stages run in order; ordering within a route never changes.
	Stages []Stage
	// Branch, when set, selects the continuation after Stages. The
	// continuations are declared up front; Pick only chooses among
	// them.
	Branch *Branch
	// Cleanup runs best-effort when the run ends without reaching the
	// persistence stage (fatal failure or disconnect). Its error is
	// logged and swallowed.
	Cleanup func(ctx context.Context, st *State) error
}

// Branch is the single divergence point of a route.
type Branch struct {
	// Pick names the continuation to follow, based on state the
	// prefix stages accumulated.
	Pick func(st *State) string
	// Tails maps a route name to its continuation stages.
	Tails map[string][]Stage
}

// Validate rejects malformed requests before any stage runs.
func (r Request) Validate() error {
	if r.SessionID == "" {
		return errors.Join(ErrInvalidInput, errors.New("session id is required"))
	}
	if strings.TrimSpace(r.Message) == "" && r.DocumentRef == "" {
		return errors.Join(ErrInvalidInput, errors.New("message is empty"))
	}
	return nil
}
