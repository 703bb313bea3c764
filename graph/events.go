package graph

import (
	"time"

	"github.com/complyai/policygraph/retrieval"
)

// Status is the lifecycle phase an event reports for a stage or for
// the run as a whole.
type Status string

const (
	// StatusStarted marks the beginning of a stage.
	StatusStarted Status = "started"
	// StatusProgress carries a partial content fragment.
	StatusProgress Status = "progress"
	// StatusCompleted marks successful completion of a stage, or of
	// the run when Terminal is set.
	StatusCompleted Status = "completed"
	// StatusFailed marks a stage failure, or a failed run when
	// Terminal is set.
	StatusFailed Status = "failed"
	// StatusSkipped records a stage that was ruled out before the
	// sequence ran.
	StatusSkipped Status = "skipped"
)

// Event is one entry in the ordered stream a run emits. Consumers see
// per-stage lifecycle events in execution order, then exactly one
// terminal event, unless the run is cancelled first.
type Event struct {
	// CorrelationID ties the event to its originating request.
	CorrelationID string `json:"correlation_id,omitempty"`
	// Route names the stage sequence the run follows.
	Route string `json:"route,omitempty"`
	// Stage is empty on terminal events.
	Stage string `json:"stage,omitempty"`
	// Status is the lifecycle phase being reported.
	Status Status `json:"status"`
	// Fragment is a partial content chunk on progress events.
	Fragment string `json:"fragment,omitempty"`
	// Err is a user-safe message on failed events. Internal detail
	// stays in the logs.
	Err string `json:"error,omitempty"`
	// Recovered reports that a failed stage was absorbed and the run
	// continued.
	Recovered bool `json:"recovered,omitempty"`
	// SkipReason accompanies skipped events.
	SkipReason string `json:"skip_reason,omitempty"`
	// Terminal marks the final event of the run.
	Terminal bool `json:"terminal,omitempty"`
	// Answer is the full response text, set on the terminal completed
	// event.
	Answer string `json:"answer,omitempty"`
	// Citations are the context snippets behind the answer, set on
	// the terminal completed event for policy runs.
	Citations []retrieval.Snippet `json:"citations,omitempty"`
	// Degraded reports that the answer was produced without retrieved
	// context after a retrieval failure.
	Degraded bool `json:"degraded,omitempty"`
	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"timestamp"`
}
