// Package orchestrator binds the session store, intent classifier,
// retrieval searcher and generation adapter into the two execution
// routes and hands each request to the streaming executor.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/complyai/policygraph/generation"
	"github.com/complyai/policygraph/graph"
	"github.com/complyai/policygraph/intent"
	"github.com/complyai/policygraph/log"
	"github.com/complyai/policygraph/retrieval"
	"github.com/complyai/policygraph/session"
)

// Config carries the per-adapter deadlines and prompt shaping knobs.
type Config struct {
	// HistoryTimeout bounds the session store read.
	HistoryTimeout time.Duration
	// ClassifyTimeout bounds intent classification, including its
	// generative fallback.
	ClassifyTimeout time.Duration
	// RetrieveTimeout bounds the vector search across all scopes.
	RetrieveTimeout time.Duration
	// GenerateTimeout bounds the full streamed completion.
	GenerateTimeout time.Duration
	// PersistTimeout bounds the session store writes.
	PersistTimeout time.Duration
	// HistoryWindow is the number of most recent turns fed to the
	// classifier and the generation prompt.
	HistoryWindow int
}

// DefaultConfig returns the deadlines used when the caller does not
// override them.
func DefaultConfig() Config {
	return Config{
		HistoryTimeout:  5 * time.Second,
		ClassifyTimeout: 10 * time.Second,
		RetrieveTimeout: 10 * time.Second,
		GenerateTimeout: 2 * time.Minute,
		PersistTimeout:  5 * time.Second,
		HistoryWindow:   20,
	}
}

// Orchestrator turns requests into event streams.
type Orchestrator struct {
	store      session.Store
	searcher   retrieval.Searcher
	generator  generation.Generator
	classifier intent.Classifier
	executor   *graph.Executor
	logger     log.Logger
	cfg        Config
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig replaces the default deadlines and prompt knobs.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithExecutor replaces the default executor.
func WithExecutor(e *graph.Executor) Option {
	return func(o *Orchestrator) { o.executor = e }
}

// New builds an Orchestrator over the given adapters.
func New(store session.Store, searcher retrieval.Searcher, generator generation.Generator, classifier intent.Classifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		searcher:   searcher,
		generator:  generator,
		classifier: classifier,
		logger:     log.Default(),
		cfg:        DefaultConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.executor == nil {
		o.executor = graph.NewExecutor(graph.WithLogger(o.logger))
	}
	return o
}

// Handle validates the request, builds its route and starts the run.
// Malformed requests are rejected here, before any stage runs, with an
// error wrapping graph.ErrInvalidInput.
func (o *Orchestrator) Handle(ctx context.Context, req graph.Request) (<-chan graph.Event, error) {
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	st := &graph.State{Request: req}
	if req.RouteHint != "" {
		st.Intent = req.RouteHint
	}

	o.logger.Info("request accepted, session=%s correlation=%s hint=%q",
		req.SessionID, req.CorrelationID, string(req.RouteHint))

	return o.executor.Execute(ctx, o.buildRoute(st), st), nil
}

// query is the text driving classification, retrieval and generation.
// A document-only request gets a fixed analysis instruction.
func query(req graph.Request) string {
	if req.Message != "" {
		return req.Message
	}
	return documentAnalysisQuery
}

// recent returns the trailing window of turns used for prompting.
func recent(turns []session.Turn, window int) []session.Turn {
	if window <= 0 || len(turns) <= window {
		return turns
	}
	return turns[len(turns)-window:]
}
