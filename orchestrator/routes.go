package orchestrator

import (
	"context"

	"github.com/complyai/policygraph/generation"
	"github.com/complyai/policygraph/graph"
	"github.com/complyai/policygraph/intent"
	"github.com/complyai/policygraph/retrieval"
	"github.com/complyai/policygraph/session"
)

// buildRoute assembles the stage sequence for one request. With an
// explicit route hint the full sequence is fixed up front and the
// classification stage is recorded as skipped; without one the shared
// prefix classifies first and a branch picks the continuation.
func (o *Orchestrator) buildRoute(st *graph.State) graph.Route {
	// Tracks what the run has already written, so that best-effort
	// cleanup after a fatal failure or disconnect never duplicates a
	// turn.
	var userSaved, assistantSaved bool

	validate := graph.Stage{
		Name: graph.StageValidate,
		Run: func(ctx context.Context, st *graph.State, emit func(string)) error {
			return st.Request.Validate()
		},
	}

	loadHistory := graph.Stage{
		Name:    graph.StageLoadHistory,
		Timeout: o.cfg.HistoryTimeout,
		Run: func(ctx context.Context, st *graph.State, emit func(string)) error {
			turns, err := o.store.Load(ctx, st.Request.SessionID)
			if err != nil {
				return err
			}
			st.History = turns
			return nil
		},
	}

	classify := graph.Stage{
		Name:        graph.StageClassifyIntent,
		Timeout:     o.cfg.ClassifyTimeout,
		Recoverable: true,
		Run: func(ctx context.Context, st *graph.State, emit func(string)) error {
			label, err := o.classifier.Classify(ctx, query(st.Request), recent(st.History, o.cfg.HistoryWindow))
			if err != nil {
				return err
			}
			st.Intent = label
			return nil
		},
		// An unclassifiable request stays available as plain chat
		// rather than aborting.
		Recover: func(st *graph.State) {
			st.Intent = intent.IntentGeneralChat
		},
	}

	retrieve := graph.Stage{
		Name:        graph.StageRetrieveContext,
		Timeout:     o.cfg.RetrieveTimeout,
		Recoverable: true,
		Run: func(ctx context.Context, st *graph.State, emit func(string)) error {
			snippets, err := retrieval.SearchScopes(ctx, o.searcher, query(st.Request), st.Request.SessionID,
				retrieval.ScopeCompany, retrieval.ScopeInternational, retrieval.ScopeSession)
			if err != nil {
				return err
			}
			st.Snippets = snippets
			return nil
		},
		// Answer from an empty context and say so, rather than fail.
		Recover: func(st *graph.State) {
			st.Snippets = nil
			st.Degraded = true
		},
	}

	generate := graph.Stage{
		Name:    graph.StageGenerateResponse,
		Timeout: o.cfg.GenerateTimeout,
		Run: func(ctx context.Context, st *graph.State, emit func(string)) error {
			prompt := generation.Prompt{
				System:  o.systemPrompt(st),
				History: recent(st.History, o.cfg.HistoryWindow),
				User:    o.userMessage(st),
			}
			answer, err := o.generator.Stream(ctx, prompt, st.Snippets, emit)
			if err != nil {
				return err
			}
			st.Answer = answer
			st.AnswerComplete = true
			return nil
		},
	}

	persist := graph.Stage{
		Name:    graph.StagePersistHistory,
		Timeout: o.cfg.PersistTimeout,
		// A save failure is logged and reported per stage but never
		// turns a produced answer into a failed request.
		Recoverable: true,
		Run: func(ctx context.Context, st *graph.State, emit func(string)) error {
			if err := o.saveUserTurn(ctx, st, &userSaved); err != nil {
				return err
			}
			return o.saveAssistantTurn(ctx, st, &assistantSaved)
		},
	}

	cleanup := func(ctx context.Context, st *graph.State) error {
		if err := o.saveUserTurn(ctx, st, &userSaved); err != nil {
			return err
		}
		// A truncated stream is never committed as an assistant turn.
		if !st.AnswerComplete {
			return nil
		}
		return o.saveAssistantTurn(ctx, st, &assistantSaved)
	}

	if st.Request.RouteHint != "" {
		classify.Run = nil
		classify.Skipped = true
		classify.SkipReason = "explicit route hint"

		stages := []graph.Stage{validate, loadHistory, classify}
		name := graph.RouteGeneral
		if st.Request.RouteHint == intent.IntentPolicyAnalysis {
			name = graph.RoutePolicy
			stages = append(stages, retrieve)
		}
		stages = append(stages, generate, persist)
		return graph.Route{Name: name, Stages: stages, Cleanup: cleanup}
	}

	return graph.Route{
		Stages: []graph.Stage{validate, loadHistory, classify},
		Branch: &graph.Branch{
			Pick: func(st *graph.State) string {
				if st.Intent == intent.IntentPolicyAnalysis {
					return graph.RoutePolicy
				}
				return graph.RouteGeneral
			},
			Tails: map[string][]graph.Stage{
				graph.RoutePolicy:  {retrieve, generate, persist},
				graph.RouteGeneral: {generate, persist},
			},
		},
		Cleanup: cleanup,
	}
}

// systemPrompt picks the route-appropriate system prompt.
func (o *Orchestrator) systemPrompt(st *graph.State) string {
	if st.Intent == intent.IntentPolicyAnalysis {
		return policySystemPrompt
	}
	return generalSystemPrompt
}

// userMessage is the text presented as the user's message; the
// generation adapter renders retrieved context around it.
func (o *Orchestrator) userMessage(st *graph.State) string {
	msg := query(st.Request)
	if st.Request.DocumentRef != "" {
		msg += "\n\nReferenced document: " + st.Request.DocumentRef
	}
	return msg
}

func (o *Orchestrator) saveUserTurn(ctx context.Context, st *graph.State, saved *bool) error {
	if *saved {
		return nil
	}
	turn := session.NewTurn(session.RoleUser, query(st.Request))
	if st.Request.DocumentRef != "" {
		turn.Metadata = map[string]any{"document_ref": st.Request.DocumentRef}
	}
	if err := o.store.Append(ctx, st.Request.SessionID, turn); err != nil {
		return err
	}
	*saved = true
	return nil
}

func (o *Orchestrator) saveAssistantTurn(ctx context.Context, st *graph.State, saved *bool) error {
	if *saved {
		return nil
	}
	turn := session.NewTurn(session.RoleAssistant, st.Answer)
	meta := map[string]any{}
	if len(st.Snippets) > 0 {
		ids := make([]string, 0, len(st.Snippets))
		for _, s := range st.Snippets {
			ids = append(ids, s.SourceID)
		}
		meta["citations"] = ids
	}
	if st.Degraded {
		meta["degraded"] = true
	}
	if len(meta) > 0 {
		turn.Metadata = meta
	}
	if err := o.store.Append(ctx, st.Request.SessionID, turn); err != nil {
		return err
	}
	*saved = true
	return nil
}
