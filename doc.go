// PolicyGraph - Intent-Routed Streaming Orchestration for Policy Compliance Chat
//
// PolicyGraph is the orchestration core of a policy compliance assistant. It
// routes each chat turn or document-violation analysis through a graph of
// reasoning stages, composes retrieved policy context with a language-model
// call, and streams an ordered sequence of stage lifecycle events and token
// fragments for live UI rendering.
//
// # Quick Start
//
// Install the package:
//
//	go get github.com/complyai/policygraph
//
// Basic example:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//
//		"github.com/sashabaranov/go-openai"
//
//		"github.com/complyai/policygraph/generation"
//		"github.com/complyai/policygraph/graph"
//		"github.com/complyai/policygraph/intent"
//		"github.com/complyai/policygraph/orchestrator"
//		"github.com/complyai/policygraph/retrieval"
//		"github.com/complyai/policygraph/session"
//	)
//
//	func main() {
//		client := openai.NewClient("...")
//		gen := generation.NewOpenAIGenerator(client)
//
//		o := orchestrator.New(
//			session.NewMemoryStore(),
//			retrieval.NewMemoryVectorStore(retrieval.NewOpenAIEmbedder(client)),
//			gen,
//			intent.NewHybridClassifier(intent.NewGenerativeClassifier(gen)),
//		)
//
//		events, err := o.Handle(context.Background(), graph.Request{
//			SessionID: "demo",
//			Message:   "How many vacation days do I get?",
//		})
//		if err != nil {
//			panic(err)
//		}
//		for ev := range events {
//			if ev.Status == graph.StatusProgress {
//				fmt.Print(ev.Fragment)
//			}
//		}
//	}
//
// # Architecture
//
// The module is organized into focused packages:
//
//   - graph: the execution graph, streaming executor and event stream
//   - orchestrator: route assembly binding stages to the adapters below
//   - intent: keyword-rule and generative intent classification
//   - retrieval: scoped vector search over policy text (in-memory, pgvector)
//   - generation: language-model adapters with retry and streaming
//   - session: per-session conversation history (memory, Redis, Postgres, SQLite)
//   - log: the logging facade used across the module
//
// See the examples directory for runnable programs.
package policygraph
