// Package intent labels incoming requests so the execution graph can
// pick a route. Classification tries cheap keyword rules first and
// only consults a generative model when the rules are inconclusive.
package intent

import (
	"context"
	"errors"
	"strings"

	"github.com/complyai/policygraph/generation"
	"github.com/complyai/policygraph/session"
)

// ErrClassification is returned when no label could be produced.
// Callers keep the system available by defaulting to IntentGeneralChat
// rather than aborting; the safer default exposes no document data.
var ErrClassification = errors.New("classification failed")

// Intent is the label assigned to a request.
type Intent string

const (
	// IntentPolicyAnalysis routes through retrieval-backed analysis.
	IntentPolicyAnalysis Intent = "policy-analysis"
	// IntentGeneralChat routes through plain conversation.
	IntentGeneralChat Intent = "general-chat"
)

// Classifier labels a message given recent history.
type Classifier interface {
	Classify(ctx context.Context, message string, history []session.Turn) (Intent, error)
}

// ClassifierFunc is a function adapter for Classifier.
type ClassifierFunc func(ctx context.Context, message string, history []session.Turn) (Intent, error)

// Classify implements the Classifier interface.
func (f ClassifierFunc) Classify(ctx context.Context, message string, history []session.Turn) (Intent, error) {
	return f(ctx, message, history)
}

var policyKeywords = []string{
	"policy", "policies", "hr", "human resources", "vacation", "leave", "sick", "holiday",
	"dress code", "attendance", "remote work", "work from home", "benefits", "insurance",
	"harassment", "discrimination", "complaint", "procedure", "handbook", "employee",
	"employment", "contract", "agreement", "disciplinary", "termination", "salary",
	"pay", "compensation", "bonus", "raise", "promotion", "performance", "training",
	"onboarding", "orientation", "safety", "security", "compliance",
	"regulation", "legal", "workplace", "violation",
}

var generalKeywords = []string{
	"hello", "hi", "hey", "good morning", "good afternoon", "good evening",
	"how are you", "what's up", "thanks", "thank you", "bye", "goodbye",
	"what can you", "what do you", "how can you", "what are you", "help me",
	"capabilities", "features",
	"previous", "before", "earlier", "last time", "conversation", "history",
	"what did i", "recall", "remember",
}

// RuleClassifier labels messages by keyword matching. The second
// return reports whether the rules reached a verdict at all.
type RuleClassifier struct{}

// Match returns the rule-based label and whether one was found.
// Policy keywords win over general ones, mirroring the bias toward
// sending borderline policy questions through retrieval.
func (RuleClassifier) Match(message string) (Intent, bool) {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, kw := range policyKeywords {
		if strings.Contains(lower, kw) {
			return IntentPolicyAnalysis, true
		}
	}
	for _, kw := range generalKeywords {
		if strings.Contains(lower, kw) {
			return IntentGeneralChat, true
		}
	}
	return "", false
}

// Classify implements Classifier. Inconclusive rules are a
// classification failure; use HybridClassifier for a generative
// fallback instead.
func (c RuleClassifier) Classify(ctx context.Context, message string, history []session.Turn) (Intent, error) {
	if intent, ok := c.Match(message); ok {
		return intent, nil
	}
	return "", ErrClassification
}

const classifierPrompt = `You are an intent classifier for a policy compliance system.
Classify the user's message into exactly one category:

1. "policy-analysis" - questions about company policies, HR procedures, compliance, the employee handbook, or document violations
2. "general-chat" - casual conversation, questions about what the system can do, or questions about the conversation history

Respond with ONLY the category name. When in doubt, answer "general-chat".`

// GenerativeClassifier asks a generation adapter for the label.
type GenerativeClassifier struct {
	generator generation.Generator
}

// NewGenerativeClassifier creates a model-backed classifier.
func NewGenerativeClassifier(generator generation.Generator) *GenerativeClassifier {
	return &GenerativeClassifier{generator: generator}
}

// Classify implements Classifier.
func (c *GenerativeClassifier) Classify(ctx context.Context, message string, history []session.Turn) (Intent, error) {
	answer, err := c.generator.Complete(ctx, generation.Prompt{
		System:  classifierPrompt,
		History: history,
		User:    message,
	}, nil)
	if err != nil {
		return "", errors.Join(ErrClassification, err)
	}

	switch Intent(strings.ToLower(strings.TrimSpace(answer))) {
	case IntentPolicyAnalysis:
		return IntentPolicyAnalysis, nil
	case IntentGeneralChat:
		return IntentGeneralChat, nil
	default:
		// The model answered off-script; treat it like "in doubt".
		return IntentGeneralChat, nil
	}
}

// HybridClassifier tries keyword rules first and falls back to a
// generative classifier when the rules are inconclusive.
type HybridClassifier struct {
	rules    RuleClassifier
	fallback Classifier
}

// NewHybridClassifier creates the rules-then-model classifier.
func NewHybridClassifier(fallback Classifier) *HybridClassifier {
	return &HybridClassifier{fallback: fallback}
}

// Classify implements Classifier.
func (c *HybridClassifier) Classify(ctx context.Context, message string, history []session.Turn) (Intent, error) {
	if intent, ok := c.rules.Match(message); ok {
		return intent, nil
	}
	if c.fallback == nil {
		return "", ErrClassification
	}
	return c.fallback.Classify(ctx, message, history)
}
