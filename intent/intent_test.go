package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyai/policygraph/generation"
	"github.com/complyai/policygraph/session"
)

func TestRuleClassifierPolicyQuestions(t *testing.T) {
	var rules RuleClassifier

	for _, message := range []string{
		"What is our vacation policy?",
		"How do I submit a leave request?",
		"What are the dress code requirements?",
		"Is remote work allowed on Fridays?",
	} {
		intent, ok := rules.Match(message)
		assert.True(t, ok, message)
		assert.Equal(t, IntentPolicyAnalysis, intent, message)
	}
}

func TestRuleClassifierGeneralChat(t *testing.T) {
	var rules RuleClassifier

	for _, message := range []string{
		"Hello, how are you?",
		"What can you help me with?",
		"What did I ask before?",
		"Thanks!",
	} {
		intent, ok := rules.Match(message)
		assert.True(t, ok, message)
		assert.Equal(t, IntentGeneralChat, intent, message)
	}
}

func TestRuleClassifierInconclusive(t *testing.T) {
	var rules RuleClassifier

	_, ok := rules.Match("the quick brown fox")
	assert.False(t, ok)

	_, err := rules.Classify(context.Background(), "the quick brown fox", nil)
	assert.ErrorIs(t, err, ErrClassification)
}

func TestGenerativeClassifierParsesLabel(t *testing.T) {
	gen := &generation.MockGenerator{Response: " Policy-Analysis \n"}
	classifier := NewGenerativeClassifier(gen)

	intent, err := classifier.Classify(context.Background(), "analyze this document", nil)
	require.NoError(t, err)
	assert.Equal(t, IntentPolicyAnalysis, intent)
}

func TestGenerativeClassifierOffScriptDefaultsToGeneral(t *testing.T) {
	gen := &generation.MockGenerator{Response: "I think this is about policies, maybe?"}
	classifier := NewGenerativeClassifier(gen)

	intent, err := classifier.Classify(context.Background(), "hmm", nil)
	require.NoError(t, err)
	assert.Equal(t, IntentGeneralChat, intent)
}

func TestGenerativeClassifierFailure(t *testing.T) {
	gen := &generation.MockGenerator{Err: generation.ErrUnavailable}
	classifier := NewGenerativeClassifier(gen)

	_, err := classifier.Classify(context.Background(), "hmm", nil)
	assert.ErrorIs(t, err, ErrClassification)
}

func TestHybridClassifierRulesShortCircuit(t *testing.T) {
	fallbackCalled := false
	fallback := ClassifierFunc(func(ctx context.Context, message string, history []session.Turn) (Intent, error) {
		fallbackCalled = true
		return IntentGeneralChat, nil
	})

	classifier := NewHybridClassifier(fallback)

	intent, err := classifier.Classify(context.Background(), "What is our vacation policy?", nil)
	require.NoError(t, err)
	assert.Equal(t, IntentPolicyAnalysis, intent)
	assert.False(t, fallbackCalled)
}

func TestHybridClassifierFallsBack(t *testing.T) {
	fallback := ClassifierFunc(func(ctx context.Context, message string, history []session.Turn) (Intent, error) {
		return IntentPolicyAnalysis, nil
	})

	classifier := NewHybridClassifier(fallback)

	intent, err := classifier.Classify(context.Background(), "the quick brown fox", nil)
	require.NoError(t, err)
	assert.Equal(t, IntentPolicyAnalysis, intent)
}

func TestHybridClassifierNoFallback(t *testing.T) {
	classifier := NewHybridClassifier(nil)

	_, err := classifier.Classify(context.Background(), "the quick brown fox", nil)
	assert.ErrorIs(t, err, ErrClassification)
}
