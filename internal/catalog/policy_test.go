package catalog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDecideAcceptsHighConfidence(t *testing.T) {
	match := MatchResult{ProductID: uuid.New(), Method: MatchGTINExact, Confidence: 1.0}
	decision, err := Decide(match, 0.9, false)
	require.NoError(t, err)
	require.Equal(t, ActionAccept, decision.Action)
	require.False(t, decision.NeedsReview)
}

func TestDecideFlagsLowConfidenceForReview(t *testing.T) {
	match := MatchResult{ProductID: uuid.New(), Method: MatchFuzzyName, Confidence: 0.7}
	decision, err := Decide(match, 0.9, true)
	require.NoError(t, err)
	require.Equal(t, ActionReview, decision.Action)
	require.True(t, decision.NeedsReview)
}

func TestDecideBoundaryConfidenceAccepts(t *testing.T) {
	match := MatchResult{ProductID: uuid.New(), Method: MatchSKUExact, Confidence: 0.9}
	decision, err := Decide(match, 0.9, false)
	require.NoError(t, err)
	require.Equal(t, ActionAccept, decision.Action)
}

func TestDecideNoMatchCreatesWhenAllowed(t *testing.T) {
	decision, err := Decide(MatchResult{Method: MatchNone}, 0.9, true)
	require.NoError(t, err)
	require.Equal(t, ActionCreateNew, decision.Action)
	require.False(t, decision.NeedsReview)
}

func TestDecideNoMatchFailsWhenCreationDisabled(t *testing.T) {
	_, err := Decide(MatchResult{Method: MatchNone}, 0.9, false)
	require.ErrorIs(t, err, ErrNoMatch)
}

func TestDecideZeroThresholdFallsBackToDefault(t *testing.T) {
	match := MatchResult{ProductID: uuid.New(), Method: MatchFuzzyName, Confidence: 0.85}
	decision, err := Decide(match, 0, true)
	require.NoError(t, err)
	require.Equal(t, ActionReview, decision.Action)
}
