package catalog

// Action is the decision taken for one matched row.
type Action string

const (
	ActionAccept    Action = "ACCEPT"
	ActionCreateNew Action = "CREATE_NEW"
	ActionReview    Action = "REVIEW"
)

// Decision is the policy outcome for one row. ActionReview still creates
// or updates the link so the row is not lost; it only flags it.
type Decision struct {
	Action      Action
	NeedsReview bool
}

// Decide maps a match result onto an action given operator thresholds.
// It is a pure function; ErrNoMatch is returned when nothing matched and
// product creation is disabled.
func Decide(match MatchResult, minAutoMatchConfidence float64, createNewProducts bool) (Decision, error) {
	if minAutoMatchConfidence <= 0 {
		minAutoMatchConfidence = DefaultMinAutoMatchConfidence
	}
	if !match.Matched() {
		if createNewProducts {
			return Decision{Action: ActionCreateNew}, nil
		}
		return Decision{}, ErrNoMatch
	}
	if match.Confidence >= minAutoMatchConfidence {
		return Decision{Action: ActionAccept}, nil
	}
	return Decision{Action: ActionReview, NeedsReview: true}, nil
}
