package approval

type OutcomeKind int

const (
	OutcomeRecorded OutcomeKind = iota
	OutcomeThresholdReached
	OutcomeIgnored
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRecorded:
		return "recorded"
	case OutcomeThresholdReached:
		return "threshold_reached"
	case OutcomeIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// IgnoreReason explains why a reaction did not change the tally.
type IgnoreReason string

const (
	ReasonNone             IgnoreReason = ""
	ReasonAlreadyFinalized IgnoreReason = "already_finalized"
	ReasonExpired          IgnoreReason = "expired"
	ReasonDuplicateVoter   IgnoreReason = "duplicate_voter"
	ReasonInvalidTimestamp IgnoreReason = "invalid_timestamp"
)

// ReactionOutcome is the result of RecordReaction.
// Count is the distinct voter count after the reaction was applied.
// Candidate is a snapshot taken at the same moment.
type ReactionOutcome struct {
	Kind      OutcomeKind
	Reason    IgnoreReason
	Count     int
	Candidate Candidate
}

// Label is used as a metrics and log value.
func (o ReactionOutcome) Label() string {
	if o.Kind == OutcomeIgnored {
		return string(o.Reason)
	}
	return o.Kind.String()
}
