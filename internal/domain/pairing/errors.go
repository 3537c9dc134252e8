package pairing

import "errors"

var (
	ErrCycleNotFound       = errors.New("cycle not found")
	ErrPairNotFound        = errors.New("pair not found")
	ErrParticipantRequired = errors.New("participant id is required")
)

// Problems attached to broken pairings.
const (
	ProblemMissingCounterpart = "missing counterpart directional record"
	ProblemNotMirrored        = "directional records are not mirror images"
	ProblemUnexpectedKinds    = "unexpected record kinds for pair"
	ProblemTooManyRecords     = "more than two directional records share the pair id"
	ProblemMissingSelf        = "missing self-assessment for "
)
