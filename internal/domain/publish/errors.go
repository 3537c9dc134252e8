package publish

import "errors"

var (
	ErrPairNotFound       = errors.New("pair not found")
	ErrMalformedPair      = errors.New("pair is malformed")
	ErrSubjectNotInPair   = errors.New("subject is not part of the pair")
	ErrAlreadyPublished   = errors.New("pair already published for subject")
	ErrNotAuthorized      = errors.New("caller is not the publisher")
	ErrNotComplete        = errors.New("pair is not complete")
	ErrLocked             = errors.New("record is locked by publication")
	ErrEvaluationNotFound = errors.New("evaluation not found")
	ErrCycleClosed        = errors.New("cycle is closed")
	ErrInvalidStatus      = errors.New("invalid submission status")
	ErrInvalidRequest     = errors.New("invalid publish request")
)

// Outcome labels recorded per publish attempt.
const (
	outcomePublished      = "published"
	outcomeNotFound       = "not_found"
	outcomeMalformed      = "malformed"
	outcomeAlready        = "already_published"
	outcomeNotAuthorized  = "not_authorized"
	outcomeNotComplete    = "not_complete"
	outcomeInvalidSubject = "invalid_subject"
	outcomeError          = "error"
)
