package orggraph

import "errors"

// ErrDuplicateParticipant is returned when two participant records share an id.
var ErrDuplicateParticipant = errors.New("duplicate participant id")
