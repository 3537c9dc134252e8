package scoring

import "errors"

var (
	ErrScoreOutOfRange = errors.New("sub-score out of range")
	ErrNoScores        = errors.New("evaluation has no scores")
)
