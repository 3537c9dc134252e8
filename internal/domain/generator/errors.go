package generator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/cadence/internal/domain/model"
)

var (
	ErrStartRequired       = errors.New("explicit start month required: no cycle exists yet")
	ErrDuplicateCycle      = errors.New("cycle already exists")
	ErrStartNotAfterLatest = errors.New("start month must follow the latest cycle")
	ErrBatchFailed         = errors.New("generation batch failed")
)

// DuplicateCycleError lists the target months that already have a cycle.
type DuplicateCycleError struct {
	CycleIDs []string
}

func (e *DuplicateCycleError) Error() string {
	return fmt.Sprintf("cycle already exists for %s", strings.Join(e.CycleIDs, ", "))
}

func (e *DuplicateCycleError) Is(target error) bool {
	return target == ErrDuplicateCycle
}

// BatchError reports a failed write. Months in CompletedCycleIDs were fully
// written; FailedPeriod was not, and a later run resumes from it.
type BatchError struct {
	CompletedCycleIDs []string
	FailedPeriod      model.Period
	Batch             int
	Err               error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("generate %s: batch %d: %v (completed: [%s])",
		e.FailedPeriod, e.Batch, e.Err, strings.Join(e.CompletedCycleIDs, ", "))
}

func (e *BatchError) Unwrap() error { return e.Err }

func (e *BatchError) Is(target error) bool {
	return target == ErrBatchFailed
}
