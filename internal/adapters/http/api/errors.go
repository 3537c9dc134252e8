package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/cadence/internal/adapters/repository"
	service "github.com/okian/cadence/internal/app"
	"github.com/okian/cadence/internal/domain/generator"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/internal/domain/pairing"
	"github.com/okian/cadence/internal/domain/publish"
	"github.com/okian/cadence/internal/domain/scoring"
)

// ErrBadRequest marks malformed requests.
var ErrBadRequest = errors.New("bad request")

func badRequest(msg string) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, msg)
}

type errorClass struct {
	target error
	status int
	code   string
}

// errorClasses maps domain errors to responses. The first match wins.
var errorClasses = []errorClass{
	{generator.ErrBatchFailed, http.StatusInternalServerError, "batch_failed"},

	{ErrBadRequest, http.StatusBadRequest, "bad_request"},
	{model.ErrInvalidPeriod, http.StatusBadRequest, "bad_request"},
	{generator.ErrStartRequired, http.StatusBadRequest, "start_required"},
	{generator.ErrStartNotAfterLatest, http.StatusBadRequest, "start_not_after_latest"},
	{publish.ErrInvalidRequest, http.StatusBadRequest, "bad_request"},
	{publish.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},
	{pairing.ErrParticipantRequired, http.StatusBadRequest, "bad_request"},
	{repository.ErrInvalidRequest, http.StatusBadRequest, "bad_request"},

	{pairing.ErrCycleNotFound, http.StatusNotFound, "cycle_not_found"},
	{publish.ErrPairNotFound, http.StatusNotFound, "pair_not_found"},
	{pairing.ErrPairNotFound, http.StatusNotFound, "pair_not_found"},
	{publish.ErrEvaluationNotFound, http.StatusNotFound, "evaluation_not_found"},
	{repository.ErrNotFound, http.StatusNotFound, "not_found"},

	{publish.ErrNotAuthorized, http.StatusForbidden, "not_authorized"},

	{generator.ErrDuplicateCycle, http.StatusConflict, "duplicate_cycle"},
	{publish.ErrAlreadyPublished, http.StatusConflict, "already_published"},

	{publish.ErrMalformedPair, http.StatusUnprocessableEntity, "malformed_pair"},
	{publish.ErrSubjectNotInPair, http.StatusUnprocessableEntity, "subject_not_in_pair"},
	{publish.ErrNotComplete, http.StatusUnprocessableEntity, "not_complete"},
	{publish.ErrLocked, http.StatusUnprocessableEntity, "locked"},
	{publish.ErrCycleClosed, http.StatusUnprocessableEntity, "cycle_closed"},
	{scoring.ErrScoreOutOfRange, http.StatusUnprocessableEntity, "score_out_of_range"},

	{service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
}

// classify returns the status code and error code for err.
func classify(err error) (int, string) {
	for _, c := range errorClasses {
		if errors.Is(err, c.target) {
			return c.status, c.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}
