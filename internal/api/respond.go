package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dennisdiepolder/monti/wfm/internal/directory"
	"github.com/dennisdiepolder/monti/wfm/internal/storage"
	"github.com/rs/zerolog"
)

// envelope is the success body of every resource endpoint
type envelope struct {
	Data interface{} `json:"data"`
}

// validationError is a client mistake detected before any store call
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func invalid(format string, args ...interface{}) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeErr maps domain errors onto HTTP statuses and logs server-side failures
func writeErr(w http.ResponseWriter, logger zerolog.Logger, err error, op string) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("op", op).Msg("request failed")
	} else {
		logger.Debug().Err(err).Str("op", op).Int("status", status).Msg("request rejected")
	}
	writeError(w, status, msg)
}

func classify(err error) (int, string) {
	var verr *validationError
	var upstream *directory.UpstreamError

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.msg
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, directory.ErrAgentNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, storage.ErrDuplicate),
		errors.Is(err, storage.ErrScheduleConflict),
		errors.Is(err, storage.ErrPendingSwap),
		errors.Is(err, storage.ErrAgentHasSchedules),
		errors.Is(err, storage.ErrAgentHasHistory),
		errors.Is(err, storage.ErrSwapNotPending),
		errors.Is(err, storage.ErrInsufficientPoints),
		errors.Is(err, storage.ErrOutOfStock),
		errors.Is(err, storage.ErrAlreadyCompleted):
		return http.StatusConflict, err.Error()
	case errors.As(err, &upstream):
		return http.StatusInternalServerError, fmt.Sprintf("agent directory request failed with status %d", upstream.StatusCode)
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return invalid("invalid request body: %v", err)
	}
	return nil
}

// parseTime accepts RFC 3339 timestamps and plain YYYY-MM-DD dates (UTC midnight)
func parseTime(field, value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	return time.Time{}, invalid("%s must be an RFC 3339 timestamp or YYYY-MM-DD date", field)
}

func optionalTime(r *http.Request, field string) (time.Time, error) {
	v := r.URL.Query().Get(field)
	if v == "" {
		return time.Time{}, nil
	}
	return parseTime(field, v)
}

func queryInt(r *http.Request, field string, def int) (int, error) {
	v := r.URL.Query().Get(field)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, invalid("%s must be a non-negative integer", field)
	}
	return n, nil
}

func queryBool(r *http.Request, field string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(field))
	return b
}
