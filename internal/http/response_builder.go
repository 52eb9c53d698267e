package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/0xcafe-io/iz"

	"bilancio/internal/core"
	applog "bilancio/internal/log"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error  string            `json:"error"`
	Fields []core.FieldError `json:"fields,omitempty"`
}

// statusFromError maps domain errors onto HTTP status codes.
func statusFromError(err error) int {
	switch {
	case core.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// errorBody hides internal causes from the caller: only validation and
// not-found errors carry their message.
func errorBody(err error) ErrorBody {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		return ErrorBody{Error: "validation failed", Fields: verr.Fields}
	case errors.Is(err, core.ErrNotFound):
		return ErrorBody{Error: err.Error()}
	default:
		return ErrorBody{Error: "internal error"}
	}
}

// respondError logs server-side failures with their operation and returns
// the mapped response.
func respondError(ctx context.Context, op string, err error) iz.Responder {
	status := statusFromError(err)
	logger := applog.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		fields := applog.NewFields()
		var serr *core.StorageError
		if errors.As(err, &serr) {
			fields[applog.FieldStorageOp] = serr.Op
		}
		applog.NewStructuredLogger(logger).LogError(ctx, "Request failed", err, op, fields)
	} else {
		logger.DebugContext(ctx, "Request rejected", applog.FieldOperation, op, applog.FieldError, err.Error())
	}
	return iz.Respond().Status(status).JSON(errorBody(err))
}

func respondJSON(v any) iz.Responder {
	return iz.Respond().Status(http.StatusOK).JSON(v)
}
