package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/roombooking/internal/application"
	"github.com/example/roombooking/internal/logging"
)

var (
	errBadRequestBody = errors.New("request body is malformed")
	errMissingID      = errors.New("entity id is required")
	errInvalidQuery   = errors.New("query parameters are invalid")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	switch {
	case errors.Is(err, application.ErrNotFound), errors.Is(err, application.ErrUnknownKind):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			ErrorCode: application.ErrorKind(err),
			Message:   statusMessage(http.StatusNotFound),
		})
	case errors.Is(err, application.ErrReadOnlyKind):
		r.writeJSON(ctx, w, http.StatusMethodNotAllowed, errorResponse{
			ErrorCode: application.ErrorKind(err),
			Message:   "this collection is read-only",
		})
	case errors.Is(err, application.ErrBackend), errors.Is(err, application.ErrShapeMismatch):
		r.loggerFor(ctx).ErrorContext(ctx, "backend failure", "error", err)
		r.writeJSON(ctx, w, http.StatusBadGateway, errorResponse{
			ErrorCode: application.ErrorKind(err),
			Message:   statusMessage(http.StatusBadGateway),
		})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				ErrorCode: "validation",
				Message:   statusMessage(http.StatusUnprocessableEntity),
				Errors:    vErr.FieldErrors,
			})
			return
		}

		r.loggerFor(ctx).ErrorContext(ctx, "unexpected failure", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: statusMessage(http.StatusInternalServerError)})
	}
}

// writeFetchOutcome reports a refresh. A failed fetch whose cache is still
// usable is a success for the caller.
func (r responder) writeFetchOutcome(ctx context.Context, w http.ResponseWriter, outcome application.FetchOutcome) {
	status := http.StatusOK
	switch {
	case errors.Is(outcome.Err, application.ErrUnknownKind):
		status = http.StatusNotFound
	case outcome.State == application.FetchFailed && !outcome.SoftFailure():
		status = http.StatusBadGateway
	case errors.Is(outcome.Err, context.Canceled), errors.Is(outcome.Err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	r.writeJSON(ctx, w, status, outcome)
}

func (r responder) writeMutationOutcome(ctx context.Context, w http.ResponseWriter, outcome application.MutationOutcome) {
	switch outcome.State {
	case application.MutationApplied:
		switch outcome.Operation {
		case application.OperationCreate:
			r.writeJSON(ctx, w, http.StatusCreated, outcome)
		case application.OperationDelete:
			r.writeJSON(ctx, w, http.StatusNoContent, nil)
		default:
			r.writeJSON(ctx, w, http.StatusOK, outcome)
		}
	case application.MutationRejected:
		status := http.StatusUnprocessableEntity
		switch {
		case errors.Is(outcome.Err, application.ErrUnknownKind):
			status = http.StatusNotFound
		case errors.Is(outcome.Err, application.ErrReadOnlyKind):
			status = http.StatusMethodNotAllowed
		}
		r.writeJSON(ctx, w, status, outcome)
	default:
		r.writeJSON(ctx, w, http.StatusBadGateway, outcome)
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "the request is invalid"
	case http.StatusNotFound:
		return "the requested resource was not found"
	case http.StatusMethodNotAllowed:
		return "method not allowed"
	case http.StatusUnprocessableEntity:
		return "the submitted values are invalid"
	case http.StatusBadGateway:
		return "the booking backend could not be reached"
	default:
		return "internal server error"
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
