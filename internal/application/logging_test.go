package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/example/roombooking/internal/logging"
	"github.com/example/roombooking/internal/transport"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLoggerPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var base, scoped bytes.Buffer
	baseLogger := slog.New(slog.NewJSONHandler(&base, nil))
	ctx := logging.ContextWithLogger(context.Background(), slog.New(slog.NewJSONHandler(&scoped, nil)))

	serviceLogger(ctx, baseLogger, "Controller", "Refresh", "kind", "room").Info("hello")

	if base.Len() != 0 {
		t.Fatalf("expected base logger to stay silent, got %s", base.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(scoped.Bytes(), &entry); err != nil {
		t.Fatalf("decode log entry: %v", err)
	}
	if entry["service"] != "Controller" || entry["operation"] != "Refresh" || entry["kind"] != "room" {
		t.Fatalf("unexpected attributes: %v", entry)
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"":               nil,
		"circuit_open":   fmt.Errorf("%w: %w", ErrBackend, transport.ErrCircuitOpen),
		"transport":      fmt.Errorf("%w: %w", ErrBackend, &transport.StatusError{StatusCode: 500}),
		"not_found":      fmt.Errorf("wrapped: %w", ErrNotFound),
		"unknown_kind":   ErrUnknownKind,
		"read_only":      ErrReadOnlyKind,
		"shape_mismatch": ErrShapeMismatch,
		"validation":     &ValidationError{FieldErrors: map[string]string{"title": "required"}},
		"unexpected":     errors.New("boom"),
	}
	for want, err := range cases {
		if got := ErrorKind(err); got != want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", err, got, want)
		}
	}
}
