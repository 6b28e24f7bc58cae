package errutil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/prompter/pkg/utils/logging"
)

// Handle logs the error with its goerr values and stack, and forwards it
// to Sentry when the SDK has been initialized. The error is returned
// as-is for the caller to surface.
func Handle(ctx context.Context, err error, msg string) error {
	if err == nil {
		return nil
	}

	logger := logging.From(ctx)

	var ge *goerr.Error
	if errors.As(err, &ge) {
		logger.Error(msg,
			"error", err.Error(),
			"values", ge.Values(),
			"stack", ge.Stacks(),
		)
	} else {
		logger.Error(msg, "error", err.Error())
	}

	if hub := sentry.CurrentHub(); hub.Client() != nil {
		hub.CaptureException(err)
	}

	return err
}

// HandleHTTP logs the error and writes a JSON error response. The body
// carries only the error text and a timestamp; root causes stay in logs.
func HandleHTTP(ctx context.Context, w http.ResponseWriter, err error, statusCode int) {
	if err == nil {
		return
	}

	_ = Handle(ctx, err, "HTTP error")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	body := map[string]any{
		"error":     err.Error(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if encodeErr := json.NewEncoder(w).Encode(body); encodeErr != nil {
		logging.From(ctx).Error("failed to write error response", "error", encodeErr.Error())
	}
}
