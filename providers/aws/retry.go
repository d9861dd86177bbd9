package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/smithy-go"
)

const (
	pollSettleDelay   = 2 * time.Second
	pollMaxAttempts   = 100
	pollAttemptDelay  = 1 * time.Second
)

// pollUntilSuccess implements the bounded poll-until-success primitive from
// SPEC_FULL.md §4.2: sleep an initial settle delay, then retry fn up to
// pollMaxAttempts times with a fixed delay between attempts, treating any
// error as retryable. Exhaustion surfaces ProvisioningTimeout.
//
// Used for operations that are eventually consistent across AWS's control
// plane — a just-created role is not immediately assumable, a just-created
// topic does not immediately accept an attribute referencing a just-created
// role.
func pollUntilSuccess(ctx context.Context, what string, fn func(ctx context.Context) error) error {
	select {
	case <-time.After(pollSettleDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	var lastErr error
	for attempt := 0; attempt < pollMaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt < pollMaxAttempts-1 {
			select {
			case <-time.After(pollAttemptDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return newError(KindProvisioningTimeout, lastErr, "timed out waiting for %s to become ready", what)
}

// isTransientAPIError reports whether err looks like a throttling or
// service-availability blip worth a short retry, as opposed to a permanent
// failure that should be surfaced immediately.
func isTransientAPIError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException", "ServiceUnavailable",
			"RequestLimitExceeded", "InternalFailure", "InternalServerError":
			return true
		}
	}
	return false
}

// retryTransient retries fn a handful of times with linear backoff when
// isTransientAPIError says the failure is worth retrying, and returns
// immediately otherwise.
func retryTransient(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isTransientAPIError(lastErr) {
			return lastErr
		}
		if i < attempts-1 {
			select {
			case <-time.After(time.Duration(i+1) * 500 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("exhausted %d attempts: %w", attempts, lastErr)
}
