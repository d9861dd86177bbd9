// Package trampoline holds the reference implementations of the two call
// shapes a cloud function's handler can take, written against the wire
// types the provider defines in providers/aws. Neither entry point is
// shipped as this project's own Lambda handler — they exist so both sides
// of the wire agree on field names, and they are exercised by this
// package's own tests; the provider's tests do not call them.
package trampoline

import (
	"context"
	"encoding/json"
	"fmt"

	cloudifyaws "github.com/cloudifyhq/provider-aws/providers/aws"
)

// Handler is the user function body a trampoline dispatches to: resolve
// Name against whatever the packager bundled, and return its result or an
// error.
type Handler func(ctx context.Context, name string, args []any) (any, error)

// Direct is the trampoline shape for direct-invoke dispatch: it receives
// the raw FunctionCall payload as a Lambda event and its return value
// becomes the Lambda response body, verbatim, with no queue involved.
func Direct(handler Handler) func(ctx context.Context, payload json.RawMessage) (cloudifyaws.FunctionReturn, error) {
	return func(ctx context.Context, payload json.RawMessage) (cloudifyaws.FunctionReturn, error) {
		var call cloudifyaws.FunctionCall
		if err := json.Unmarshal(payload, &call); err != nil {
			return cloudifyaws.FunctionReturn{}, fmt.Errorf("trampoline: malformed call payload: %w", err)
		}
		return runHandler(ctx, handler, call), nil
	}
}

// SNSPublisher is the minimal surface QueueTrampoline needs to deliver a
// response: one SendResponse call per call, addressed to its response
// queue URL. Kept narrow, and satisfied in production by SQSPublisher
// (which wraps *sqs.Client), so tests can substitute a fake without
// depending on the full SDK client.
type SNSPublisher interface {
	SendResponse(ctx context.Context, queueURL string, body []byte, callID string) error
}

// QueueTrampoline is the trampoline shape for queue-mode dispatch: it
// receives an SNS-delivered FunctionCall, runs the handler, and sends the
// FunctionReturn to the call's ResponseQueueUrl, carrying the CallId as a
// message attribute so the collector on the other end can correlate it
// without touching the body.
func QueueTrampoline(handler Handler, publisher SNSPublisher) func(ctx context.Context, payload json.RawMessage) error {
	return func(ctx context.Context, payload json.RawMessage) error {
		var call cloudifyaws.FunctionCall
		if err := json.Unmarshal(payload, &call); err != nil {
			return fmt.Errorf("trampoline: malformed call payload: %w", err)
		}
		if call.ResponseQueueURL == "" {
			return fmt.Errorf("trampoline: call %s has no response queue", call.CallID)
		}

		ret := runHandler(ctx, handler, call)
		body, err := json.Marshal(ret)
		if err != nil {
			return fmt.Errorf("trampoline: failed to marshal response for call %s: %w", call.CallID, err)
		}

		return publisher.SendResponse(ctx, call.ResponseQueueURL, body, call.CallID)
	}
}

func runHandler(ctx context.Context, handler Handler, call cloudifyaws.FunctionCall) cloudifyaws.FunctionReturn {
	result, err := handler(ctx, call.Name, call.Args)
	if err != nil {
		return cloudifyaws.FunctionReturn{
			Type: "error",
			Value: cloudifyaws.FunctionOutcome{
				Name:    "HandlerError",
				Message: err.Error(),
			},
		}
	}
	return cloudifyaws.FunctionReturn{
		Type:  "value",
		Value: cloudifyaws.FunctionOutcome{Result: result},
	}
}
