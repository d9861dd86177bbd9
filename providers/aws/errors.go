package aws

import (
	"errors"
	"fmt"
)

// Kind classifies the errors this provider can surface at its façade
// boundary. See SPEC_FULL.md §7.
type Kind string

const (
	// KindProvisioningError means an SDK call in Initialize failed permanently.
	KindProvisioningError Kind = "ProvisioningError"
	// KindProvisioningTimeout means a bounded poll-until-success exhausted its attempts.
	KindProvisioningTimeout Kind = "ProvisioningTimeout"
	// KindNameCollision means a function with the derived name already existed.
	KindNameCollision Kind = "NameCollision"
	// KindRemoteInvocationFailure means the cloud function itself signaled failure.
	KindRemoteInvocationFailure Kind = "RemoteInvocationFailure"
	// KindCancelled means a pending call was aborted by teardown.
	KindCancelled Kind = "Cancelled"
	// KindMalformedManifest means CleanupResources was given an unusable manifest.
	KindMalformedManifest Kind = "MalformedManifest"
)

// Error is the structured error type returned across the provider façade.
// Internal, best-effort failures (IAM lookups, individual cleanup steps,
// log delivery) are never wrapped in this type — they are logged and
// swallowed at the point of occurrence instead.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, &Error{Kind: KindCancelled}) work on kind alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind != "" && t.Kind == e.Kind
	}
	return false
}

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// ErrCancelled is the sentinel a caller can compare pending-call failures
// against with errors.Is.
var ErrCancelled = &Error{Kind: KindCancelled, Message: "call cancelled by teardown"}

// ErrNameCollision is the sentinel for a pre-existing function with the
// derived name.
var ErrNameCollision = &Error{Kind: KindNameCollision, Message: "function name already in use"}
