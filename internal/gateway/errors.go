package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClass buckets remote-call failures for the retry policy.
type ErrorClass string

const (
	ClassTransient ErrorClass = "transient"
	ClassPermanent ErrorClass = "permanent"
	ClassConflict  ErrorClass = "conflict"
)

// ModelInvocationError wraps a failed remote model call. Permanent marks
// rejections that retrying cannot fix (unsupported media, malformed input).
type ModelInvocationError struct {
	Capability string
	Permanent  bool
	Err        error
}

func (e *ModelInvocationError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("model invocation %s failed (%s): %v", e.Capability, kind, e.Err)
}

func (e *ModelInvocationError) Unwrap() error { return e.Err }

// ClassifyError decides whether a remote failure is worth retrying.
// Errors that crossed an activity boundary arrive flattened to their message,
// so classification falls back to string matching. Unknown errors default to
// transient so a flaky upstream does not burn jobs.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ""
	}
	var mie *ModelInvocationError
	if errors.As(err, &mie) {
		if mie.Permanent {
			return ClassPermanent
		}
		return ClassTransient
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "write conflict"):
		return ClassConflict
	case strings.Contains(e, "(permanent)"),
		strings.Contains(e, "unsupported media"),
		strings.Contains(e, "unsupported format"),
		strings.Contains(e, "malformed"),
		strings.Contains(e, "invalid input"),
		strings.Contains(e, "validation"):
		return ClassPermanent
	default:
		return ClassTransient
	}
}

// permanentStatus reports whether an HTTP status from the model endpoint
// marks a permanent rejection.
func permanentStatus(code int) bool {
	return code == 400 || code == 413 || code == 415 || code == 422
}
