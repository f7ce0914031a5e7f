package gateway

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	cases := map[string]ErrorClass{
		"unsupported media type":       ClassPermanent,
		"malformed request body":       ClassPermanent,
		"validation failed":            ClassPermanent,
		"index write conflict":         ClassConflict,
		"throttled, slow down":         ClassTransient,
		"429 too many requests":        ClassTransient,
		"context deadline exceeded":    ClassTransient,
		"service unavailable":          ClassTransient,
		"connection reset by peer":     ClassTransient,
		"something entirely unhelpful": ClassTransient,
	}
	for msg, want := range cases {
		if got := ClassifyError(errors.New(msg)); got != want {
			t.Fatalf("classify %q: got %s want %s", msg, got, want)
		}
	}
}

func TestClassifyErrorHonorsModelErrorFlag(t *testing.T) {
	perm := &ModelInvocationError{Capability: "understand", Permanent: true, Err: errors.New("nope")}
	if got := ClassifyError(perm); got != ClassPermanent {
		t.Fatalf("permanent model error classified as %s", got)
	}
	wrapped := fmt.Errorf("stage failed: %w", perm)
	if got := ClassifyError(wrapped); got != ClassPermanent {
		t.Fatalf("wrapped permanent model error classified as %s", got)
	}
	trans := &ModelInvocationError{Capability: "embed_text", Err: errors.New("timeout")}
	if got := ClassifyError(trans); got != ClassTransient {
		t.Fatalf("transient model error classified as %s", got)
	}
}

func TestClassifyErrorSurvivesMessageFlattening(t *testing.T) {
	perm := &ModelInvocationError{Capability: "understand", Permanent: true, Err: errors.New("rejected")}
	flattened := errors.New(perm.Error())
	if got := ClassifyError(flattened); got != ClassPermanent {
		t.Fatalf("flattened permanent error classified as %s", got)
	}
}

func TestPermanentStatus(t *testing.T) {
	for _, code := range []int{400, 413, 415, 422} {
		if !permanentStatus(code) {
			t.Fatalf("status %d should be permanent", code)
		}
	}
	for _, code := range []int{429, 500, 502, 503} {
		if permanentStatus(code) {
			t.Fatalf("status %d should be retryable", code)
		}
	}
}
