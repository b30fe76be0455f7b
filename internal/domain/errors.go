package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ValidationError reports malformed caller input. Mapped to 400 and never
// retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NotFoundError reports an unknown storyboard identifier. Mapped to 404.
type NotFoundError struct {
	StoryboardID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("storyboard %s not found", e.StoryboardID)
}

// RangeError reports an out-of-bounds frame index. Mapped to 400.
type RangeError struct {
	FrameIndex int
	FrameCount int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("frame index %d out of range (storyboard has %d frames)", e.FrameIndex, e.FrameCount)
}

// AuthError reports a credential or token-exchange failure. Fatal for the
// orchestration run, never retried, and surfaced with a redacted message.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Redacted returns a caller-safe message that does not leak credential
// material or upstream response bodies.
func (e *AuthError) Redacted() string {
	return fmt.Sprintf("authentication with the generation provider failed (%s)", e.Op)
}

// PlanError reports a planning call that did not yield exactly FrameCount
// frame descriptions. Raw carries the unparsed model text for diagnostics.
type PlanError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("plan: %s", e.Reason)
}

func (e *PlanError) Unwrap() error { return e.Err }

// UpstreamTransientError reports a 5xx or network failure from a provider
// call. Retried locally with fixed backoff, up to the attempt cap.
type UpstreamTransientError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamTransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream returned HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream call failed: %v", e.Err)
}

func (e *UpstreamTransientError) Unwrap() error { return e.Err }

// UpstreamQuotaError reports a 4xx quota/permission signal from a model
// tier. Triggers a one-shot fallback to the lower tier instead of a retry.
type UpstreamQuotaError struct {
	StatusCode int
	Model      string
}

func (e *UpstreamQuotaError) Error() string {
	return fmt.Sprintf("model %s rejected the request with HTTP %d (quota or permission)", e.Model, e.StatusCode)
}

// UpstreamShapeError reports a 2xx provider response missing the expected
// payload field. A contract violation, not retried; the observed top-level
// keys are kept for triage.
type UpstreamShapeError struct {
	Expected string
	Keys     []string
}

func (e *UpstreamShapeError) Error() string {
	return fmt.Sprintf("upstream response missing %q (got keys: %s)", e.Expected, strings.Join(e.Keys, ", "))
}

// HTTPStatus maps a domain error to the status code the API surfaces.
// Partial frame failures never reach this path; they ride inside the
// storyboard body with a 200.
func HTTPStatus(err error) int {
	var (
		validation *ValidationError
		notFound   *NotFoundError
		rangeErr   *RangeError
		auth       *AuthError
		plan       *PlanError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &rangeErr):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &auth):
		return http.StatusInternalServerError
	case errors.As(err, &plan):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
