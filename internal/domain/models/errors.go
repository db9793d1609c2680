package models

import (
	"errors"
	"fmt"
)

// ErrModelUnavailable means no activated model version exists. Primary
// scoring fails hard on it; the simulator degrades to its heuristic.
var ErrModelUnavailable = errors.New("no active model version")

// ErrEmptyChangeSet means a simulation carried no hypothetical changes.
// Treated as a caller error rather than a zero-delta no-op.
var ErrEmptyChangeSet = errors.New("simulation change set is empty")

// ErrOutcomeThrottled means a beneficiary exceeded the outcome submission
// rate. The submission is rejected outright, never accepted and dropped;
// callers can retry after backing off.
var ErrOutcomeThrottled = errors.New("outcome submissions throttled")

// ValidationError reports an out-of-range or malformed input value.
// The caller decides whether to clamp and retry; the engine never clamps.
type ValidationError struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value"`
	Allowed string      `json:"allowed_range"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s=%v (allowed: %s)", e.Field, e.Value, e.Allowed)
}

// SchemaMismatchError signals feature-vector / model-version drift.
// Fatal to the request; indicates a deployment inconsistency.
type SchemaMismatchError struct {
	ModelVersionID string
	Want           []string
	Got            []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("vector schema does not match model version %s (want %d fields, got %d)",
		e.ModelVersionID, len(e.Want), len(e.Got))
}

// UnknownFieldError means a simulation change referenced a field outside
// the vector schema. Caller bug.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown feature field %q", e.Field)
}

// TrainingFailure is retraining-only: logged, never surfaced to scoring
// callers, and always leaves the previously active version untouched.
type TrainingFailure struct {
	Reason string
	Err    error
}

func (e *TrainingFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("training failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("training failed: %s", e.Reason)
}

func (e *TrainingFailure) Unwrap() error { return e.Err }
