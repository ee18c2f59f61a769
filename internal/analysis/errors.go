package analysis

import (
	"errors"
	"fmt"
)

// Reason tags why a scoring call produced no result.
type Reason string

const (
	ReasonNoDetection           Reason = "no_detection"
	ReasonInsufficientData      Reason = "insufficient_data"
	ReasonNoTargetDetected      Reason = "no_target_detected"
	ReasonUnsupportedTargetType Reason = "unsupported_target_type"
	ReasonNoArrowDetected       Reason = "no_arrow_detected"
	ReasonInvalidLandmarks      Reason = "invalid_landmarks"
	ReasonInvalidTargetConfig   Reason = "invalid_target_config"
)

// ScoringError is the failure variant of every core operation.
type ScoringError struct {
	Reason Reason
	Detail string
}

func (e *ScoringError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// Is matches on Reason so wrapped errors with details still match the sentinels.
func (e *ScoringError) Is(target error) bool {
	t, ok := target.(*ScoringError)
	if !ok {
		return false
	}
	return t.Reason == e.Reason
}

var (
	ErrNoDetection           = &ScoringError{Reason: ReasonNoDetection}
	ErrInsufficientData      = &ScoringError{Reason: ReasonInsufficientData}
	ErrNoTargetDetected      = &ScoringError{Reason: ReasonNoTargetDetected}
	ErrUnsupportedTargetType = &ScoringError{Reason: ReasonUnsupportedTargetType}
	ErrNoArrowDetected       = &ScoringError{Reason: ReasonNoArrowDetected}
	ErrInvalidLandmarks      = &ScoringError{Reason: ReasonInvalidLandmarks}
	ErrInvalidTargetConfig   = &ScoringError{Reason: ReasonInvalidTargetConfig}
)

func newScoringError(reason Reason, format string, args ...interface{}) *ScoringError {
	return &ScoringError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the failure reason from err, if it carries one.
func ReasonOf(err error) (Reason, bool) {
	var se *ScoringError
	if errors.As(err, &se) {
		return se.Reason, true
	}
	return "", false
}
