package model

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a video does not exist
	ErrNotFound = errors.New("video not found")
	// ErrAttemptActive is returned when a video already has a running attempt
	ErrAttemptActive = errors.New("video already has an active processing attempt")
	// ErrInvalidTransition is returned when a status change breaks the state machine
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError reports bad input such as an oversized upload or an empty transcript
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Validationf builds a ValidationError
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// StageFailure reports a failed external call during a pipeline stage
type StageFailure struct {
	Stage Status
	Err   error
}

func (e *StageFailure) Error() string {
	if e.Timeout() {
		return fmt.Sprintf("%s stage timed out: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageFailure) Unwrap() error {
	return e.Err
}

// Timeout reports whether the stage was cancelled or ran out of time
func (e *StageFailure) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded) || errors.Is(e.Err, context.Canceled)
}

// NotReadyError is returned when a question targets a video that is not completed
type NotReadyError struct {
	VideoID string
	Status  Status
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("video %s is not ready for questions (status: %s)", e.VideoID, e.Status)
}

// GenerationFailure reports that the answering model failed after retrieval succeeded
type GenerationFailure struct {
	Err error
}

func (e *GenerationFailure) Error() string {
	return fmt.Sprintf("answer generation failed: %v", e.Err)
}

func (e *GenerationFailure) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotReady reports whether err is a NotReadyError
func IsNotReady(err error) bool {
	var n *NotReadyError
	return errors.As(err, &n)
}
