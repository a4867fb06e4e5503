// Package apperr defines the error kinds surfaced by the recommender core.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrInputEmpty        = errors.New("no usable skills in input")
	ErrInvalidInput      = errors.New("invalid input")
	ErrArtifactMissing   = errors.New("model artifact not trained yet")
	ErrArtifactCorrupt   = errors.New("model artifact is corrupt")
	ErrTrainingDataEmpty = errors.New("not enough data to train")
	ErrDatasetMalformed  = errors.New("dataset is malformed")
)

// Error carries one of the sentinel kinds plus a message describing the failure.
type Error struct {
	Err     error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind error, message string) *Error {
	return &Error{Err: kind, Message: message}
}

func Newf(kind error, format string, args ...any) *Error {
	return &Error{Err: kind, Message: fmt.Sprintf(format, args...)}
}

// Exit codes returned by the CLI for each error kind.
const (
	ExitOK = iota
	ExitFailure
	ExitInvalidInput
	ExitNotTrained
	ExitCorruptArtifact
	ExitNotEnoughData
	ExitBadDataset
)

// ExitCode maps an error to a process exit code so callers can tell
// "not enough data" apart from "disk problem".
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInputEmpty):
		return ExitInvalidInput
	case errors.Is(err, ErrArtifactMissing):
		return ExitNotTrained
	case errors.Is(err, ErrArtifactCorrupt):
		return ExitCorruptArtifact
	case errors.Is(err, ErrTrainingDataEmpty):
		return ExitNotEnoughData
	case errors.Is(err, ErrDatasetMalformed):
		return ExitBadDataset
	default:
		return ExitFailure
	}
}
