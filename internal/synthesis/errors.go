package synthesis

import (
	"errors"
)

// Kind classifies a failed synthesis request.
type Kind string

// Failure kinds.
const (
	KindInvalidRequest        Kind = "invalid_request"
	KindReferenceNotFound     Kind = "reference_not_found"
	KindAudioProcessingFailed Kind = "audio_processing_failed"
	KindModelFailed           Kind = "model_failed"
)

// Sentinel causes carried inside *Error.
var (
	ErrTextEmpty         = errors.New("text cannot be empty")
	ErrSpeakerWavEmpty   = errors.New("speaker_wav cannot be empty")
	ErrInvalidSpeakerWav = errors.New("speaker_wav must be a plain file name")
	ErrReferenceNotFound = errors.New("speaker wav file not found")
)

// Error is the failure variant of a synthesis result. Path holds the file the
// failure refers to, when there is one.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind of err, or false when err is not an *Error.
func KindOf(err error) (Kind, bool) {
	var synthErr *Error
	if errors.As(err, &synthErr) {
		return synthErr.Kind, true
	}

	return "", false
}

// Failure is the wire form of a failed request.
type Failure struct {
	Error string `json:"error"`
	Kind  Kind   `json:"kind,omitempty"`
	Path  string `json:"path,omitempty"`
}

// FailureOf converts err into its wire form. Errors that are not *Error carry
// no kind.
func FailureOf(err error) Failure {
	var synthErr *Error
	if errors.As(err, &synthErr) {
		return Failure{Error: synthErr.Error(), Kind: synthErr.Kind, Path: synthErr.Path}
	}

	return Failure{Error: err.Error()}
}
