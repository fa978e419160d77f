// Package core defines the interfaces shared between the synthesis service and
// its collaborators.
package core

import (
	"context"
	"time"
)

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
	UploadFile(ctx context.Context, key, path string) error
}

// SynthesisJob is one call into the speech model.
type SynthesisJob struct {
	Text           string
	SpeakerWavPath string
	Language       string
	OutputPath     string
}

// SpeechModel is the pretrained voice-cloning model. Synthesize writes a WAV
// file to job.OutputPath and blocks until it is complete.
type SpeechModel interface {
	Synthesize(ctx context.Context, job SynthesisJob) error
	Provision(ctx context.Context) error
	ModelID() string
}

// AudioSynthesized describes a successfully generated file.
type AudioSynthesized struct {
	UserID     int64
	Voice      string
	Language   string
	Text       string
	Filename   string
	ObjectKey  string
	CreatedAt  time.Time
	DurationMS int64
}

// EventPublisher announces generated audio to other services.
type EventPublisher interface {
	PublishSynthesized(ctx context.Context, event AudioSynthesized) error
}

// HistoryRecorder persists a record of each generated file.
type HistoryRecorder interface {
	Record(ctx context.Context, event AudioSynthesized) (int64, error)
}
