// Package synthesis implements the request path of the voice-clone service:
// resolve the reference voice, optionally normalize it, call the model and
// report the generated file.
package synthesis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/book-expert/voice-clone-service/internal/audio"
	"github.com/book-expert/voice-clone-service/internal/config"
	"github.com/book-expert/voice-clone-service/internal/core"
	"github.com/book-expert/voice-clone-service/internal/fsutil"
	"github.com/book-expert/voice-clone-service/internal/metrics"
)

// SuccessMessage is reported with every generated file.
const SuccessMessage = "Synthesis successful"

const outcomeSuccess = "success"

// Request is a synthesis request as received over HTTP or NATS.
type Request struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	UserID     int64  `json:"user_id"`
}

// Result is the success variant of a synthesis request.
type Result struct {
	Filename string `json:"filename"`
	Message  string `json:"message"`
	Path     string `json:"-"`
}

// Normalizer rewrites a reference clip into the format the model expects.
type Normalizer interface {
	Normalize(srcPath, dstPath string) (audio.Info, error)
}

// TextCleaner prepares request text for the model.
type TextCleaner interface {
	Clean(text string) string
}

// Service runs synthesis requests against a single model handle.
type Service struct {
	model       core.SpeechModel
	voicesDir   string
	outputDir   string
	language    string
	uniqueNames bool
	normalizer  Normalizer
	cleaner     TextCleaner
	archive     core.ObjectStore
	publisher   core.EventPublisher
	history     core.HistoryRecorder
	now         func() time.Time
	token       func() string
	log         *logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the clock used for output timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTokenSource replaces the generator of unique file name tokens.
func WithTokenSource(token func() string) Option {
	return func(s *Service) { s.token = token }
}

// WithNormalizer enables the reference normalization pass.
func WithNormalizer(normalizer Normalizer) Option {
	return func(s *Service) { s.normalizer = normalizer }
}

// WithCleaner enables text cleaning.
func WithCleaner(cleaner TextCleaner) Option {
	return func(s *Service) { s.cleaner = cleaner }
}

// WithArchive uploads every generated file to store.
func WithArchive(store core.ObjectStore) Option {
	return func(s *Service) { s.archive = store }
}

// WithPublisher announces every generated file.
func WithPublisher(publisher core.EventPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

// WithHistory records every generated file.
func WithHistory(history core.HistoryRecorder) Option {
	return func(s *Service) { s.history = history }
}

// New creates a Service. model should already be wrapped in a model.Guard when
// it is shared between concurrent callers.
func New(cfg config.SynthesisConfig, model core.SpeechModel, log *logger.Logger, opts ...Option) *Service {
	service := &Service{
		model:       model,
		voicesDir:   cfg.VoicesDir,
		outputDir:   cfg.OutputDir,
		language:    cfg.LanguageCode,
		uniqueNames: cfg.UniqueNames(),
		now:         time.Now,
		token:       uuid.NewString,
		log:         log,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// ModelID returns the identifier of the model behind the service.
func (s *Service) ModelID() string {
	return s.model.ModelID()
}

// VoicesDir returns the directory reference clips are resolved in.
func (s *Service) VoicesDir() string {
	return s.voicesDir
}

// OutputDir returns the directory generated files are written to.
func (s *Service) OutputDir() string {
	return s.outputDir
}

// Synthesize runs one request. Failures are returned as *Error.
func (s *Service) Synthesize(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	result, err := s.synthesize(ctx, req)

	metrics.SynthesisTime.Observe(time.Since(start).Seconds())

	if err != nil {
		kind, _ := KindOf(err)
		metrics.SynthesisRequests.WithLabelValues(string(kind)).Inc()
		s.log.Warn("Synthesis for user %d failed (%s): %v", req.UserID, kind, err)

		return nil, err
	}

	metrics.SynthesisRequests.WithLabelValues(outcomeSuccess).Inc()

	return result, nil
}

func (s *Service) synthesize(ctx context.Context, req Request) (*Result, error) {
	text, referenceName, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	referencePath := filepath.Join(s.voicesDir, referenceName)

	exists, err := fsutil.FileExists(referencePath)
	if err != nil {
		return nil, &Error{
			Kind: KindAudioProcessingFailed,
			Path: referencePath,
			Err:  fmt.Errorf("error reading speaker wav: %w", err),
		}
	}

	if !exists {
		return nil, &Error{
			Kind: KindReferenceNotFound,
			Path: referencePath,
			Err:  fmt.Errorf("%w: %s", ErrReferenceNotFound, referencePath),
		}
	}

	base := BaseName(referenceName)
	speakerPath := referencePath

	if s.normalizer != nil {
		tempPath := filepath.Join(s.outputDir, TempReferenceFilename(base, s.token()))
		defer s.removeTemp(tempPath)

		err = s.normalize(referencePath, tempPath)
		if err != nil {
			return nil, err
		}

		speakerPath = tempPath
	}

	filename := s.outputFilename(req.UserID, base)
	outputPath := filepath.Join(s.outputDir, filename)

	err = s.callModel(ctx, core.SynthesisJob{
		Text:           text,
		SpeakerWavPath: speakerPath,
		Language:       s.language,
		OutputPath:     outputPath,
	})
	if err != nil {
		return nil, err
	}

	s.afterSynthesis(ctx, req, base, filename, outputPath)

	return &Result{Filename: filename, Message: SuccessMessage, Path: outputPath}, nil
}

func (s *Service) validate(req Request) (string, string, error) {
	if strings.TrimSpace(req.SpeakerWav) == "" {
		return "", "", &Error{Kind: KindInvalidRequest, Err: ErrSpeakerWavEmpty}
	}

	referenceName := ReferenceName(req.SpeakerWav)
	if !fsutil.IsPlainFilename(referenceName) {
		return "", "", &Error{
			Kind: KindInvalidRequest,
			Err:  fmt.Errorf("%w: '%s'", ErrInvalidSpeakerWav, req.SpeakerWav),
		}
	}

	text := req.Text
	if s.cleaner != nil {
		text = s.cleaner.Clean(text)
	}

	if strings.TrimSpace(text) == "" {
		return "", "", &Error{Kind: KindInvalidRequest, Err: ErrTextEmpty}
	}

	return text, referenceName, nil
}

func (s *Service) normalize(referencePath, tempPath string) error {
	start := time.Now()

	info, err := s.normalizer.Normalize(referencePath, tempPath)
	if err != nil {
		return &Error{
			Kind: KindAudioProcessingFailed,
			Path: referencePath,
			Err:  fmt.Errorf("error processing audio: %w", err),
		}
	}

	metrics.NormalizeTime.Observe(time.Since(start).Seconds())
	s.log.Info("Normalized %s to %d Hz (%s)", referencePath, info.SampleRate, fsutil.FormatDuration(info.Duration.Seconds()))

	return nil
}

func (s *Service) callModel(ctx context.Context, job core.SynthesisJob) error {
	start := time.Now()

	metrics.ModelInFlight.Inc()
	err := s.model.Synthesize(ctx, job)
	metrics.ModelInFlight.Dec()
	metrics.ModelQueryTime.Observe(time.Since(start).Seconds())

	if err != nil {
		removeErr := fsutil.RemoveIfExists(job.OutputPath)
		if removeErr != nil {
			s.log.Warn("Failed to remove partial output %s: %v", job.OutputPath, removeErr)
		}

		return &Error{
			Kind: KindModelFailed,
			Path: job.OutputPath,
			Err:  fmt.Errorf("speech synthesis failed: %w", err),
		}
	}

	s.log.Info("Model %s finished %s in %s", s.model.ModelID(), job.OutputPath,
		fsutil.FormatDuration(time.Since(start).Seconds()))

	return nil
}

func (s *Service) outputFilename(userID int64, base string) string {
	timestamp := s.now().Unix()

	if s.uniqueNames {
		return UniqueOutputFilename(userID, base, timestamp, s.token())
	}

	return OutputFilename(userID, base, timestamp)
}

func (s *Service) removeTemp(path string) {
	err := fsutil.RemoveIfExists(path)
	if err != nil {
		s.log.Warn("Failed to remove temporary reference %s: %v", path, err)
	}
}

// afterSynthesis archives, records and announces a generated file with the
// text as the user sent it. Each step is best-effort; failures are logged and
// counted only.
func (s *Service) afterSynthesis(ctx context.Context, req Request, base, filename, outputPath string) {
	event := core.AudioSynthesized{
		UserID:    req.UserID,
		Voice:     base,
		Language:  s.language,
		Text:      req.Text,
		Filename:  filename,
		CreatedAt: s.now().UTC(),
	}

	info, err := audio.Probe(outputPath)
	if err == nil {
		event.DurationMS = info.Duration.Milliseconds()
	}

	stat, err := os.Stat(outputPath)
	if err == nil {
		s.log.Info("Generated %s (%s)", filename, fsutil.FormatFileSize(stat.Size()))
	}

	if s.archive != nil {
		err = s.archive.UploadFile(ctx, filename, outputPath)
		if err != nil {
			s.sideEffectFailed("archive", filename, err)
		} else {
			event.ObjectKey = filename
		}
	}

	if s.history != nil {
		_, err = s.history.Record(ctx, event)
		if err != nil {
			s.sideEffectFailed("history", filename, err)
		}
	}

	if s.publisher != nil {
		err = s.publisher.PublishSynthesized(ctx, event)
		if err != nil {
			s.sideEffectFailed("publish", filename, err)
		}
	}
}

func (s *Service) sideEffectFailed(stage, filename string, err error) {
	metrics.SideEffectErrors.WithLabelValues(stage).Inc()
	s.log.Error("Post-synthesis %s step failed for %s: %v", stage, filename, err)
}
