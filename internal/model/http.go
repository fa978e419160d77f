package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/voice-clone-service/internal/core"
)

// API endpoints and paths of the inference server.
const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiHealth         = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
)

// Error messages.
const (
	errFmtServiceErrorWithCode = "inference server error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus   = "inference server returned non-OK status: %s, body: %s"
	errFmtUnexpectedType       = "unexpected content type: expected audio/wav, got %s"
)

// Static errors.
var (
	ErrTextEmpty          = errors.New("text cannot be empty")
	ErrOutputPathEmpty    = errors.New("output path cannot be empty")
	ErrReceivedEmptyAudio = errors.New("received empty audio data")
	ErrModelNotLoaded     = errors.New("inference server reports the model is not loaded")
)

const outputFilePermissions = 0o600

// SpeechRequest is the JSON payload sent to the inference server.
type SpeechRequest struct {
	Text           string  `json:"text"`
	SpeakerRefPath string  `json:"speaker_ref_path,omitempty"`
	Language       string  `json:"language"`
	ModelID        string  `json:"model_id,omitempty"`
	Temperature    float64 `json:"temperature"`
}

// ErrorResponse is a structured error returned by the inference server.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// HealthResponse is the optional body of the inference server's health endpoint.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded *bool  `json:"model_loaded,omitempty"`
}

// HTTPModel reaches the voice-cloning model through a standalone inference
// server that shares the filesystem with this service: the speaker reference
// is passed by path and the WAV bytes come back in the response body.
type HTTPModel struct {
	httpClient  *http.Client
	baseURL     string
	modelID     string
	temperature float64
	log         *logger.Logger
}

// NewHTTPModel creates a client for the inference server at baseURL
// (e.g. "http://127.0.0.1:8020"). A zero timeout leaves requests bounded only
// by their context.
func NewHTTPModel(
	baseURL, modelID string,
	temperature float64,
	timeout time.Duration,
	log *logger.Logger,
) *HTTPModel {
	return &HTTPModel{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		modelID:     modelID,
		temperature: temperature,
		log:         log,
	}
}

// ModelID returns the configured model identifier.
func (m *HTTPModel) ModelID() string {
	return m.modelID
}

// Synthesize requests speech for job and writes the returned WAV to
// job.OutputPath.
func (m *HTTPModel) Synthesize(ctx context.Context, job core.SynthesisJob) error {
	if job.Text == "" {
		return ErrTextEmpty
	}

	if job.OutputPath == "" {
		return ErrOutputPathEmpty
	}

	// The inference server is a separate process with its own working directory.
	speakerPath, err := filepath.Abs(job.SpeakerWavPath)
	if err != nil {
		return fmt.Errorf("could not resolve absolute path for %s: %w", job.SpeakerWavPath, err)
	}

	audioData, err := m.generateSpeech(ctx, SpeechRequest{
		Text:           job.Text,
		SpeakerRefPath: speakerPath,
		Language:       job.Language,
		ModelID:        m.modelID,
		Temperature:    m.temperature,
	})
	if err != nil {
		return err
	}

	err = os.WriteFile(job.OutputPath, audioData, outputFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}

	m.log.Info("Inference server produced %s (%d bytes)", job.OutputPath, len(audioData))

	return nil
}

// Provision checks that the inference server is up and has loaded the model.
func (m *HTTPModel) Provision(ctx context.Context) error {
	health, err := m.HealthCheck(ctx)
	if err != nil {
		return err
	}

	if health.ModelLoaded != nil && !*health.ModelLoaded {
		return ErrModelNotLoaded
	}

	return nil
}

// HealthCheck verifies that the inference server is running.
func (m *HTTPModel) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	url := m.baseURL + apiHealth

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health check failed for inference server at %s: %w", m.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	var health HealthResponse

	// The body is optional; an empty or non-JSON 200 still counts as healthy.
	_ = json.NewDecoder(resp.Body).Decode(&health)

	return &health, nil
}

func (m *HTTPModel) generateSpeech(ctx context.Context, speechReq SpeechRequest) ([]byte, error) {
	requestBody, err := json.Marshal(speechReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		m.baseURL+apiGenerateSpeech,
		bytes.NewReader(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to inference server at %s: %w", m.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if !strings.HasPrefix(contentType, contentTypeWAV) {
		return nil, fmt.Errorf(errFmtUnexpectedType, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrReceivedEmptyAudio
	}

	return audioData, nil
}

// parseErrorResponse decodes a structured JSON error, falling back to the raw
// body so diagnostics are preserved.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errorResp ErrorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf(errFmtServiceErrorWithCode, resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, string(body))
}
