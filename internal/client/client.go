// Package client is a Go client for the voice-clone service HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/voice-clone-service/internal/synthesis"
	"github.com/book-expert/voice-clone-service/internal/voices"
)

const (
	pathSynthesize = "/synthesize"
	pathHealth     = "/health"
	pathVoices     = "/voices"
	pathOutputs    = "/outputs/"

	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"

	outputFilePermissions = 0o600
)

// ErrUnexpectedStatus is wrapped by failures whose body is not a service error.
var ErrUnexpectedStatus = errors.New("unexpected status from voice-clone service")

// ResponseError is a failure reported by the service.
type ResponseError struct {
	StatusCode int
	Failure    synthesis.Failure
}

func (e *ResponseError) Error() string {
	if e.Failure.Kind != "" {
		return fmt.Sprintf("voice-clone service error (%d %s): %s", e.StatusCode, e.Failure.Kind, e.Failure.Error)
	}

	return fmt.Sprintf("voice-clone service error (%d): %s", e.StatusCode, e.Failure.Error)
}

// Health is the body of GET /health.
type Health struct {
	Status  string `json:"status"`
	ModelID string `json:"model_id"`
}

// Client talks to one service instance.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a client for the service at baseURL (e.g. "http://127.0.0.1:8000").
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Synthesize submits a synthesis request and waits for the result.
func (c *Client) Synthesize(ctx context.Context, req synthesis.Request) (*synthesis.Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathSynthesize, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)

	var result synthesis.Result

	err = c.do(httpReq, &result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// HealthCheck verifies that the service is running.
func (c *Client) HealthCheck(ctx context.Context) (*Health, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathHealth, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create health check request: %w", err)
	}

	var health Health

	err = c.do(httpReq, &health)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	return &health, nil
}

// ListVoices returns the reference clips known to the service.
func (c *Client) ListVoices(ctx context.Context) ([]voices.Voice, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathVoices, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var body struct {
		Voices []voices.Voice `json:"voices"`
	}

	err = c.do(httpReq, &body)
	if err != nil {
		return nil, err
	}

	return body.Voices, nil
}

// UploadVoice uploads the WAV file at path as a new reference clip for userID.
func (c *Client) UploadVoice(ctx context.Context, userID int64, path string) (*voices.Voice, error) {
	file, err := os.Open(path) // #nosec G304 -- user-selected upload
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	var buffer bytes.Buffer

	writer := multipart.NewWriter(&buffer)

	err = writer.WriteField("user_id", fmt.Sprint(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to write form field: %w", err)
	}

	part, err := writer.CreateFormFile("voiceSample", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	_, err = io.Copy(part, file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	err = writer.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathVoices, &buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, writer.FormDataContentType())

	var body struct {
		Voice voices.Voice `json:"voice"`
	}

	err = c.do(httpReq, &body)
	if err != nil {
		return nil, err
	}

	return &body.Voice, nil
}

// Download saves the generated file filename to dst.
func (c *Client) Download(ctx context.Context, filename, dst string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+pathOutputs+url.PathEscape(filename), http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseErrorResponse(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}

	err = os.WriteFile(dst, data, outputFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}

	return nil
}

func (c *Client) do(httpReq *http.Request, out any) error {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return parseErrorResponse(resp)
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// parseErrorResponse decodes the service's failure payload, falling back to
// the raw body.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var failure synthesis.Failure

	err := json.Unmarshal(body, &failure)
	if err == nil && failure.Error != "" {
		return &ResponseError{StatusCode: resp.StatusCode, Failure: failure}
	}

	return fmt.Errorf("%w: %s, body: %s", ErrUnexpectedStatus, resp.Status, strings.TrimSpace(string(body)))
}
