// Package meshy is a minimal client for the Meshy Image to 3D API.
package meshy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/charforge/asset-service/config"
)

// Task lifecycle states reported by the Meshy API.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusSucceeded  = "SUCCEEDED"
	StatusFailed     = "FAILED"
)

var (
	// ErrTaskNotFound is returned when the API does not know the task ID.
	ErrTaskNotFound = errors.New("meshy task not found")
	// ErrBadRequest is returned for submissions the API rejects as invalid.
	// Not retryable.
	ErrBadRequest = errors.New("meshy rejected the request")
	// ErrUnavailable covers transport failures and 5xx responses.
	ErrUnavailable = errors.New("meshy API unavailable")
)

// ModelURLs holds download locations for the generated model formats.
type ModelURLs struct {
	GLB  string `json:"glb"`
	FBX  string `json:"fbx"`
	USDZ string `json:"usdz"`
	OBJ  string `json:"obj"`
}

// TaskError carries the upstream failure detail for a failed task.
type TaskError struct {
	Message string `json:"message"`
}

// TaskStatus is one poll result for an image-to-3D task.
type TaskStatus struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Progress     int       `json:"progress"`
	ModelURLs    ModelURLs `json:"model_urls"`
	ThumbnailURL string    `json:"thumbnail_url"`
	TaskError    TaskError `json:"task_error"`
}

// Terminal reports whether the task will never change state again.
func (s *TaskStatus) Terminal() bool {
	return s.Status == StatusSucceeded || s.Status == StatusFailed
}

type submitRequest struct {
	ImageURL string `json:"image_url"`
	AIModel  string `json:"ai_model"`
}

type submitResponse struct {
	Result string `json:"result"`
}

type apiError struct {
	Message string `json:"message"`
}

// Client talks to the Meshy image-to-3D endpoints. Outgoing requests share a
// rate limiter so the background poller cannot exhaust the API quota.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Meshy client from configuration.
func NewClient(cfg config.GeneratorConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("meshy API key cannot be empty")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("meshy base URL cannot be empty")
	}

	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}, nil
}

// SubmitImageTo3D starts a new image-to-3D task for the given image URL and
// returns the upstream task ID.
func (c *Client) SubmitImageTo3D(ctx context.Context, imageURL string) (string, error) {
	if imageURL == "" {
		return "", fmt.Errorf("%w: empty image URL", ErrBadRequest)
	}

	body, err := json.Marshal(submitRequest{ImageURL: imageURL, AIModel: "meshy-5"})
	if err != nil {
		return "", err
	}

	var out submitResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/openapi/v1/image-to-3d", bytes.NewReader(body), &out); err != nil {
		return "", err
	}
	if out.Result == "" {
		return "", fmt.Errorf("%w: response missing task ID", ErrUnavailable)
	}
	return out.Result, nil
}

// GetTaskStatus fetches the current state of an image-to-3D task.
func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	if taskID == "" {
		return nil, fmt.Errorf("%w: empty task ID", ErrBadRequest)
	}

	var out TaskStatus
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/openapi/v1/image-to-3d/"+taskID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
	}
	return nil
}

// classifyStatus maps HTTP failures onto the client's error taxonomy,
// including the upstream message when one is present.
func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrTaskNotFound
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrBadRequest, readAPIError(resp.Body))
	default:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, readAPIError(resp.Body))
	}
}

func readAPIError(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return "no detail"
	}
	var e apiError
	if json.Unmarshal(data, &e) == nil && e.Message != "" {
		return e.Message
	}
	return string(data)
}
