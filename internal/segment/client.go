// Package segment talks to the segmentation service that turns clicked points
// on a video frame into an object mask.
package segment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type PointLabel int

const (
	LabelBackground PointLabel = 0
	LabelForeground PointLabel = 1
)

type Point struct {
	X     float64    `json:"x" yaml:"x"`
	Y     float64    `json:"y" yaml:"y"`
	Label PointLabel `json:"label" yaml:"label"`
}

type Request struct {
	VideoID string  `json:"video_id"`
	Frame   int     `json:"frame"`
	Points  []Point `json:"points"`
}

type Result struct {
	MaskID     string `json:"mask_id"`
	PreviewURL string `json:"preview_url"`
}

// Segmenter computes a mask from a points stack.
type Segmenter interface {
	Segment(ctx context.Context, req Request) (Result, error)
}

// RequestError is a non-2xx answer from the segmentation endpoint.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("segmentation failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable reports whether sending the same points again in a new command
// may succeed. Client errors (4xx) are permanent.
func (e *RequestError) IsRetryable() bool {
	return e.StatusCode >= 500
}

type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (c *HTTPClient) Segment(ctx context.Context, req Request) (Result, error) {
	if len(req.Points) == 0 {
		return Result{}, fmt.Errorf("segment request has no points")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("marshal segment request: %w", err)
	}

	url := fmt.Sprintf("%s/api/segment/points", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	httpReq.Header.Set("X-Request-Id", uuid.NewString())

	c.logger.Debug("requesting segmentation",
		"url", url,
		"video_id", req.VideoID,
		"frame", req.Frame,
		"points", len(req.Points),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, &RequestError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return Result{}, fmt.Errorf("decode segment response: %w", err)
	}
	if result.PreviewURL == "" {
		return Result{}, fmt.Errorf("segment response has no preview url")
	}

	c.logger.Info("segmentation succeeded", "video_id", req.VideoID, "mask_id", result.MaskID)
	return result, nil
}

// StubClient answers locally with a deterministic preview, for running without a service.
type StubClient struct {
	logger *slog.Logger
}

func NewStubClient(logger *slog.Logger) *StubClient {
	return &StubClient{logger: logger}
}

func (c *StubClient) Segment(_ context.Context, req Request) (Result, error) {
	if len(req.Points) == 0 {
		return Result{}, fmt.Errorf("segment request has no points")
	}
	c.logger.Info("segment stub: request", "video_id", req.VideoID, "points", len(req.Points))
	id := fmt.Sprintf("%s-%d-%d", req.VideoID, req.Frame, len(req.Points))
	return Result{MaskID: id, PreviewURL: "stub://masks/" + id + ".png"}, nil
}
