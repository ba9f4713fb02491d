package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// outcome classifies one job submission.
type outcome int

const (
	outcomeAccepted outcome = iota
	outcomeDuplicate
	outcomeRejected
	outcomeFailed
)

// httpClient wraps http.Client for the service endpoints.
type httpClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *httpClient {
	return &httpClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *httpClient) do(ctx context.Context, method, path string, body any) (int, error) {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// health checks that the service answers /healthz.
func (c *httpClient) health(ctx context.Context) error {
	status, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("health check returned status %d", status)
	}
	return nil
}

// submit posts one assessment as a plan job.
func (c *httpClient) submit(ctx context.Context, req Request) outcome {
	status, err := c.do(ctx, http.MethodPost, "/plans/jobs", req)
	if err != nil {
		return outcomeFailed
	}
	switch status {
	case http.StatusAccepted:
		return outcomeAccepted
	case http.StatusConflict:
		return outcomeDuplicate
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return outcomeRejected
	default:
		return outcomeFailed
	}
}

// hasPlan reports whether a plan exists for the assessment.
func (c *httpClient) hasPlan(ctx context.Context, assessmentID string) (bool, error) {
	status, err := c.do(ctx, http.MethodGet, "/assessments/"+assessmentID+"/plan", nil)
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("plan lookup for %s returned status %d", assessmentID, status)
	}
}
