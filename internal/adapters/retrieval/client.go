// Package retrieval talks to the past-paper retrieval proxy.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/examintel/internal/domain/model"
	"github.com/okian/examintel/pkg/logger"
	"github.com/okian/examintel/pkg/metrics"
)

const (
	queryPath         = "/query"
	maxErrorBodyBytes = 2048
	maxBodyBytes      = 4 << 20
	defaultUserID     = "examintel"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Its timeout is not used for per-subject
// deadlines; callers pass those through ctx.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithUserID sets the user id sent with every query.
func WithUserID(id string) Option {
	return func(cl *Client) {
		if strings.TrimSpace(id) != "" {
			cl.userID = strings.TrimSpace(id)
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// Client queries the retrieval proxy over HTTP.
type Client struct {
	baseURL string
	userID  string
	http    *http.Client
	logger  logger.Logger
}

// NewClient validates baseURL and returns a client.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	parsed, err := url.Parse(raw)
	if raw == "" || err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, &OperationError{
			Code:      OperationErrorValidation,
			Operation: "new_client",
			Message:   fmt.Sprintf("invalid retrieval url %q; expected absolute URL like http://rag:8000", baseURL),
			Cause:     err,
		}
	}
	c := &Client{
		baseURL: raw,
		userID:  defaultUserID,
		http:    &http.Client{},
		logger:  logger.Get().Named("retrieval"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type queryRequest struct {
	UserID  string `json:"user_id"`
	Query   string `json:"query"`
	Subject string `json:"subject,omitempty"`
	TopK    int    `json:"top_k"`
}

type queryResponse struct {
	Results []queryResult `json:"results"`
}

type queryResult struct {
	Text     string        `json:"text"`
	Score    float64       `json:"score"`
	Metadata queryMetadata `json:"metadata"`
}

type queryMetadata struct {
	Filename  string                 `json:"filename"`
	Chunk     int                    `json:"chunk"`
	Papers    []model.PaperReference `json:"papers"`
	PageStart int                    `json:"page_start"`
	PageEnd   int                    `json:"page_end"`
}

// Retrieve runs one semantic query scoped to subject.
func (c *Client) Retrieve(ctx context.Context, subject, query string, topK int) ([]model.RetrievalHit, error) {
	const op = "query"
	start := time.Now()

	if strings.TrimSpace(query) == "" {
		return nil, opErr(op, OperationErrorValidation, "query must not be empty", nil)
	}
	if topK <= 0 {
		return nil, opErr(op, OperationErrorValidation, fmt.Sprintf("top_k must be positive, got %d", topK), nil)
	}

	var resp queryResponse
	err := c.doJSON(ctx, op, http.MethodPost, queryPath, queryRequest{
		UserID:  c.userID,
		Query:   query,
		Subject: subject,
		TopK:    topK,
	}, &resp)
	if err != nil {
		metrics.RecordRetrievalError(errorCode(err))
		c.logger.Warn(ctx, "retrieval query failed",
			logger.String("subject", subject),
			logger.Error(err),
		)
		return nil, err
	}

	hits := make([]model.RetrievalHit, 0, len(resp.Results))
	for _, r := range resp.Results {
		hits = append(hits, model.RetrievalHit{
			Text:      r.Text,
			Score:     r.Score,
			Papers:    r.Metadata.Papers,
			Filename:  r.Metadata.Filename,
			Chunk:     r.Metadata.Chunk,
			PageStart: r.Metadata.PageStart,
			PageEnd:   r.Metadata.PageEnd,
		})
	}
	metrics.RecordRetrieval(time.Since(start), len(hits))
	c.logger.Debug(ctx, "retrieval query done",
		logger.String("subject", subject),
		logger.Int("hits", len(hits)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return hits, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "retrieval request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return classifyHTTPCallError(op, "read response failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &OperationError{
			Code:       OperationErrorDecodeFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    "decode response failed",
			Cause:      err,
		}
	}
	return nil
}

func truncateBody(raw []byte) string {
	if len(raw) > maxErrorBodyBytes {
		raw = raw[:maxErrorBodyBytes]
	}
	return strings.TrimSpace(string(raw))
}
