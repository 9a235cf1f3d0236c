// Package remote implements the workflow stage clients over HTTP against a
// stage service exposing /transcribe, /representative and /documents/{kind}.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JaimeStill/pathways/internal/submissions"
	"github.com/JaimeStill/pathways/internal/workflow"
)

const maxResponseSize = 4 << 20

// ErrUpstream wraps non-success responses that carry no failure kind.
var ErrUpstream = errors.New("stage service error")

// ErrorBody is the error envelope returned by a stage service.
type ErrorBody struct {
	Error string        `json:"error"`
	Kind  workflow.Kind `json:"kind,omitempty"`
}

// Client calls a remote stage service. It implements workflow.Transcriber,
// workflow.RepresentativeLookup and workflow.DocumentGenerator.
type Client struct {
	base   string
	http   *http.Client
	logger *slog.Logger
}

var (
	_ workflow.Transcriber          = (*Client)(nil)
	_ workflow.RepresentativeLookup = (*Client)(nil)
	_ workflow.DocumentGenerator    = (*Client)(nil)
)

// New returns a Client for the stage service rooted at base.
func New(base string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		base:   strings.TrimSuffix(base, "/"),
		http:   &http.Client{Timeout: timeout},
		logger: logger.With("system", "remote"),
	}
}

func (c *Client) Transcribe(ctx context.Context, payload submissions.Payload) (string, error) {
	var out struct {
		Transcript string `json:"transcript"`
	}

	err := c.do(ctx, http.MethodPost, "/transcribe", payload.ContentType, bytes.NewReader(payload.Data), &out, transcribeContract)
	if err != nil {
		return "", fmt.Errorf("remote transcribe: %w", err)
	}
	return out.Transcript, nil
}

func (c *Client) Lookup(ctx context.Context, locationKey string) (*submissions.Representative, error) {
	var out submissions.Representative

	path := "/representative?" + url.Values{"postcode": {locationKey}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, "", nil, &out, lookupContract); err != nil {
		return nil, fmt.Errorf("remote lookup: %w", err)
	}
	return &out, nil
}

func (c *Client) Generate(ctx context.Context, req workflow.GenerateRequest) (*submissions.Document, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("remote generate: unknown document kind %q", req.Kind)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode generate request: %w", err)
	}

	var out submissions.Document
	err = c.do(ctx, http.MethodPost, "/documents/"+string(req.Kind), "application/json", bytes.NewReader(body), &out, generateContract)
	if err != nil {
		return nil, fmt.Errorf("remote generate %s: %w", req.Kind, err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any, errs contract) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.DebugContext(
		ctx, "stage call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data, errs)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
