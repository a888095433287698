package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ErrSubmit is returned when the server rejects an upload.
var ErrSubmit = errors.New("batch submission failed")

const defaultClientTimeout = 60 * time.Second

// Summary is the server's answer to an upload.
type Summary struct {
	BatchID   string `json:"batchId"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	PassCount int    `json:"passCount"`
	FailCount int    `json:"failCount"`
	Message   string `json:"message"`
}

// Client uploads generated files to a gradecast server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultClientTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit uploads body as a batch file called name.
func (c *Client) Submit(ctx context.Context, name string, body io.Reader) (Summary, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return Summary{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, body); err != nil {
		return Summary{}, fmt.Errorf("copy batch: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Summary{}, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/batches", &buf)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrSubmit, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Summary{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Summary{}, fmt.Errorf("%w: status %d: %s", ErrSubmit, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return Summary{}, fmt.Errorf("decode response: %w", err)
	}
	return s, nil
}
