package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/gradecast/pkg/logger"
	"github.com/okian/gradecast/pkg/metrics"
	"golang.org/x/time/rate"
)

const maxErrorBody = 4 << 10

// SheetsClient appends rows to a Google Sheets spreadsheet through the
// values:append REST endpoint. It is safe for concurrent use.
type SheetsClient struct {
	creds   Credentials
	http    *http.Client
	baseURL string
	rng     string
	timeout time.Duration
	retry   RetryConfig
	limiter *rate.Limiter
	now     func() time.Time
	logger  logger.Logger
}

var _ Appender = (*SheetsClient)(nil)

type appendRequest struct {
	Values [][]string `json:"values"`
}

type appendResponse struct {
	Updates struct {
		UpdatedRange string `json:"updatedRange"`
	} `json:"updates"`
}

// NewSheetsClient validates creds and builds a client.
func NewSheetsClient(creds Credentials, opts ...Option) (*SheetsClient, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	c := &SheetsClient{
		creds:   creds,
		http:    &http.Client{},
		baseURL: DefaultBaseURL,
		rng:     DefaultRange,
		timeout: DefaultTimeout,
		retry:   DefaultRetryConfig(),
		limiter: rate.NewLimiter(rate.Limit(DefaultRatePerSec), DefaultRatePerSec),
		now:     time.Now,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Append writes one row. A zero Timestamp is replaced with the current time.
func (c *SheetsClient) Append(ctx context.Context, row Row) (AppendResult, error) {
	if row.Timestamp.IsZero() {
		row.Timestamp = c.now()
	}
	body, err := json.Marshal(appendRequest{Values: [][]string{row.Values()}})
	if err != nil {
		return AppendResult{}, fmt.Errorf("encode row: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.RecordMirrorSyncLatency(float64(time.Since(start).Milliseconds()))
	}()

	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			metrics.RecordMirrorRetry()
			c.logger.Debug(ctx, "retrying mirror append",
				logger.String("student_id", row.StudentID),
				logger.Int("attempt", attempt+1),
				logger.Error(lastErr))
			if err := sleep(ctx, c.retry.delay(attempt-1)); err != nil {
				return AppendResult{}, errors.Join(lastErr, err)
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			if lastErr != nil {
				return AppendResult{}, errors.Join(lastErr, err)
			}
			return AppendResult{}, fmt.Errorf("rate limit: %w", err)
		}

		res, err := c.do(ctx, body)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return AppendResult{}, lastErr
}

func (c *SheetsClient) endpoint() string {
	q := url.Values{}
	q.Set("valueInputOption", "RAW")
	q.Set("key", c.creds.APIKey)
	return fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s:append?%s",
		c.baseURL, url.PathEscape(c.creds.SheetID), url.PathEscape(c.rng), q.Encode())
}

func (c *SheetsClient) do(ctx context.Context, body []byte) (AppendResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return AppendResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return AppendResult{}, fmt.Errorf("%w: %w", ErrAppendFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return AppendResult{}, &APIError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}

	var out appendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return AppendResult{}, fmt.Errorf("%w: decode response: %w", ErrAppendFailed, err)
	}
	return AppendResult{UpdatedRange: out.Updates.UpdatedRange}, nil
}
