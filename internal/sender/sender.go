// Package sender posts signed webhook payloads the way the Forge upstream does.
// It is used by the sendhook CLI to exercise a running receiver.
package sender

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Priya8975/forge-storefront/internal/signature"
	"go.uber.org/zap"
)

// maxResponseBody bounds how much of the receiver's reply is kept.
const maxResponseBody = 1024

// Result describes a single delivery attempt.
type Result struct {
	StatusCode int
	Body       string
	Duration   time.Duration
}

// OK reports whether the receiver accepted the payload.
func (r Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type Sender struct {
	httpClient *http.Client
	secret     string
	now        func() time.Time
	logger     *zap.Logger
}

// New creates a sender with a configured HTTP client.
func New(secret string, timeout time.Duration, logger *zap.Logger) *Sender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{
		httpClient: &http.Client{Timeout: timeout},
		secret:     secret,
		now:        time.Now,
		logger:     logger,
	}
}

// Send signs payload with the current time and POSTs it to url.
func (s *Sender) Send(ctx context.Context, url string, payload []byte) (Result, error) {
	start := s.now()
	ts := signature.Timestamp(start)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signature.HeaderTimestamp, ts)
	req.Header.Set(signature.HeaderSignature, signature.Sign(payload, s.secret, ts))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	res := Result{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		Duration:   time.Since(start),
	}

	if res.OK() {
		s.logger.Info("delivery successful",
			zap.String("url", url),
			zap.Int("status_code", res.StatusCode),
			zap.Duration("duration", res.Duration),
		)
	} else {
		s.logger.Warn("delivery rejected",
			zap.String("url", url),
			zap.Int("status_code", res.StatusCode),
			zap.String("response", res.Body),
		)
	}
	return res, nil
}
