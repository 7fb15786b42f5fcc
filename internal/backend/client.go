// Package backend is the HTTP client of the template backend: milestone
// templates with their nested phases and deliverables, project templates and
// tags.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Marga-Ghale/ora-template-studio/internal/logger"
	"github.com/Marga-Ghale/ora-template-studio/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout = 15 * time.Second
	maxErrorBody   = 64 << 10
)

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	TokenSecret string
	TokenIssuer string
	TokenTTL    time.Duration
	// RatePerSecond caps outgoing calls; zero disables the limiter.
	RatePerSecond float64
	Burst         int
	// FetchConcurrency bounds parallel template fetches.
	FetchConcurrency int
}

type Client struct {
	baseURL          string
	http             *http.Client
	signer           *TokenSigner
	limiter          *rate.Limiter
	fetchConcurrency int
	log              *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 4
	}
	if log == nil {
		log = zap.NewNop()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		http:             &http.Client{Timeout: cfg.Timeout},
		signer:           NewTokenSigner(cfg.TokenSecret, cfg.TokenIssuer, cfg.TokenTTL),
		limiter:          limiter,
		fetchConcurrency: cfg.FetchConcurrency,
		log:              log.Named("backend"),
	}
}

// do performs one JSON round trip. endpoint is the metrics label; out may be
// nil when the response body is not needed.
func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := logger.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-Id", id)
	}

	subject := UserID(ctx)
	if subject == "" {
		subject = ServiceSubject
	}
	token, err := c.signer.Sign(subject)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	log := logger.FromContext(ctx, c.log).With(zap.String("endpoint", endpoint))
	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)
	if err != nil {
		metrics.RecordBackendCall(endpoint, "error", duration)
		log.Warn("Backend request failed", zap.Error(err))
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()
	metrics.RecordBackendCall(endpoint, strconv.Itoa(resp.StatusCode), duration)

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := decodeAPIError(resp.StatusCode, raw)
		log.Warn("Backend returned an error",
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message),
		)
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
