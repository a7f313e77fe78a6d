package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"neverlost/internal/config"
	"neverlost/internal/telemetry"
)

// ProbeResult is the outcome of one bounded fetch of an origin. OK implies
// Status is set and Err is nil. A transport failure or timeout leaves
// Status nil.
type ProbeResult struct {
	OK     bool
	Status *int
	Err    *string
	Body   []byte
}

// UpstreamProber fetches origins under a deadline. Successful responses are
// cached by URL; failures are never cached and never retried.
type UpstreamProber struct {
	client  *http.Client
	cache   ResponseCache
	timeout time.Duration
	ttl     time.Duration
	maxBody int64
	logger  *slog.Logger
}

func NewUpstreamProber(cfg config.Config, cache ResponseCache, logger *slog.Logger) *UpstreamProber {
	maxBody := cfg.UpstreamMaxBodyBytes
	if maxBody <= 0 {
		maxBody = 16 << 20
	}
	return &UpstreamProber{
		client:  &http.Client{},
		cache:   cache,
		timeout: cfg.UpstreamTimeout(),
		ttl:     cfg.CacheLifetime(),
		maxBody: maxBody,
		logger:  logger,
	}
}

func (p *UpstreamProber) Probe(ctx context.Context, url string) ProbeResult {
	if p.cache != nil {
		if cached, ok := p.cache.Get(ctx, url); ok {
			return okResult(cached.Status, cached.Body)
		}
	}

	start := time.Now()
	result := p.fetch(ctx, url)

	outcome := "ok"
	if !result.OK {
		outcome = "failed"
	}
	telemetry.UpstreamProbeDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if result.OK && p.cache != nil {
		p.cache.Set(ctx, url, CachedResponse{Status: *result.Status, Body: result.Body}, p.ttl)
	}
	return result
}

func (p *UpstreamProber) fetch(ctx context.Context, url string) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return failedResult(nil, err.Error())
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return failedResult(nil, p.describe(ctx, err))
	}
	defer resp.Body.Close()

	status := resp.StatusCode
	if status < 200 || status > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return failedResult(&status, fmt.Sprintf("http_status_%d", status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBody+1))
	if err != nil {
		return failedResult(nil, p.describe(ctx, err))
	}
	if int64(len(body)) > p.maxBody {
		return failedResult(&status, fmt.Sprintf("upstream body exceeds %d bytes", p.maxBody))
	}

	return okResult(status, body)
}

func (p *UpstreamProber) describe(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("timeout: upstream did not respond within %dms", p.timeout.Milliseconds())
	}
	return err.Error()
}

func okResult(status int, body []byte) ProbeResult {
	return ProbeResult{OK: true, Status: &status, Body: body}
}

func failedResult(status *int, reason string) ProbeResult {
	return ProbeResult{Status: status, Err: &reason}
}
