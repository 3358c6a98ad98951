// Package remote is the HTTP client for the voice platform that mirrors
// local agents and pathways.
//
// Every operation returns either its result or a *Failure tagged with a
// Kind, so callers can decide between rollback and surfacing without
// inspecting transport details.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultBaseURL is the public API root of the voice platform.
const DefaultBaseURL = "https://api.bland.ai/v1"

var tracer = otel.Tracer("voicebridge/remote")

// Config configures a Client. Zero values fall back to the defaults below.
type Config struct {
	BaseURL        string
	APIKey         string
	CreateTimeout  time.Duration // per attempt, create operations (default 60s)
	RequestTimeout time.Duration // per attempt, everything else (default 30s)
	MaxAttempts    int           // total attempts for retryable operations (default 5)
	InitialBackoff time.Duration // first retry delay (default 1s)
	HTTPClient     *http.Client
}

// Client talks to the remote platform. It holds no global state; build one
// per configuration and inject it where needed.
type Client struct {
	baseURL        string
	apiKey         string
	createTimeout  time.Duration
	requestTimeout time.Duration
	maxAttempts    int
	initialBackoff time.Duration
	http           *http.Client
}

// New creates a Client from cfg.
func New(cfg Config) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		createTimeout:  cfg.CreateTimeout,
		requestTimeout: cfg.RequestTimeout,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		http:           cfg.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.createTimeout <= 0 {
		c.createTimeout = 60 * time.Second
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = 30 * time.Second
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = 5
	}
	if c.initialBackoff <= 0 {
		c.initialBackoff = time.Second
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	return c
}

// call describes one logical remote operation.
type call struct {
	op      string
	method  string
	path    string
	body    any
	timeout time.Duration
	// retry enables backoff on 502/503/504. Only set for operations that
	// are safe to repeat.
	retry bool
}

// do executes cl and returns the 2xx response body.
func (c *Client) do(ctx context.Context, cl call) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "remote."+cl.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("remote.op", cl.op),
			attribute.String("http.request.method", cl.method),
		),
	)
	defer span.End()

	var payload []byte
	if cl.body != nil {
		var err error
		if payload, err = json.Marshal(cl.body); err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", cl.op, err)
		}
	}

	var (
		attempts int
		status   int
		out      []byte
	)
	operation := func() error {
		attempts++
		body, code, err := c.roundTrip(ctx, cl, payload)
		status = code
		if err != nil {
			return backoff.Permanent(transportFailure(cl.op, err))
		}
		log.Debug().Str("op", cl.op).Str("path", cl.path).Int("attempt", attempts).Int("status", code).Msg("Remote request")
		if code >= 200 && code < 300 {
			out = body
			return nil
		}
		f := rejected(cl.op, code, body)
		if cl.retry && retryableStatus(code) {
			return f
		}
		return backoff.Permanent(f)
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("op", cl.op).Int("attempt", attempts).Dur("wait", wait).Msg("Remote request failed, retrying")
	}

	err := backoff.RetryNotify(operation, c.policy(ctx, cl.retry), notify)
	span.SetAttributes(attribute.Int("remote.attempts", attempts))
	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		if _, ok := AsFailure(err); !ok {
			// Context errors surface from the backoff loop itself.
			err = transportFailure(cl.op, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

func (c *Client) policy(ctx context.Context, retry bool) backoff.BackOffContext {
	if !retry {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	return backoff.WithContext(backoff.WithMaxRetries(c.exponential(), uint64(c.maxAttempts-1)), ctx)
}

func (c *Client) exponential() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.MaxElapsedTime = 0
	return b
}

// Budget is the longest a single operation can take: a create waiting out
// its timeout, or a retryable call spending every attempt at the request
// timeout plus the largest possible wait between attempts. Server write
// deadlines must exceed it or the caller never sees the error.
func (c *Client) Budget() time.Duration {
	b := c.exponential()
	retry := time.Duration(c.maxAttempts) * c.requestTimeout
	interval := b.InitialInterval
	for i := 1; i < c.maxAttempts; i++ {
		retry += time.Duration(float64(interval) * (1 + b.RandomizationFactor))
		interval = time.Duration(float64(interval) * b.Multiplier)
		if interval > b.MaxInterval {
			interval = b.MaxInterval
		}
	}
	return max(c.createTimeout, retry)
}

// roundTrip performs a single HTTP attempt bounded by cl.timeout.
func (c *Client) roundTrip(ctx context.Context, cl call, payload []byte) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, cl.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// decodeObject parses a JSON object response. An empty body yields an
// empty map.
func decodeObject(op string, data []byte) (map[string]any, error) {
	out := map[string]any{}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, malformed(op, data, fmt.Errorf("decode response: %w", err))
	}
	return out, nil
}
