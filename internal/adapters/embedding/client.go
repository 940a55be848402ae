// Package embedding turns text into fixed-length vectors through a remote
// feature-extraction endpoint.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/okian/eventrank/internal/domain/model"
	"github.com/okian/eventrank/pkg/logger"
	"github.com/okian/eventrank/pkg/metrics"
)

// Defaults used when no option overrides them.
const (
	defaultTimeout       = 10 * time.Second
	defaultMaxRetries    = 3
	defaultBaseDelay     = 500 * time.Millisecond
	defaultMaxDelay      = 8 * time.Second
	defaultMaxInputChars = 2048
	maxErrorSnippet      = 200
)

// Client calls a Hugging Face style feature-extraction endpoint:
// POST {"inputs": text} with a bearer token, answered by a flat or singly
// nested array of numbers.
type Client struct {
	http     *resty.Client
	endpoint string
	token    string

	dimension     int
	timeout       time.Duration
	maxRetries    int
	baseDelay     time.Duration
	maxDelay      time.Duration
	maxInputChars int
	limiter       *rate.Limiter
	log           logger.Logger
}

// NewClient creates a Client. A missing endpoint or token is reported on the
// first Embed call as a configuration error, without touching the network.
func NewClient(endpoint, token string, opts ...Option) *Client {
	c := &Client{
		http:          resty.New(),
		endpoint:      strings.TrimSpace(endpoint),
		token:         strings.TrimSpace(token),
		dimension:     model.Dimension,
		timeout:       defaultTimeout,
		maxRetries:    defaultMaxRetries,
		baseDelay:     defaultBaseDelay,
		maxDelay:      defaultMaxDelay,
		maxInputChars: defaultMaxInputChars,
		limiter:       rate.NewLimiter(rate.Inf, 1),
		log:           logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embed returns the embedding of text. Transient failures are retried with
// exponential backoff up to the configured number of extra attempts.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := c.embed(ctx, text)

	outcome := "success"
	if err != nil {
		outcome = KindOf(err).String()
		metrics.RecordErrorByComponent("embedding", outcome)
	}
	metrics.RecordEmbeddingRequest(outcome, float64(time.Since(start).Milliseconds()))
	return vec, err
}

func (c *Client) embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &Error{Kind: KindFormat, Op: "embed", Err: ErrEmptyInput}
	}
	if c.token == "" {
		return nil, &Error{Kind: KindConfig, Op: "embed", Err: ErrMissingToken}
	}
	if c.endpoint == "" {
		return nil, &Error{Kind: KindConfig, Op: "embed", Err: ErrMissingEndpoint}
	}

	if n := utf8.RuneCountInString(text); n > c.maxInputChars {
		c.log.Warn(ctx, "embedding input truncated",
			logger.Int("length", n),
			logger.Int("limit", c.maxInputChars))
		text = string([]rune(text)[:c.maxInputChars])
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			c.log.Debug(ctx, "retrying embedding request",
				logger.Int("attempt", attempt),
				logger.Int("max_retries", c.maxRetries),
				logger.Duration("delay", delay))
			metrics.RecordEmbeddingRetry()

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &Error{Kind: KindTransient, Op: "embed", Err: ctx.Err()}
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Kind: KindTransient, Op: "embed", Err: err}
		}

		vec, err := c.once(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err

		if !c.retryable(ctx, err) {
			if KindOf(err) == KindFormat {
				c.log.Warn(ctx, "embedding response rejected", logger.Error(err))
			}
			return nil, err
		}
		c.log.Warn(ctx, "embedding attempt failed",
			logger.Int("attempt", attempt+1),
			logger.Error(err))
	}

	return nil, lastErr
}

// once performs a single HTTP round trip bounded by the per-attempt timeout.
func (c *Client) once(ctx context.Context, text string) ([]float32, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(attemptCtx).
		SetAuthToken(c.token).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetBody(map[string]string{"inputs": text}).
		Post(c.endpoint)
	if err != nil {
		if ctxErr := attemptCtx.Err(); ctxErr != nil {
			return nil, &Error{Kind: KindTransient, Op: "post", Err: ctxErr}
		}
		return nil, &Error{Kind: KindTransient, Op: "post", Err: redactErr(err, c.token)}
	}

	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		vec, perr := parseVector(resp.Body(), c.dimension)
		if perr != nil {
			return nil, &Error{Kind: KindFormat, Op: "decode", StatusCode: code, Err: perr}
		}
		return vec, nil
	case code == http.StatusTooManyRequests || code >= 500:
		return nil, &Error{Kind: KindTransient, Op: "post", StatusCode: code, Err: c.remoteError(resp.Body())}
	case code == http.StatusBadRequest || code == http.StatusRequestEntityTooLarge || code == http.StatusUnprocessableEntity:
		// The endpoint rejected this input; other inputs may still embed.
		return nil, &Error{Kind: KindFormat, Op: "post", StatusCode: code, Err: c.remoteError(resp.Body())}
	default:
		return nil, &Error{Kind: KindConfig, Op: "post", StatusCode: code, Err: c.remoteError(resp.Body())}
	}
}

// retryable reports whether another attempt may succeed. A canceled parent
// context always stops the loop.
func (c *Client) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return errors.Is(err, ErrTransient)
}

// backoff returns base * 2^(attempt-1), capped at maxDelay.
func (c *Client) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(c.baseDelay) * math.Pow(2, float64(attempt-1)))
	if delay > c.maxDelay || delay <= 0 {
		delay = c.maxDelay
	}
	return delay
}

// remoteError extracts the service's error message, if any.
func (c *Client) remoteError(body []byte) error {
	msg := gjson.GetBytes(body, "error").String()
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		return nil
	}
	if len(msg) > maxErrorSnippet {
		msg = msg[:maxErrorSnippet]
	}
	return redactErr(errors.New(msg), c.token)
}

// parseVector accepts [n1, n2, ...] or [[n1, n2, ...]] and returns a vector of
// exactly dim finite numbers.
func parseVector(body []byte, dim int) ([]float32, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("response is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, fmt.Errorf("expected array, got %s", root.Type)
	}

	items := root.Array()
	if len(items) > 0 && items[0].IsArray() {
		if len(items) != 1 {
			return nil, fmt.Errorf("expected one nested vector, got %d", len(items))
		}
		items = items[0].Array()
	}
	if len(items) != dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidDimension, len(items), dim)
	}

	vec := make([]float32, dim)
	for i, it := range items {
		if it.Type != gjson.Number {
			return nil, fmt.Errorf("element %d is not a number", i)
		}
		f := it.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("element %d is not finite", i)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}
