package forecast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dunamismax/ppmkit/internal/ratelimit"
)

const (
	maxBodyBytes    = 4 << 20
	bodySnippetSize = 256
	maxForecastDays = 16
)

var (
	ErrInvalidQuery = errors.New("invalid forecast query")
	ErrRateLimited  = errors.New("forecast rate limit exceeded")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("forecast api returned status=%d", e.StatusCode)
	}
	return fmt.Sprintf("forecast api returned status=%d body=%q", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type Query struct {
	Latitude  float64
	Longitude float64
	Unit      Unit
	Days      int
}

func (q Query) Validate() error {
	switch {
	case q.Latitude < -90 || q.Latitude > 90:
		return fmt.Errorf("%w: latitude %v outside [-90,90]", ErrInvalidQuery, q.Latitude)
	case q.Longitude < -180 || q.Longitude > 180:
		return fmt.Errorf("%w: longitude %v outside [-180,180]", ErrInvalidQuery, q.Longitude)
	case q.Days < 1 || q.Days > maxForecastDays:
		return fmt.Errorf("%w: days %d outside [1,%d]", ErrInvalidQuery, q.Days, maxForecastDays)
	case q.Unit != Fahrenheit && q.Unit != Celsius:
		return fmt.Errorf("%w: %q", ErrInvalidUnit, q.Unit)
	}
	return nil
}

// Limiter gates outgoing requests. ratelimit.RedisTokenBucket implements it.
type Limiter interface {
	Allow(ctx context.Context, subject string) (ratelimit.Decision, error)
}

type Client struct {
	httpClient     *http.Client
	baseURL        string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	limiter        Limiter
	logger         logrus.FieldLogger
	tracer         trace.Tracer
}

// NewClient builds a client. limiter and logger may be nil.
func NewClient(cfg Config, limiter Limiter, logger logrus.FieldLogger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	initialBackoff := cfg.InitialBackoff
	if initialBackoff <= 0 {
		initialBackoff = 500 * time.Millisecond
	}

	maxBackoff := cfg.MaxBackoff
	if maxBackoff < initialBackoff {
		maxBackoff = initialBackoff
	}

	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:        strings.TrimSpace(cfg.BaseURL),
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
		limiter:        limiter,
		logger:         logger,
		tracer:         otel.Tracer("ppmkit/forecast"),
	}
}

// Fetch requests hourly temperatures for q. 5xx, 429 and transport errors
// are retried with exponential backoff; other failures return immediately.
func (c *Client) Fetch(ctx context.Context, q Query) (Response, error) {
	if err := q.Validate(); err != nil {
		return Response{}, err
	}
	endpoint, err := c.endpoint(q)
	if err != nil {
		return Response{}, err
	}

	ctx, span := c.tracer.Start(ctx, "forecast.fetch", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.Float64("forecast.latitude", q.Latitude),
		attribute.Float64("forecast.longitude", q.Longitude),
		attribute.String("forecast.unit", string(q.Unit)),
		attribute.Int("forecast.days", q.Days),
	)
	defer span.End()

	fail := func(err error) (Response, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "forecast fetch failed")
		return Response{}, err
	}

	if err := c.checkLimit(ctx, endpoint); err != nil {
		return fail(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialBackoff
	policy.MaxInterval = c.maxBackoff

	attempts := 0
	resp, err := backoff.Retry(ctx, func() (Response, error) {
		attempts++
		return c.fetchOnce(ctx, endpoint)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.maxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.WithFields(logrus.Fields{
				"attempt": attempts,
				"wait":    wait,
			}).WithError(err).Warn("forecast request failed, retrying")
		}),
	)
	span.SetAttributes(attribute.Int("forecast.attempts", attempts))
	if err != nil {
		return fail(fmt.Errorf("fetch forecast after %d attempt(s): %w", attempts, err))
	}

	c.logger.WithFields(logrus.Fields{
		"attempts": attempts,
		"hours":    len(resp.Hourly.Time),
		"timezone": resp.Timezone,
	}).Debug("forecast fetched")
	return resp, nil
}

func (c *Client) endpoint(q Query) (*url.URL, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w: base url is required", ErrInvalidQuery)
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base url %q: %v", ErrInvalidQuery, c.baseURL, err)
	}

	params := u.Query()
	params.Set("latitude", strconv.FormatFloat(q.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(q.Longitude, 'f', -1, 64))
	params.Set("hourly", "temperature_2m")
	params.Set("temperature_unit", string(q.Unit))
	params.Set("timezone", "auto")
	params.Set("forecast_days", strconv.Itoa(q.Days))
	u.RawQuery = params.Encode()
	return u, nil
}

// checkLimit fails open when the limiter itself is unavailable.
func (c *Client) checkLimit(ctx context.Context, endpoint *url.URL) error {
	if c.limiter == nil {
		return nil
	}

	decision, err := c.limiter.Allow(ctx, endpoint.Host)
	if err != nil {
		c.logger.WithError(err).WithField("subject", endpoint.Host).Warn("rate limiter check failed")
		return nil
	}
	if !decision.Allowed {
		return fmt.Errorf("%w: retry after %s", ErrRateLimited, decision.RetryAfter.Round(time.Millisecond))
	}
	return nil
}

func (c *Client) fetchOnce(ctx context.Context, endpoint *url.URL) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return Response{}, backoff.Permanent(fmt.Errorf("build forecast request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ppmkit-forecast")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, backoff.Permanent(ctxErr)
		}
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("read forecast body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: snippet(body)}
		if statusErr.Retryable() {
			return Response{}, statusErr
		}
		return Response{}, backoff.Permanent(statusErr)
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return Response{}, backoff.Permanent(fmt.Errorf("%w: decode json: %v", ErrInvalidResponse, err))
	}
	return out, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= bodySnippetSize {
		return s
	}
	cut := bodySnippetSize
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
