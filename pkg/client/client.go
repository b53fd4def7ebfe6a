// Package client provides the HTTP transport that request executors talk to:
// one Request operation that sends a descriptor and returns the decoded
// response envelope.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/fetchkit/pkg/logging"
)

// HeaderRequestID carries the per-request correlation id.
const HeaderRequestID = "X-Request-ID"

// Descriptor is one resolved request as the transport sees it.
type Descriptor struct {
	Method string
	URL    string

	// Query is serialized into the query string. Slice values repeat the key.
	Query map[string]any

	// Body is sent as JSON when non-nil.
	Body any

	Header http.Header

	// Timeout overrides the client timeout for this request when > 0.
	Timeout time.Duration
}

// Client is the resty-backed transport.
type Client struct {
	rest   *resty.Client
	config Config
	logger zerolog.Logger
}

// Config holds the transport configuration.
type Config struct {
	// BaseURL is prepended to relative descriptor URLs.
	BaseURL string

	// Timeout bounds every request, including reading the body.
	Timeout time.Duration

	UserAgent string

	// Header is sent with every request.
	Header http.Header
}

// DefaultConfig returns the stock transport configuration for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		Timeout:   60 * time.Second,
		UserAgent: "fetchkit/0.1",
	}
}

// New creates a transport client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: parse base url: %v", ErrInvalidConfig, err)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be > 0 (got %s)", ErrInvalidConfig, cfg.Timeout)
	}

	logger := logging.NewLogger(logging.ComponentTransport)

	rest := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{logger: logger})
	if cfg.UserAgent != "" {
		rest.SetHeader("User-Agent", cfg.UserAgent)
	}
	for key, values := range cfg.Header {
		for _, v := range values {
			rest.Header.Add(key, v)
		}
	}

	c := &Client{
		rest:   rest,
		config: cfg,
		logger: logger,
	}
	rest.OnAfterResponse(c.unwrapEnvelope)

	return c, nil
}

// Request sends d and returns the raw envelope. Any failure to obtain an
// envelope is returned as a *TransportError; an envelope with a non-OK code
// is not an error at this layer.
func (c *Client) Request(ctx context.Context, d Descriptor) (*Envelope[json.RawMessage], error) {
	method := strings.ToUpper(d.Method)
	if method == "" {
		method = http.MethodGet
	}

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		transportRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	requestID := uuid.NewString()
	req := c.rest.R().
		SetContext(ctx).
		SetHeader(HeaderRequestID, requestID)
	for key, values := range d.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if len(d.Query) > 0 {
		req.SetQueryParamsFromValues(EncodeQuery(d.Query))
	}
	if d.Body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(d.Body)
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", d.URL).
		Str("request_id", requestID).
		Msg("Sending request")

	resp, err := req.Execute(method, d.URL)
	if err != nil {
		te := classifyError(err)
		transportErrorsTotal.WithLabelValues(string(te.Class)).Inc()
		transportRequestsTotal.WithLabelValues(method, "transport_error").Inc()
		c.logger.Warn().
			Err(te).
			Str("method", method).
			Str("url", d.URL).
			Str("request_id", requestID).
			Str("error_class", string(te.Class)).
			Msg("Request failed")
		return nil, te
	}

	env, ok := resp.Request.Result.(*Envelope[json.RawMessage])
	if !ok || env == nil {
		te := &TransportError{Class: ErrorClassDecode, StatusCode: resp.StatusCode(), Message: "no envelope"}
		transportErrorsTotal.WithLabelValues(string(te.Class)).Inc()
		transportRequestsTotal.WithLabelValues(method, "transport_error").Inc()
		return nil, te
	}

	outcome := "ok"
	if !env.OK() {
		outcome = "app_error"
	}
	transportRequestsTotal.WithLabelValues(method, outcome).Inc()

	c.logger.Debug().
		Str("method", method).
		Str("url", d.URL).
		Str("request_id", requestID).
		Int("code", env.Code).
		Dur("duration", time.Since(start)).
		Msg("Request completed")

	return env, nil
}

// unwrapEnvelope is the response interceptor. Non-2xx statuses and bodies
// that are not an envelope become a *TransportError; otherwise the decoded
// envelope is attached to the request as its result.
func (c *Client) unwrapEnvelope(_ *resty.Client, resp *resty.Response) error {
	if !resp.IsSuccess() {
		return &TransportError{
			Class:      classifyStatus(resp.StatusCode()),
			StatusCode: resp.StatusCode(),
			Message:    resp.Status(),
		}
	}

	var env Envelope[json.RawMessage]
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return &TransportError{
			Class:      ErrorClassDecode,
			StatusCode: resp.StatusCode(),
			Message:    "malformed envelope",
			Err:        err,
		}
	}
	resp.Request.Result = &env
	return nil
}

// SetTransport replaces the underlying round tripper (for testing).
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.rest.SetTransport(rt)
}

// Config returns the configuration the client was built with.
func (c *Client) Config() Config {
	return c.config
}

// EncodeQuery flattens request parameters into url.Values.
func EncodeQuery(params map[string]any) url.Values {
	values := make(url.Values, len(params))
	for key, v := range params {
		switch vv := v.(type) {
		case nil:
			continue
		case []string:
			for _, s := range vv {
				values.Add(key, s)
			}
		case []any:
			for _, s := range vv {
				values.Add(key, fmt.Sprint(s))
			}
		case []int:
			for _, n := range vv {
				values.Add(key, fmt.Sprint(n))
			}
		default:
			values.Add(key, fmt.Sprint(vv))
		}
	}
	return values
}

func classifyError(err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Class: ErrorClassTimeout, Message: "deadline exceeded", Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TransportError{Class: ErrorClassTimeout, Message: "timeout", Err: err}
	}

	return &TransportError{Class: ErrorClassNetwork, Message: "request failed", Err: err}
}

func classifyStatus(status int) ErrorClass {
	if status >= 500 {
		return ErrorClassServer
	}
	return ErrorClassClient
}

// restyLogger routes resty's internal messages through zerolog.
type restyLogger struct {
	logger zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error().Msgf(strings.TrimSpace(format), v...)
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn().Msgf(strings.TrimSpace(format), v...)
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug().Msgf(strings.TrimSpace(format), v...)
}
