package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/telekom/frontdesk/pkg/version"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL   *url.URL
	http      *resty.Client
	userAgent string
	timeout   time.Duration
	verbose   func(format string, args ...any)
}

type Option func(*Client) error

func New(opts ...Option) (*Client, error) {
	c := &Client{
		userAgent: version.UserAgent("fdctl"),
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.baseURL == nil {
		return nil, errors.New("server is required")
	}
	c.http = resty.New().
		SetBaseURL(strings.TrimSuffix(c.baseURL.String(), "/")).
		SetTimeout(c.timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", c.userAgent)
	if c.verbose != nil {
		c.http.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
			c.verbose("%s %s -> %d (%s, request id %s)",
				resp.Request.Method, resp.Request.URL, resp.StatusCode(), resp.Time(), resp.Header().Get("X-Request-ID"))
			return nil
		})
	}
	return c, nil
}

func WithServer(server string) Option {
	return func(c *Client) error {
		if server == "" {
			return errors.New("server is required")
		}
		parsed, err := url.Parse(server)
		if err != nil {
			return fmt.Errorf("invalid server: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("invalid server %q: scheme must be http or https", server)
		}
		c.baseURL = parsed
		return nil
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) error {
		c.userAgent = userAgent
		return nil
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d > 0 {
			c.timeout = d
		}
		return nil
	}
}

// WithVerbose logs every response through logf.
func WithVerbose(logf func(format string, args ...any)) Option {
	return func(c *Client) error {
		c.verbose = logf
		return nil
	}
}

// Server returns the configured server URL.
func (c *Client) Server() string {
	return c.baseURL.String()
}

type apiError struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details"`
}

func (c *Client) do(ctx context.Context, method, endpoint string, query map[string]string, body any, out any) error {
	var apiErr apiError
	req := c.http.R().
		SetContext(ctx).
		SetError(&apiErr).
		SetQueryParams(query)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, endpoint)
	if err != nil {
		return err
	}
	if resp.IsError() {
		msg := strings.TrimSpace(apiErr.Error)
		if msg != "" && apiErr.Details != "" {
			msg += ": " + apiErr.Details
		}
		if msg == "" {
			msg = strings.TrimSpace(string(resp.Body()))
		}
		if msg == "" {
			msg = resp.Status()
		}
		return &HTTPError{StatusCode: resp.StatusCode(), Code: apiErr.Code, Message: msg}
	}
	return nil
}

type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an HTTPError with the given status code.
func IsStatus(err error, status int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == status
}
