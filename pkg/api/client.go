package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Class groups requests that share a timeout budget.
type Class string

const (
	ClassStatus   Class = "status"
	ClassBranches Class = "branches"
	ClassDeploy   Class = "deploy"
	ClassKill     Class = "kill"
	ClassSearch   Class = "search"
	ClassDelete   Class = "delete"
	ClassDefault  Class = "default"
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token() string
}

// Interceptor observes every response and every error the client produces,
// regardless of which caller issued the request.
type Interceptor interface {
	OnResponse(env Envelope)
	OnError(err error)
}

// Envelope is the error shape the backend uses, both in error responses and
// embedded in otherwise successful bodies.
type Envelope struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// APIError is returned for any response with status >= 400.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

// Client provides typed access to the deployment-management backend.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	tokens       TokenSource
	interceptors []Interceptor
	timeouts     map[Class]time.Duration
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTokenSource attaches the bearer token provider.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithInterceptor registers an observer of all responses and errors.
func WithInterceptor(i Interceptor) Option {
	return func(c *Client) {
		if i != nil {
			c.interceptors = append(c.interceptors, i)
		}
	}
}

// WithTimeout sets the budget for one request class. Zero disables it.
func WithTimeout(class Class, d time.Duration) Option {
	return func(c *Client) { c.timeouts[class] = d }
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return nil, errors.New("api base url is required")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{},
		timeouts:   map[Class]time.Duration{},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

type requestIDKey struct{}

// WithRequestID tags ctx so every request made with it carries X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by WithRequestID, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (c *Client) timeoutFor(class Class) time.Duration {
	if d, ok := c.timeouts[class]; ok {
		return d
	}
	return c.timeouts[ClassDefault]
}

// do performs the request and returns the raw body of a successful response.
func (c *Client) do(ctx context.Context, class Class, method, path string, body any) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if d := c.timeoutFor(class); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	data, err := c.roundTrip(ctx, method, path, body)
	if err != nil {
		for _, i := range c.interceptors {
			i.OnError(err)
		}
		return nil, err
	}
	if env, ok := embeddedError(data); ok {
		for _, i := range c.interceptors {
			i.OnResponse(env)
		}
	}
	return data, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := strings.TrimSpace(c.tokens.Token()); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	if id := RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		env := parseEnvelope(data)
		return nil, APIError{Status: resp.StatusCode, Message: env.Error, Code: env.Code}
	}
	return data, nil
}

func parseEnvelope(data []byte) Envelope {
	var env Envelope
	if len(bytes.TrimSpace(data)) == 0 {
		return env
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}
	}
	env.Error = strings.TrimSpace(env.Error)
	return env
}

// embeddedError reports an application-level error carried by a 2xx body.
func embeddedError(data []byte) (Envelope, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Envelope{}, false
	}
	env := parseEnvelope(trimmed)
	return env, env.Error != ""
}

func decode(data []byte, v any) error {
	if v == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
