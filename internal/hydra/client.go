// Package hydra talks to the HTTP API of a Hydra CI server.
//
// A Client logs in and hands back a Session. The Session carries the
// server's session cookie in its own cookie jar and issues the
// idempotent PUT requests that create or update projects and jobsets.
// Nothing is shared between clients; each run builds its own.
package hydra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"hydractl/internal/apperrors"
	"hydractl/internal/observability"
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// Host is the base URL of the Hydra server (e.g., "https://hydra.example.org").
	// It is also sent verbatim as the Referer header.
	Host string
	// HTTPClient is the transport to use. Its Jar is replaced by a fresh
	// cookie jar owned by this client. If nil, a new http.Client is built.
	HTTPClient *http.Client
	// Timeout overrides HTTPClient.Timeout when non-zero.
	Timeout time.Duration
	// StrictStatus turns non-2xx responses into apperrors.ErrApplication.
	// When false, any response completes the call.
	StrictStatus bool
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
	// Metrics records request metrics. May be nil.
	Metrics *observability.Metrics
}

// Client is an unauthenticated Hydra client.
type Client struct {
	host         string
	baseURL      string
	httpClient   *http.Client
	strictStatus bool
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// NewClient creates a new Hydra client with its own cookie jar.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Host == "" {
		return nil, apperrors.Validation("host", "hydra host is required")
	}
	parsed, err := url.Parse(config.Host)
	if err != nil {
		return nil, apperrors.Validation("host", fmt.Sprintf("invalid hydra host %q: %v", config.Host, err))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, apperrors.Validation("host", fmt.Sprintf("hydra host %q must be an http or https URL", config.Host))
	}
	if parsed.Host == "" {
		return nil, apperrors.Validation("host", fmt.Sprintf("hydra host %q has no host name", config.Host))
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	// Copy so the caller's client never sees our jar.
	httpClient := &http.Client{}
	if config.HTTPClient != nil {
		*httpClient = *config.HTTPClient
	}
	httpClient.Jar = jar
	if config.Timeout > 0 {
		httpClient.Timeout = config.Timeout
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		host:         config.Host,
		baseURL:      strings.TrimRight(config.Host, "/"),
		httpClient:   httpClient,
		strictStatus: config.StrictStatus,
		logger:       logger,
		metrics:      config.Metrics,
	}, nil
}

// Host returns the host the client was configured with.
func (c *Client) Host() string {
	return c.host
}

// Login authenticates with the given credentials and returns a Session
// whose requests carry the session cookie set by the server.
// The credentials are read but not cleared; the caller owns them.
func (c *Client) Login(ctx context.Context, creds *Credentials) (*Session, *Result, error) {
	if creds == nil || creds.Username == "" {
		return nil, nil, apperrors.Validation("user", "username is required for login")
	}
	if !creds.HasPassword() {
		return nil, nil, apperrors.Validation("password", "password is required for login")
	}

	// Password is converted to string at the JSON serialization boundary.
	body := loginRequest{
		Username: creds.Username,
		Password: string(creds.password),
	}

	result, err := c.do(ctx, "hydra.login", http.MethodPost, "/login", body)
	if err != nil {
		return nil, result, err
	}

	c.logger.Info("Logged in to hydra", "user", creds.Username, "status", result.StatusCode)
	return &Session{client: c, user: creds.Username}, result, nil
}

// do sends one JSON request and returns its status-aware result.
// Transport failures return apperrors.ErrTransport; with strict status
// checking, non-2xx responses return apperrors.ErrApplication together
// with the result.
func (c *Client) do(ctx context.Context, op, method, path string, body any) (*Result, error) {
	encoded, err := encodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to encode request body: %w", op, err)
	}

	requestURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, requestURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, apperrors.Transport(op, fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	// Hydra's CSRF protection rejects state-changing requests without it.
	req.Header.Set("Referer", c.host)

	logger := c.logger.With("method", method, "path", path)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		duration := time.Since(start)
		if c.metrics != nil {
			c.metrics.RecordHydraTransportError(ctx, method, path, duration.Seconds())
		}
		logger.Error("Hydra request failed", "error", err, "duration", duration)
		return nil, apperrors.Transport(op, err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	// Drain the rest so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	duration := time.Since(start)

	result := &Result{
		Method:     method,
		URL:        requestURL,
		StatusCode: resp.StatusCode,
		Duration:   duration,
	}

	if c.metrics != nil {
		c.metrics.RecordHydraRequest(ctx, method, path, resp.StatusCode, duration.Seconds())
	}
	logger.Debug("Hydra request", "status", resp.StatusCode, "duration", duration)

	if result.OK() {
		return result, nil
	}

	if !c.strictStatus {
		logger.Warn("Hydra returned non-success status, continuing", "status", resp.StatusCode)
		return result, nil
	}

	message := ""
	if readErr == nil {
		message = strings.TrimSpace(string(respBody))
	}
	return result, apperrors.Application(op, resp.StatusCode, message)
}

// encodeBody marshals a request body. Raw JSON is sent as is.
func encodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}
