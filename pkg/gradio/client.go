package gradio

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

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// ErrNotConnected is returned by calls made before Connect succeeds
var ErrNotConnected = errors.New("gradio client is not connected")

// NewClient creates a Client for the given space. The timeout applies to every
// request made by the client, including reading the result stream.
func NewClient(space, token string, timeout time.Duration) *Client {
	return &Client{
		Space:      space,
		Token:      token,
		HubURL:     DefaultHubURL,
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     discardLogger(),
	}
}

// ValidateSpace checks that space is an "owner/name" identifier or an
// http(s) URL
func ValidateSpace(space string) error {
	if isURL(space) {
		u, err := url.Parse(space)
		if err != nil {
			return fmt.Errorf("invalid space URL %q: %w", space, err)
		}
		if u.Host == "" {
			return fmt.Errorf("invalid space URL %q: missing host", space)
		}
		return nil
	}

	owner, name, ok := strings.Cut(space, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("invalid space identifier %q: expected owner/name", space)
	}
	return nil
}

// Connect resolves the app's root URL and reads its config
func (c *Client) Connect(ctx context.Context) error {
	if err := ValidateSpace(c.Space); err != nil {
		return err
	}

	root, err := c.resolveRoot(ctx)
	if err != nil {
		return err
	}

	body, err := c.getJSON(ctx, root+"/config", "config")
	if err != nil {
		return err
	}

	c.rootURL = root
	c.apiPrefix = normalizePrefix(gjson.GetBytes(body, "api_prefix").String())
	c.version = gjson.GetBytes(body, "version").String()

	c.logger().WithFields(logrus.Fields{
		"root":       c.rootURL,
		"api_prefix": c.apiPrefix,
		"version":    c.version,
	}).Debug("Connected to Gradio app")

	return nil
}

// RootURL returns the resolved root URL, empty until Connect succeeds
func (c *Client) RootURL() string {
	return c.rootURL
}

// Version returns the Gradio version reported by the app
func (c *Client) Version() string {
	return c.version
}

// Predict calls the named endpoint with data and waits for its output.
// The returned value is the raw JSON array of the endpoint's outputs.
func (c *Client) Predict(ctx context.Context, apiName string, data ...any) (json.RawMessage, error) {
	if c.rootURL == "" {
		return nil, ErrNotConnected
	}

	name := strings.TrimPrefix(apiName, "/")
	if name == "" {
		return nil, errors.New("empty api name")
	}

	if data == nil {
		data = []any{}
	}

	reqBody, err := json.Marshal(callRequest{
		Data:        data,
		SessionHash: uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal call request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("call", name), bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req, "call")
	if err != nil {
		return nil, err
	}

	eventID := gjson.GetBytes(body, "event_id").String()
	if eventID == "" {
		return nil, &APIError{
			Message: "gradio call returned no event id",
			RawBody: body,
		}
	}

	c.logger().WithField("event_id", eventID).Debugf("Waiting for %s result", apiName)

	return c.awaitResult(ctx, name, eventID)
}

func (c *Client) awaitResult(ctx context.Context, name, eventID string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("call", name, eventID), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	c.setHeaders(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, "result stream")
	}

	return readResult(resp.Body, c.logger())
}

func (c *Client) resolveRoot(ctx context.Context) (string, error) {
	if isURL(c.Space) {
		return strings.TrimRight(c.Space, "/"), nil
	}

	hub := strings.TrimRight(c.HubURL, "/")
	body, err := c.getJSON(ctx, hub+"/api/spaces/"+c.Space+"/host", "space host lookup")
	if err != nil {
		return "", fmt.Errorf("could not resolve space %s: %w", c.Space, err)
	}

	host := gjson.GetBytes(body, "host").String()
	if host == "" {
		return "", fmt.Errorf("could not resolve space %s: no host in hub response", c.Space)
	}

	return strings.TrimRight(host, "/"), nil
}

func (c *Client) endpoint(parts ...string) string {
	return c.rootURL + c.apiPrefix + "/" + strings.Join(parts, "/")
}

func (c *Client) getJSON(ctx context.Context, target, what string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	body, err := c.do(req, what)
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(body) {
		return nil, &APIError{
			Message: fmt.Sprintf("gradio %s returned invalid JSON", what),
			RawBody: body,
		}
	}

	return body, nil
}

// do sends req and returns the full body of a 2xx response
func (c *Client) do(req *http.Request, what string) ([]byte, error) {
	c.setHeaders(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp, what)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response body: %w", what, err)
	}

	return body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "patholens")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}

func statusError(resp *http.Response, what string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	return &APIError{
		Message:    fmt.Sprintf("gradio %s API error %d", what, resp.StatusCode),
		StatusCode: resp.StatusCode,
		RawBody:    body,
	}
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return "/" + prefix
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func discardLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func (c *Client) logger() logrus.FieldLogger {
	if c.Logger == nil {
		c.Logger = discardLogger()
	}
	return c.Logger
}
