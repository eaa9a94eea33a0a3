// Package backend is the HTTP client for the platform's ledger/auth API and
// its image generator service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/pixledger/internal/types"
)

const maxErrorMessageChars = 300

// Compile-time interface compliance checks.
var (
	_ types.Authenticator   = (*Client)(nil)
	_ types.IdentityFetcher = (*Client)(nil)
	_ types.ChainSource     = (*Client)(nil)
	_ types.ModelSource     = (*Client)(nil)
	_ types.Generator       = (*Client)(nil)
	_ types.ImageChecker    = (*Client)(nil)
	_ types.Miner           = (*Client)(nil)
)

// Credentials supplies the bearer token, if any. An absent token means the
// caller is unauthenticated and no Authorization header is sent.
type Credentials interface {
	Token() (string, bool)
}

// Config holds the service locations and transport settings.
type Config struct {
	APIURL       string
	GeneratorURL string
	// Timeout bounds each request. Zero means no timeout; callers cancel
	// through the context instead.
	Timeout time.Duration
}

// Client talks to both backend services.
type Client struct {
	config     *Config
	creds      Credentials
	httpClient *http.Client
}

// New creates a Client. creds may be nil for an always-anonymous client.
func New(config *Config, creds Credentials) *Client {
	return &Client{
		config: config,
		creds:  creds,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

func (c *Client) apiURL(path string) string {
	return strings.TrimRight(c.config.APIURL, "/") + path
}

func (c *Client) generatorURL(path string) string {
	return strings.TrimRight(c.config.GeneratorURL, "/") + path
}

// authorize attaches the bearer token. It fails before any I/O when the
// token is absent.
func (c *Client) authorize(op string, req *http.Request) error {
	if c.creds == nil {
		return &unauthorizedError{op: op}
	}
	token, ok := c.creds.Token()
	if !ok || token == "" {
		return &unauthorizedError{op: op}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// send performs req and returns the body of a 2xx response. Any other status
// is classified into ErrUnauthorized or *FetchError.
func (c *Client) send(op string, req *http.Request) ([]byte, http.Header, error) {
	slog.Debug("backend request", "op", op, "method", req.Method, "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, &FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &FetchError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := serverMessage(resp.Header.Get("Content-Type"), body)
		slog.Debug("backend request failed", "op", op, "status", resp.StatusCode, "message", msg)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, nil, &unauthorizedError{op: op, message: msg}
		}
		return nil, nil, &FetchError{Op: op, Status: resp.StatusCode, Message: msg}
	}
	return body, resp.Header, nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, url string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func decodeJSON(op string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &ValidationError{Field: op + " response", Reason: err.Error()}
	}
	return nil
}

// serverMessage extracts a human message from an error body: the JSON
// "error" or "message" field, an HTML page converted to text, or short plain
// text. It returns "" when nothing usable is present.
func serverMessage(contentType string, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(trimmed, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		return payload.Message
	}

	text := string(trimmed)
	if strings.Contains(contentType, "text/html") || strings.HasPrefix(text, "<") {
		md, err := htmltomarkdown.ConvertString(text)
		if err != nil {
			return ""
		}
		text = md
	}
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > maxErrorMessageChars {
		text = text[:maxErrorMessageChars] + "..."
	}
	return text
}
