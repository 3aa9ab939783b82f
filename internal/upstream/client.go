package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"go.uber.org/zap"

	"github.com/edusuite/enrollment-gateway/pkg/config"
)

// Observer receives the outcome of every core-API request, keyed by
// "METHOD /path". Used for metrics.
type Observer func(operation string, err error)

// Client is the typed HTTP client for the core school backend. All
// canonical entities (students, tutors, registrations, payments,
// documents) live there; the gateway only orchestrates.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
	observe Observer
}

// New constructs a core-API client from configuration.
func New(cfg config.CoreAPIConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.BearerToken,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// SetObserver installs a per-request outcome callback.
func (c *Client) SetObserver(observe Observer) {
	c.observe = observe
}

// Error carries the upstream HTTP status and message so commit failures
// can surface the backend's own wording to the operator.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("core api: %s (status %d)", e.Message, e.StatusCode)
}

// FilePart is a file attached to a multipart request.
type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Reader      io.Reader
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type createdEntity struct {
	ID string `json:"id"`
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, dest)
}

func (c *Client) doMultipart(ctx context.Context, method, path string, fields map[string]string, files []FilePart, dest interface{}) error {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("write multipart field %s: %w", key, err)
		}
	}
	for _, file := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Filename))
		if file.ContentType != "" {
			header.Set("Content-Type", file.ContentType)
		}
		part, err := writer.CreatePart(header)
		if err != nil {
			return fmt.Errorf("create multipart part: %w", err)
		}
		if _, err := io.Copy(part, file.Reader); err != nil {
			return fmt.Errorf("copy multipart file: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		err = fmt.Errorf("core api request %s %s: %w", req.Method, req.URL.Path, err)
		c.report(req, err)
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		err = fmt.Errorf("read core api response: %w", err)
		c.report(req, err)
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upErr := &Error{StatusCode: resp.StatusCode, Message: extractMessage(raw, resp.StatusCode)}
		c.report(req, upErr)
		return upErr
	}
	c.report(req, nil)
	if dest == nil || len(raw) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, dest); err != nil {
			return fmt.Errorf("decode core api payload: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode core api response: %w", err)
	}
	return nil
}

// report notifies the observer using a low-cardinality operation label:
// the method plus the first path segment, ids stripped.
func (c *Client) report(req *http.Request, err error) {
	if c.observe == nil {
		return
	}
	segment := strings.TrimPrefix(req.URL.Path, "/")
	if idx := strings.Index(segment, "/"); idx >= 0 {
		segment = segment[:idx]
	}
	c.observe(req.Method+" /"+segment, err)
}

func extractMessage(raw []byte, status int) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != nil && env.Error.Message != "" {
		return env.Error.Message
	}
	var generic struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &generic); err == nil && generic.Message != "" {
		return generic.Message
	}
	return http.StatusText(status)
}
