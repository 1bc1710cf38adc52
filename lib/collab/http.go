package collab

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

	"github.com/pthm/bindery/internal/logging"
)

// DefaultTimeout bounds requests made with a zero-value HTTPClient.
const DefaultTimeout = 30 * time.Second

// HTTPClient performs outbound requests. Relative URLs are joined to
// BaseURL.
type HTTPClient struct {
	Client  *http.Client
	BaseURL string
	Header  http.Header
	Log     *slog.Logger
}

// NewHTTPClient returns a client with the default timeout.
func NewHTTPClient(baseURL string, log *slog.Logger) *HTTPClient {
	return &HTTPClient{
		Client:  &http.Client{Timeout: DefaultTimeout},
		BaseURL: baseURL,
		Log:     logging.OrDiscard(log),
	}
}

// Request sends body to url. body may be nil, []byte, string, an
// io.Reader or any value, which is sent as JSON. A non-2xx status is not
// an error; transport and read failures are.
func (c *HTTPClient) Request(ctx context.Context, url, method string, body any) (*Response, error) {
	if method == "" {
		method = http.MethodGet
	}
	rd, contentType, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(url), rd)
	if err != nil {
		return nil, fmt.Errorf("collab: build request: %w", err)
	}
	for k, vs := range c.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("collab: %s %s: %w", method, req.URL, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("collab: read %s: %w", req.URL, err)
	}
	logging.OrDiscard(c.Log).Debug("request", "method", method, "url", req.URL.String(),
		"status", resp.StatusCode, "elapsed", time.Since(start))

	return &Response{Status: resp.StatusCode, Header: resp.Header, Content: content}, nil
}

func (c *HTTPClient) resolve(url string) string {
	if c.BaseURL == "" || strings.Contains(url, "://") {
		return url
	}
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(url, "/")
}

func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return bytes.NewReader(b), "", nil
	case string:
		return strings.NewReader(b), "", nil
	case io.Reader:
		return b, "", nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("collab: encode body: %w", err)
	}
	return bytes.NewReader(data), "application/json", nil
}
