package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Poll responses are bounded to keep a misbehaving endpoint from ballooning
// memory in the degraded-mode path.
const maxPollBody = 4 << 20

// HTTPPoller fetches state documents from a status endpoint, one GET per
// call. It satisfies Poller.
type HTTPPoller struct {
	URL    string
	Token  string
	Client *http.Client
}

// NewHTTPPoller builds a poller with a bounded-timeout HTTP client.
func NewHTTPPoller(url, token string) *HTTPPoller {
	return &HTTPPoller{
		URL:    url,
		Token:  token,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Poll performs one request and returns the response body.
func (p *HTTPPoller) Poll(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build poll request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll %s: %w", p.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll %s: unexpected status %s", p.URL, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPollBody))
	if err != nil {
		return nil, fmt.Errorf("read poll body: %w", err)
	}
	return body, nil
}
