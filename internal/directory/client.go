package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"outreach-engine/internal/ratelimit"
)

// HTTPClient implements Searcher and Lookuper against a JSON people API.
type HTTPClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	Limiter *ratelimit.HostLimiter
}

// NewHTTPClient builds a client capped at requestsPerMinute.
func NewHTTPClient(baseURL, apiKey string, requestsPerMinute int, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
		Limiter: ratelimit.PerMinute(requestsPerMinute),
	}
}

type searchResponse struct {
	People []Person `json:"people"`
}

type matchResponse struct {
	Person *Contact `json:"person"`
}

func (c *HTTPClient) Search(ctx context.Context, req SearchRequest) ([]Person, error) {
	var out searchResponse
	if err := c.post(ctx, "/v1/people/search", req, &out); err != nil {
		return nil, err
	}
	if req.Limit > 0 && len(out.People) > req.Limit {
		out.People = out.People[:req.Limit]
	}
	return out.People, nil
}

func (c *HTTPClient) Lookup(ctx context.Context, req LookupRequest) (Contact, error) {
	var out matchResponse
	if err := c.post(ctx, "/v1/people/match", req, &out); err != nil {
		return Contact{}, err
	}
	if out.Person == nil {
		return Contact{}, ErrNotFound
	}
	return *out.Person, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	u := c.BaseURL + path
	if c.Limiter != nil {
		if err := c.Limiter.WaitURL(ctx, u); err != nil {
			return err
		}
	}

	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-Api-Key", c.APIKey)
	}

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("directory %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("directory %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
