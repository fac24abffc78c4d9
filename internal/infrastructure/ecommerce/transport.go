package ecommerce

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
)

// maxResponseSize is the maximum allowed response size from an upstream API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// transport performs throttled HTTP calls and maps failures onto marketplace errors
type transport struct {
	name       string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Endpoint is the connection profile shared by the marketplace clients
type Endpoint struct {
	BaseURL           string
	TimeoutSeconds    int
	RequestsPerSecond float64 // zero disables throttling
	Burst             int
}

const defaultTimeoutSeconds = 30

// productionEndpoint is what the constructors start from
func productionEndpoint(baseURL string) Endpoint {
	return Endpoint{BaseURL: baseURL, TimeoutSeconds: defaultTimeoutSeconds, RequestsPerSecond: 5, Burst: 5}
}

func (e *Endpoint) fill(baseURL string) {
	if e.BaseURL == "" {
		e.BaseURL = baseURL
	}
	if e.TimeoutSeconds <= 0 {
		e.TimeoutSeconds = defaultTimeoutSeconds
	}
	e.Burst = max(e.Burst, 1)
}

// resolve joins path onto the base URL
func (e Endpoint) resolve(path string) string {
	return strings.TrimRight(e.BaseURL, "/") + "/" + path
}

func newTransport(name string, e Endpoint) *transport {
	limit := rate.Inf
	if e.RequestsPerSecond > 0 {
		limit = rate.Limit(e.RequestsPerSecond)
	}
	return &transport{
		name:       name,
		httpClient: &http.Client{Timeout: time.Duration(e.TimeoutSeconds) * time.Second},
		limiter:    rate.NewLimiter(limit, max(e.Burst, 1)),
	}
}

// do executes the request. notFound is the error used for 404/410 responses,
// which callers set to marketplace.ErrProductNotFound on product detail lookups.
func (t *transport) do(ctx context.Context, req *http.Request, notFound error) ([]byte, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: waiting for rate limiter: %v", marketplace.ErrUnavailable, t.name, err)
	}

	resp, err := t.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", marketplace.ErrUnavailable, t.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: failed to read response: %v", marketplace.ErrUnavailable, t.name, err)
	}

	if err := statusError(resp.StatusCode, notFound); err != nil {
		return nil, fmt.Errorf("%w: %s HTTP %d", err, t.name, resp.StatusCode)
	}
	return body, nil
}

func statusError(code int, notFound error) error {
	switch {
	case code < 400:
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		if notFound == nil {
			return marketplace.ErrRequestFailed
		}
		return notFound
	case code == http.StatusTooManyRequests:
		return marketplace.ErrRateLimited
	case code == http.StatusRequestTimeout || code >= 500:
		return marketplace.ErrUnavailable
	default:
		return marketplace.ErrRequestFailed
	}
}
