package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ReadinessProbe polls <baseUrl>api until the server answers 2xx.
type ReadinessProbe struct {
	Timeout time.Duration
	client  *retryablehttp.Client
}

// NewReadinessProbe creates a probe bounded by timeout.
func NewReadinessProbe(timeout time.Duration) *ReadinessProbe {
	client := retryablehttp.NewClient()
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	// The timeout bounds the probe, not the retry count.
	client.RetryMax = 1 << 16
	client.Logger = nil
	client.HTTPClient.Timeout = 5 * time.Second
	client.CheckRetry = retryUntilReady
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &ReadinessProbe{Timeout: timeout, client: client}
}

// retryUntilReady retries every failure, including 4xx answers a server gives
// while its API routes are still loading, until the context is done.
func retryUntilReady(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	return resp.StatusCode < 200 || resp.StatusCode > 299, nil
}

// Wait blocks until the API endpoint answers 2xx, the timeout elapses, or ctx
// is canceled.
func (p *ReadinessProbe) Wait(ctx context.Context, baseURL string, header map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, baseURL+"api", nil)
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("server at %s not ready: %w", baseURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server at %s not ready: status %d", baseURL, resp.StatusCode)
	}
	return nil
}
