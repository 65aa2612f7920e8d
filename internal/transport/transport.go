// Package transport configures the resty clients shared by the API packages.
package transport

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Options configures a client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	// HTTPClient replaces the underlying client, e.g. one from oauth2.NewClient.
	HTTPClient *http.Client
}

// New returns a JSON resty client that retries transport failures,
// rate limiting and server errors.
func New(opts Options, logger *zap.Logger) *resty.Client {
	var client *resty.Client
	if opts.HTTPClient != nil {
		client = resty.NewWithClient(opts.HTTPClient)
	} else {
		client = resty.New()
	}
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	client.
		SetBaseURL(opts.BaseURL).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(Retryable).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			// Decode results even when the server mislabels its JSON.
			r.ForceContentType("application/json")
			return nil
		})

	if logger != nil {
		client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
			logger.Debug("http response",
				zap.String("method", resp.Request.Method),
				zap.String("url", resp.Request.URL),
				zap.Int("status", resp.StatusCode()),
				zap.Duration("elapsed", resp.Time()),
			)
			return nil
		})
	}
	return client
}

// Retryable reports whether a request should be retried.
func Retryable(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
