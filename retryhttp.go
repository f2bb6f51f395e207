package rangestream

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/eapache/go-resiliency/retrier"
)

// errNonRetriable classifies a 4xx response as non-retriable so the
// retrier stops instead of burning its budget against a request that will
// never succeed.
var errNonRetriable = errors.New("rangestream: non-retriable HTTP status received")

// httpDoer is satisfied by *http.Client and RetryHTTPClient; it is the
// seam the HTTP Fetcher depends on, so tests can substitute a client with
// no retry policy at all.
type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// RetryHTTPClient retries failed Range requests with constant backoff,
// leaving retry/backoff policy entirely with the Fetcher collaborator as
// SPEC_FULL.md's Non-goals require — the core itself never retries.
type RetryHTTPClient struct {
	client  *http.Client
	retrier *retrier.Retrier
}

var _ httpDoer = (*RetryHTTPClient)(nil)

// NewRetryHTTPClient returns a RetryHTTPClient that retries a failed
// request up to retries times, waiting every between attempts, using
// transport as the underlying RoundTripper (http.DefaultTransport if nil).
func NewRetryHTTPClient(retries int, every time.Duration, transport http.RoundTripper) *RetryHTTPClient {
	if transport == nil {
		transport = http.DefaultTransport
	}
	b := make(retrier.BlacklistClassifier, 1)
	b[0] = errNonRetriable

	return &RetryHTTPClient{
		client:  &http.Client{Transport: transport},
		retrier: retrier.New(retrier.ConstantBackoff(retries, every), b),
	}
}

// Do issues req, retrying on network errors and 5xx/429 responses but not
// on 4xx responses other than 429, which are treated as non-retriable.
func (c *RetryHTTPClient) Do(req *http.Request) (*http.Response, error) {
	var result *http.Response

	try := func() error {
		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			return fmt.Errorf("rangestream: retriable HTTP status %s", resp.Status)
		}
		if resp.StatusCode >= 400 {
			result = resp
			return errNonRetriable
		}
		result = resp
		return nil
	}

	if err := c.retrier.Run(try); err != nil && !errors.Is(err, errNonRetriable) {
		return nil, err
	}
	return result, nil
}
