// Package backend is the HTTP client for the remote storefront backend: the
// cart store, coupon store, order collaborator and doctor directory. It
// implements the collaborator interfaces declared by the domain packages and
// converts transport failures into the remote error kinds.
package backend

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pawmart/storefront/internal/domain/remote"
)

// Client talks to the remote backend over HTTP with JSON bodies.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the given base URL. Outbound requests are
// traced via otelhttp and bounded by the given timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Ping probes the backend's health endpoint; used as a readiness check.
func (c *Client) Ping(ctx context.Context) error {
	_, _, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	return err
}

// do sends a request and returns the response body and status for 2xx
// responses. Network errors and timeouts map to remote.ErrUnavailable; 5xx
// responses as well, since the backend did not produce a decision. 4xx
// responses map to remote.RejectedError carrying the server's message, with
// the status returned so callers can special-case conflicts.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(remote.ErrUnavailable, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, errors.Wrap(remote.ErrUnavailable, "read response")
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, resp.StatusCode, nil
	case resp.StatusCode >= 500:
		return nil, resp.StatusCode, errors.Wrapf(remote.ErrUnavailable, "backend returned %d", resp.StatusCode)
	default:
		return data, resp.StatusCode, remote.Reject(decodeMessage(data))
	}
}

// decodeMessage extracts the "message" field from an error body, tolerating
// any other shape.
func decodeMessage(data []byte) string {
	msg := ""
	d := jx.DecodeBytes(data)
	_ = d.Obj(func(d *jx.Decoder, key string) error {
		if key != "message" {
			return d.Skip()
		}
		s, err := d.Str()
		if err != nil {
			return err
		}
		msg = s
		return nil
	})
	return msg
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	// Num keeps string numbers quoted.
	return decimal.NewFromString(strings.Trim(n.String(), `"`))
}

func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.String()))
}
