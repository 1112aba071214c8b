package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mosaicops/cmsgate/pkg/config"
	"github.com/mosaicops/cmsgate/pkg/observability"
)

// Request describes one upstream HTTP call.
type Request struct {
	Method  string
	Path    string
	Version Generation
	Query   url.Values
	Body    any
}

// Client issues single HTTP calls against the upstream CMS. It sets the
// bearer credential and the Accept-Version tag, and converts non-success
// responses into UpstreamError.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewClient creates an upstream client from the given configuration.
// Outbound calls are traced through the otelhttp transport.
func NewClient(cfg config.UpstreamConfig, logger *observability.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Do performs one HTTP request and returns the parsed JSON body. A
// Content-Type header is set only when a body is present; an empty body
// with the header would make some upstream generations reject the request
// as malformed JSON.
func (c *Client) Do(ctx context.Context, req Request) (any, error) {
	if c.token == "" {
		return nil, &ConfigurationError{Field: "upstream API token"}
	}

	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var bodyReader io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("building upstream request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Accept-Version", string(req.Version))
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request %s %s: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	c.metrics.ObserveUpstreamRequest(req.Method, string(req.Version), resp.StatusCode, time.Since(start))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading upstream response: %w", err)
	}

	var parsed any
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			// Some endpoints answer 204 or plain text; only fail on
			// unparseable success bodies.
			if resp.StatusCode < 300 {
				return nil, fmt.Errorf("decoding upstream response from %s: %w", req.Path, err)
			}
			parsed = string(raw)
		}
	}

	if resp.StatusCode >= 300 {
		upErr := newUpstreamError(resp.StatusCode, req.Method, req.Path, parsed)
		c.logger.WithFields(map[string]interface{}{
			"method":  req.Method,
			"path":    req.Path,
			"version": string(req.Version),
			"status":  resp.StatusCode,
		}).Debug("upstream call failed")
		return nil, upErr
	}

	return parsed, nil
}

// Ping checks upstream reachability for readiness probes. Any response
// the server produced, including an error status, counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/sites", Version: GenerationPrimary})
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return nil
	}
	return err
}
