package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mosaicops/cmsgate/pkg/observability"
)

// Caller is the single-call surface the Dispatcher negotiates over. It is
// satisfied by *Client and by test doubles.
type Caller interface {
	Do(ctx context.Context, req Request) (any, error)
}

// Result carries a parsed response body plus the generation that served
// it, so callers can annotate write responses for diagnosis.
type Result struct {
	Body       any        `json:"body"`
	Generation Generation `json:"generation"`
}

// Dispatcher wraps a Caller with version negotiation: every call goes to
// the primary generation first, and a recognized version rejection is
// retried exactly once against the legacy generation. That legacy outcome,
// success or failure, is final.
type Dispatcher struct {
	caller  Caller
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewDispatcher creates a version-negotiating dispatcher.
func NewDispatcher(caller Caller, logger *observability.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{caller: caller, logger: logger, metrics: metrics}
}

// Dispatch performs one negotiated call.
func (d *Dispatcher) Dispatch(ctx context.Context, method, path string, query url.Values, body any) (Result, error) {
	out, err := d.caller.Do(ctx, Request{
		Method:  method,
		Path:    path,
		Version: GenerationPrimary,
		Query:   query,
		Body:    body,
	})
	if err == nil {
		return Result{Body: out, Generation: GenerationPrimary}, nil
	}
	if Classify(err) != FailureVersionMismatch {
		return Result{}, err
	}

	d.metrics.ObserveFallback("version")
	d.logger.WithFields(map[string]interface{}{
		"method": method,
		"path":   path,
	}).Info("upstream rejected primary generation, retrying with legacy")

	out, err = d.caller.Do(ctx, Request{
		Method:  method,
		Path:    path,
		Version: GenerationLegacy,
		Query:   query,
		Body:    body,
	})
	if err != nil {
		return Result{Generation: GenerationLegacy}, err
	}
	return Result{Body: out, Generation: GenerationLegacy}, nil
}

// DeleteItem removes one item. Deletes carry no payload, so only version
// negotiation applies.
func (d *Dispatcher) DeleteItem(ctx context.Context, collectionID, itemID string) error {
	if collectionID == "" || itemID == "" {
		return &ValidationError{Message: "collection id and item id are required"}
	}
	path := fmt.Sprintf("/collections/%s/items/%s", collectionID, itemID)
	_, err := d.Dispatch(ctx, http.MethodDelete, path, nil, nil)
	return err
}
