package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mosaicops/cmsgate/pkg/observability"
)

// Resolver discovers the collections belonging to a site. It tries the
// nested discovery route first and falls back to the query-parameter form
// when the upstream rejects the route with a 400. Auth and availability
// failures (any non-400 status) propagate without a fallback.
type Resolver struct {
	dispatcher *Dispatcher
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewResolver creates a collection discovery resolver.
func NewResolver(dispatcher *Dispatcher, logger *observability.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{dispatcher: dispatcher, logger: logger, metrics: metrics}
}

// ResolveForSite returns the site's collections from whichever discovery
// path succeeded.
func (r *Resolver) ResolveForSite(ctx context.Context, siteID string) ([]Collection, error) {
	if siteID == "" {
		return nil, &ValidationError{Message: "site id is required"}
	}

	res, err := r.dispatcher.Dispatch(ctx, http.MethodGet, fmt.Sprintf("/sites/%s/collections", siteID), nil, nil)
	if err == nil {
		return decodeCollections(res.Body)
	}

	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Status != http.StatusBadRequest {
		return nil, err
	}

	r.metrics.ObserveFallback("discovery")
	r.logger.WithField("site", siteID).Info("primary discovery path rejected, falling back to filtered listing")

	query := url.Values{}
	query.Set("siteId", siteID)
	res, err = r.dispatcher.Dispatch(ctx, http.MethodGet, "/collections", query, nil)
	if err != nil {
		return nil, err
	}
	return decodeCollections(res.Body)
}
