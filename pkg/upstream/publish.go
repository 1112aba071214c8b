package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mosaicops/cmsgate/pkg/observability"
)

// PublishResult is the outcome of a publish call. UsedLegacyPayload
// reports that the simpler "go live" body was needed.
type PublishResult struct {
	Body              any  `json:"body"`
	UsedLegacyPayload bool `json:"usedLegacyPayload"`
}

// Publisher publishes collection items. The primary payload names
// explicit publish targets; a 400-class rejection falls back once to the
// legacy boolean "live" payload.
type Publisher struct {
	dispatcher *Dispatcher
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewPublisher creates an item publisher.
func NewPublisher(dispatcher *Dispatcher, logger *observability.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{dispatcher: dispatcher, logger: logger, metrics: metrics}
}

// Publish publishes the given items of a collection.
func (p *Publisher) Publish(ctx context.Context, collectionID string, itemIDs []string) (PublishResult, error) {
	if collectionID == "" {
		return PublishResult{}, &ValidationError{Message: "collection id is required"}
	}
	if len(itemIDs) == 0 {
		return PublishResult{}, &ValidationError{Message: "at least one item id is required for publish"}
	}

	path := fmt.Sprintf("/collections/%s/items/publish", collectionID)
	res, err := p.dispatcher.Dispatch(ctx, http.MethodPost, path, nil, map[string]any{
		"itemIds":        itemIDs,
		"publishTargets": []string{"live"},
	})
	if err == nil {
		return PublishResult{Body: res.Body}, nil
	}

	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Status != http.StatusBadRequest {
		return PublishResult{}, err
	}

	p.metrics.ObserveFallback("publish")
	p.logger.WithField("collection", collectionID).Info("primary publish payload rejected, retrying with legacy payload")

	res, err = p.dispatcher.Dispatch(ctx, http.MethodPost, path, nil, map[string]any{
		"itemIds": itemIDs,
		"live":    true,
	})
	if err != nil {
		return PublishResult{UsedLegacyPayload: true}, err
	}
	return PublishResult{Body: res.Body, UsedLegacyPayload: true}, nil
}
