package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mosaicops/cmsgate/pkg/observability"
)

// Lister aggregates a collection's items across pages.
type Lister struct {
	dispatcher *Dispatcher
	metrics    *observability.Metrics
	pageSize   int
	maxPages   int
}

// NewLister creates a pagination aggregator. pageSize is the limit sent
// per request; maxPages bounds the loop against an upstream that never
// returns a short page.
func NewLister(dispatcher *Dispatcher, metrics *observability.Metrics, pageSize, maxPages int) *Lister {
	return &Lister{dispatcher: dispatcher, metrics: metrics, pageSize: pageSize, maxPages: maxPages}
}

// ListAll collects every item of a collection. Paging starts at offset 0
// and stops at the first page shorter than the page size, an empty page
// included. Exceeding maxPages fails loudly rather than looping.
func (l *Lister) ListAll(ctx context.Context, collectionID string) ([]Item, error) {
	if collectionID == "" {
		return nil, &ValidationError{Message: "collection id is required"}
	}

	var items []Item
	offset := 0
	for page := 0; ; page++ {
		if page >= l.maxPages {
			return nil, fmt.Errorf("collection %s exceeded %d pages; refusing to continue", collectionID, l.maxPages)
		}
		batch, err := l.ListPage(ctx, collectionID, offset, l.pageSize)
		if err != nil {
			return nil, err
		}
		items = append(items, batch...)
		if len(batch) < l.pageSize {
			return items, nil
		}
		offset += l.pageSize
	}
}

// ListPage fetches one page of items.
func (l *Lister) ListPage(ctx context.Context, collectionID string, offset, limit int) ([]Item, error) {
	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))

	res, err := l.dispatcher.Dispatch(ctx, http.MethodGet, fmt.Sprintf("/collections/%s/items", collectionID), query, nil)
	if err != nil {
		return nil, err
	}
	if l.metrics != nil {
		l.metrics.PagesFetchedTotal.Inc()
	}
	return decodeItemsPage(res.Body)
}
