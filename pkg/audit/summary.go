package audit

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mosaicops/cmsgate/pkg/upstream"
)

// Summary produces the safe-mode snapshot of the statically configured
// collection set. The per-collection lookups are read-only and mutually
// independent, so they are dispatched concurrently and awaited together;
// a failing lookup fills its entry's Error and never fails the summary.
func (e *Engine) Summary(ctx context.Context) ([]CollectionSummary, error) {
	if len(e.cfg.Collections) == 0 {
		return nil, &upstream.ValidationError{Message: "no collections configured for summary"}
	}

	results := make([]CollectionSummary, len(e.cfg.Collections))
	g, ctx := errgroup.WithContext(ctx)
	for i, col := range e.cfg.Collections {
		results[i] = CollectionSummary{CollectionID: col.ID, Name: col.Name}
		g.Go(func() error {
			items, err := e.lister.ListAll(ctx, col.ID)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].ItemCount = len(items)
			for _, item := range items {
				if item.EffectiveDraft() {
					results[i].DraftCount++
				}
				if item.EffectiveArchived() {
					results[i].ArchivedCount++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
