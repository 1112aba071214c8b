package upstream

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mosaicops/cmsgate/pkg/observability"
)

// WriteResult is the outcome of a negotiated write. UsedAlternateShape
// reports whether the alternate field container was needed, so callers
// can annotate responses for diagnosis.
type WriteResult struct {
	Body               any        `json:"body"`
	Generation         Generation `json:"generation"`
	UsedAlternateShape bool       `json:"usedAlternateShape"`
}

// Writer wraps the Dispatcher for create and update calls. A write first
// goes out with the field data under the primary container key; a
// recognized shape rejection is retried exactly once under the alternate
// key with the same values.
type Writer struct {
	dispatcher *Dispatcher
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewWriter creates a payload-shape-negotiating writer.
func NewWriter(dispatcher *Dispatcher, logger *observability.Logger, metrics *observability.Metrics) *Writer {
	return &Writer{dispatcher: dispatcher, logger: logger, metrics: metrics}
}

// WriteItem creates (empty itemID) or updates (non-empty itemID) one item.
// The field data is normalized first so every write carries both lifecycle
// flags explicitly.
func (w *Writer) WriteItem(ctx context.Context, collectionID, method, itemID string, fields map[string]any) (WriteResult, error) {
	if collectionID == "" {
		return WriteResult{}, &ValidationError{Message: "collection id is required"}
	}
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch {
		return WriteResult{}, &ValidationError{Message: fmt.Sprintf("unsupported write method %q", method)}
	}

	normalized := NormalizeFlags(fields)
	path := fmt.Sprintf("/collections/%s/items", collectionID)
	if itemID != "" {
		path += "/" + itemID
	}

	res, err := w.dispatcher.Dispatch(ctx, method, path, nil, map[string]any{ContainerPrimary: normalized})
	if err == nil {
		return WriteResult{Body: res.Body, Generation: res.Generation}, nil
	}
	if Classify(err) != FailureShapeMismatch {
		return WriteResult{}, err
	}

	w.metrics.ObserveFallback("shape")
	w.logger.WithFields(map[string]interface{}{
		"collection": collectionID,
		"method":     method,
	}).Info("upstream rejected primary payload shape, retrying with alternate container")

	res, err = w.dispatcher.Dispatch(ctx, method, path, nil, map[string]any{ContainerAlternate: normalized})
	if err != nil {
		return WriteResult{UsedAlternateShape: true}, err
	}
	return WriteResult{Body: res.Body, Generation: res.Generation, UsedAlternateShape: true}, nil
}

// DeleteItem removes one item through the dispatcher.
func (w *Writer) DeleteItem(ctx context.Context, collectionID, itemID string) error {
	return w.dispatcher.DeleteItem(ctx, collectionID, itemID)
}

// NormalizeFlags copies the field-data map and guarantees explicit
// _draft/_archived entries. Precedence: an explicit normalized flag wins;
// otherwise an alternate-named top-level boolean on the input is adopted;
// otherwise the flag defaults to false. The alternate-named keys never
// travel to the upstream.
func NormalizeFlags(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		if k == AltFlagDraft || k == AltFlagArchived {
			continue
		}
		out[k] = v
	}
	for _, flag := range []struct{ norm, alt string }{
		{FlagDraft, AltFlagDraft},
		{FlagArchived, AltFlagArchived},
	} {
		if _, ok := out[flag.norm]; ok {
			continue
		}
		if v, ok := fields[flag.alt].(bool); ok {
			out[flag.norm] = v
			continue
		}
		out[flag.norm] = false
	}
	return out
}
