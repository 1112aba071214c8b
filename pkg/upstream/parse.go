package upstream

import (
	"fmt"
)

// listVariant tags which of the two list response shapes the upstream
// used, so internal code always works against one normalized slice.
type listVariant int

const (
	variantArray listVariant = iota
	variantWrapped
)

// parseList normalizes a list response that is either a bare JSON array
// or an object wrapping the array under wrapperKey.
func parseList(body any, wrapperKey string) ([]any, listVariant, error) {
	switch v := body.(type) {
	case nil:
		return nil, variantArray, nil
	case []any:
		return v, variantArray, nil
	case map[string]any:
		inner, ok := v[wrapperKey]
		if !ok {
			return nil, variantWrapped, fmt.Errorf("upstream object response has no %q field", wrapperKey)
		}
		arr, ok := inner.([]any)
		if !ok {
			return nil, variantWrapped, fmt.Errorf("upstream %q field is not an array", wrapperKey)
		}
		return arr, variantWrapped, nil
	default:
		return nil, variantArray, fmt.Errorf("unexpected upstream list response shape: %T", body)
	}
}

// decodeItemsPage decodes one page of items from either list shape.
func decodeItemsPage(body any) ([]Item, error) {
	raw, _, err := parseList(body, "items")
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(raw))
	for i, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d is not an object", i)
		}
		items = append(items, decodeItem(m))
	}
	return items, nil
}

// decodeItem normalizes one raw item. The primary generation nests the
// content values under "fieldData" with top-level isDraft/isArchived; the
// legacy generation either nests under "fields" or inlines everything at
// the top level with _draft/_archived among the fields.
func decodeItem(raw map[string]any) Item {
	item := Item{ID: firstString(raw, "_id", "id", "itemId")}

	if fd, ok := raw[ContainerPrimary].(map[string]any); ok {
		item.FieldData = fd
	} else if fd, ok := raw[ContainerAlternate].(map[string]any); ok {
		item.FieldData = fd
	} else {
		// Flat legacy shape: everything except the identifier keys is
		// field data, lifecycle flags included.
		fields := make(map[string]any, len(raw))
		for k, v := range raw {
			switch k {
			case "_id", "id", "itemId", AltFlagDraft, AltFlagArchived:
			default:
				fields[k] = v
			}
		}
		item.FieldData = fields
	}

	if v, ok := raw[AltFlagDraft].(bool); ok {
		item.Draft = &v
	}
	if v, ok := raw[AltFlagArchived].(bool); ok {
		item.Archived = &v
	}
	return item
}

// decodeCollections decodes a discovery response from either list shape.
func decodeCollections(body any) ([]Collection, error) {
	raw, _, err := parseList(body, "collections")
	if err != nil {
		return nil, err
	}
	collections := make([]Collection, 0, len(raw))
	for i, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("collection %d is not an object", i)
		}
		collections = append(collections, Collection{
			ID:   firstString(m, "_id", "id"),
			Name: firstString(m, "displayName", "name"),
			Slug: firstString(m, "slug"),
		})
	}
	return collections, nil
}

// firstString returns the first non-empty string value among the given
// keys.
func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
