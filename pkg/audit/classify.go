package audit

import (
	"fmt"

	"github.com/mosaicops/cmsgate/pkg/upstream"
)

// suggestedSlugPrefix seeds slugs synthesized for items without one.
const suggestedSlugPrefix = "item-"

// classification is the single-scan result for one collection's items.
type classification struct {
	missingSlug []string
	missingName []string
	drafts      []string
	archived    []string
	slugGroups  map[string][]string
	slugOrder   []string
}

// classifyItems walks the items once, collecting defect lists and the
// slug grouping. Identifier order everywhere follows encounter order.
func classifyItems(items []upstream.Item) classification {
	c := classification{slugGroups: make(map[string][]string)}
	for _, item := range items {
		slug := item.Slug()
		if slug == "" {
			c.missingSlug = append(c.missingSlug, item.ID)
		} else {
			if _, seen := c.slugGroups[slug]; !seen {
				c.slugOrder = append(c.slugOrder, slug)
			}
			c.slugGroups[slug] = append(c.slugGroups[slug], item.ID)
		}
		if item.Name() == "" {
			c.missingName = append(c.missingName, item.ID)
		}
		if item.EffectiveDraft() {
			c.drafts = append(c.drafts, item.ID)
		}
		if item.EffectiveArchived() {
			c.archived = append(c.archived, item.ID)
		}
	}
	return c
}

// duplicateGroups extracts the slug groups shared by more than one item,
// in slug encounter order.
func (c classification) duplicateGroups() []DuplicateGroup {
	var groups []DuplicateGroup
	for _, slug := range c.slugOrder {
		ids := c.slugGroups[slug]
		if len(ids) > 1 {
			groups = append(groups, DuplicateGroup{Slug: slug, ItemIDs: ids})
		}
	}
	return groups
}

// suggestPatches is the second pass: it turns defects into ready-to-apply
// patch bodies. A synthesized slug is the fixed prefix plus the item's
// identifier suffix; a collision of that fresh suffix with an existing
// slug is treated as practically negligible and not re-checked. Items
// after the first in a duplicate group get the same suffix appended to
// disambiguate. Every patch carries the item's current lifecycle flags
// unchanged.
func suggestPatches(items []upstream.Item, c classification) []PatchSuggestion {
	duplicateFollowers := make(map[string]bool)
	for _, slug := range c.slugOrder {
		ids := c.slugGroups[slug]
		if len(ids) > 1 {
			for _, id := range ids[1:] {
				duplicateFollowers[id] = true
			}
		}
	}

	var suggestions []PatchSuggestion
	for _, item := range items {
		changes := make(map[string]any)
		suffix := idSuffix(item.ID)

		switch {
		case item.Slug() == "":
			changes["slug"] = suggestedSlugPrefix + suffix
		case duplicateFollowers[item.ID]:
			changes["slug"] = item.Slug() + "-" + suffix
		}
		if item.Name() == "" {
			changes["name"] = fmt.Sprintf("Untitled item %s", suffix)
		}
		if len(changes) == 0 {
			continue
		}

		patch := make(map[string]any, len(changes)+2)
		for k, v := range changes {
			patch[k] = v
		}
		patch[upstream.FlagDraft] = item.EffectiveDraft()
		patch[upstream.FlagArchived] = item.EffectiveArchived()

		suggestions = append(suggestions, PatchSuggestion{
			ItemID:  item.ID,
			Changes: changes,
			Patch:   map[string]any{upstream.ContainerPrimary: patch},
		})
	}
	return suggestions
}

// idSuffix returns the last 6 characters of an identifier, or the whole
// identifier when shorter.
func idSuffix(id string) string {
	if len(id) <= 6 {
		return id
	}
	return id[len(id)-6:]
}
