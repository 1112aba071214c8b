package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicops/cmsgate/pkg/upstream"
)

func item(id, slug, name string, draft, archived bool) upstream.Item {
	return upstream.Item{
		ID: id,
		FieldData: map[string]any{
			"slug":                slug,
			"name":                name,
			upstream.FlagDraft:    draft,
			upstream.FlagArchived: archived,
		},
	}
}

func TestClassifyItems(t *testing.T) {
	items := []upstream.Item{
		item("aaa111", "alpha", "Alpha", false, false),
		item("bbb222", "", "Beta", true, false),
		item("ccc333", "gamma", "", false, true),
		item("ddd444", "alpha", "Alpha again", false, false),
	}

	c := classifyItems(items)

	assert.Equal(t, []string{"bbb222"}, c.missingSlug)
	assert.Equal(t, []string{"ccc333"}, c.missingName)
	assert.Equal(t, []string{"bbb222"}, c.drafts)
	assert.Equal(t, []string{"ccc333"}, c.archived)
}

func TestDuplicateGroupsKeepEncounterOrder(t *testing.T) {
	items := []upstream.Item{
		item("id-a1", "shared", "A", false, false),
		item("id-b1", "solo", "B", false, false),
		item("id-a2", "shared", "C", false, false),
		item("id-c1", "other", "D", false, false),
		item("id-a3", "shared", "E", false, false),
	}

	groups := classifyItems(items).duplicateGroups()

	require.Len(t, groups, 1)
	assert.Equal(t, "shared", groups[0].Slug)
	assert.Equal(t, []string{"id-a1", "id-a2", "id-a3"}, groups[0].ItemIDs)
}

func TestSuggestPatchesMissingSlug(t *testing.T) {
	items := []upstream.Item{item("abcdef123456", "", "Named", true, false)}
	c := classifyItems(items)

	suggestions := suggestPatches(items, c)

	require.Len(t, suggestions, 1)
	s := suggestions[0]
	assert.Equal(t, "abcdef123456", s.ItemID)
	assert.Equal(t, "item-123456", s.Changes["slug"])

	patch := s.Patch[upstream.ContainerPrimary].(map[string]any)
	assert.Equal(t, "item-123456", patch["slug"])
	// Lifecycle flags travel unchanged.
	assert.Equal(t, true, patch[upstream.FlagDraft])
	assert.Equal(t, false, patch[upstream.FlagArchived])
}

func TestSuggestPatchesDuplicateFollowers(t *testing.T) {
	items := []upstream.Item{
		item("first0", "shared", "A", false, false),
		item("second", "shared", "B", false, false),
		item("third0", "shared", "C", false, false),
	}
	c := classifyItems(items)

	suggestions := suggestPatches(items, c)

	// The first holder keeps its slug; the followers are renamed.
	require.Len(t, suggestions, 2)
	assert.Equal(t, "second", suggestions[0].ItemID)
	assert.Equal(t, "shared-second", suggestions[0].Changes["slug"])
	assert.Equal(t, "third0", suggestions[1].ItemID)
	assert.Equal(t, "shared-third0", suggestions[1].Changes["slug"])
}

func TestSuggestPatchesMissingBoth(t *testing.T) {
	items := []upstream.Item{item("xyz987654321", "", "", false, true)}
	c := classifyItems(items)

	suggestions := suggestPatches(items, c)

	require.Len(t, suggestions, 1)
	changes := suggestions[0].Changes
	assert.Equal(t, "item-654321", changes["slug"])
	assert.Equal(t, "Untitled item 654321", changes["name"])

	patch := suggestions[0].Patch[upstream.ContainerPrimary].(map[string]any)
	assert.Equal(t, true, patch[upstream.FlagArchived])
}

func TestSuggestPatchesHealthyItemsProduceNothing(t *testing.T) {
	items := []upstream.Item{
		item("aaa111", "alpha", "Alpha", true, true),
		item("bbb222", "beta", "Beta", false, false),
	}
	c := classifyItems(items)
	assert.Empty(t, suggestPatches(items, c))
}

func TestIDSuffix(t *testing.T) {
	assert.Equal(t, "345678", idSuffix("12345678"))
	assert.Equal(t, "abc", idSuffix("abc"))
	assert.Equal(t, "", idSuffix(""))
}
