package upstream

// Generation identifies an upstream API generation. The value doubles as
// the Accept-Version header sent on the wire.
type Generation string

const (
	// GenerationPrimary is the current API generation, tried first.
	GenerationPrimary Generation = "2.0.0"
	// GenerationLegacy is the old API generation used as the fallback.
	GenerationLegacy Generation = "1.0.0"
)

// Field-container keys for write payloads. The primary generation expects
// the item's values under "fieldData"; the legacy generation under "fields".
const (
	ContainerPrimary   = "fieldData"
	ContainerAlternate = "fields"
)

// Normalized lifecycle-flag keys inside a field-data map, and the
// alternate top-level names some generations use instead.
const (
	FlagDraft       = "_draft"
	FlagArchived    = "_archived"
	AltFlagDraft    = "isDraft"
	AltFlagArchived = "isArchived"
)

// Collection is one content collection as discovered from the upstream.
type Collection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Item is one collection item in normalized form. FieldData holds the
// item's named content values regardless of which container key the
// upstream used. Draft and Archived are the top-level flags when the
// generation exposed them there; nil means the flag was absent at the top
// level and may still live inside FieldData.
type Item struct {
	ID        string         `json:"id"`
	FieldData map[string]any `json:"fieldData"`
	Draft     *bool          `json:"isDraft,omitempty"`
	Archived  *bool          `json:"isArchived,omitempty"`
}

// EffectiveDraft resolves the item's draft state: top-level flag wins,
// then the nested field, then false.
func (it Item) EffectiveDraft() bool {
	return it.effectiveFlag(it.Draft, FlagDraft)
}

// EffectiveArchived resolves the item's archived state with the same
// precedence as EffectiveDraft.
func (it Item) EffectiveArchived() bool {
	return it.effectiveFlag(it.Archived, FlagArchived)
}

func (it Item) effectiveFlag(top *bool, key string) bool {
	if top != nil {
		return *top
	}
	if v, ok := it.FieldData[key].(bool); ok {
		return v
	}
	return false
}

// Slug returns the item's slug field, empty when missing.
func (it Item) Slug() string {
	s, _ := it.FieldData["slug"].(string)
	return s
}

// Name returns the item's name field, empty when missing.
func (it Item) Name() string {
	s, _ := it.FieldData["name"].(string)
	return s
}
