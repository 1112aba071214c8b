package audit

import (
	"time"

	"github.com/mosaicops/cmsgate/pkg/upstream"
)

// Options control one audit run.
type Options struct {
	// ScanSiteWide discovers collections from the upstream instead of
	// using the static configured set.
	ScanSiteWide bool `json:"scanSiteWide"`
	// SiteID overrides the configured default site for discovery.
	SiteID string `json:"siteId,omitempty"`
	// RunSmokeTest appends the write-path rehearsal to the run.
	RunSmokeTest bool `json:"runSmokeTest"`
	// RunPublishStep includes the optional publish stage in the smoke
	// test.
	RunPublishStep bool `json:"runPublishStep"`
}

// DuplicateGroup is one set of items sharing a slug, identifiers in
// original encounter order.
type DuplicateGroup struct {
	Slug    string   `json:"slug"`
	ItemIDs []string `json:"itemIds"`
}

// PatchSuggestion is a proposed corrective write. Patch is the
// ready-to-send body; it preserves the item's current lifecycle flags.
// Suggestions are generated, never applied.
type PatchSuggestion struct {
	ItemID  string         `json:"itemId"`
	Changes map[string]any `json:"changes"`
	Patch   map[string]any `json:"patch"`
}

// CollectionAudit is the per-collection report entry. A fetch failure
// populates Error and leaves the counts zero; the run continues.
type CollectionAudit struct {
	CollectionID   string            `json:"collectionId"`
	Name           string            `json:"name,omitempty"`
	Slug           string            `json:"slug,omitempty"`
	ItemCount      int               `json:"itemCount"`
	MissingSlug    []string          `json:"missingSlug,omitempty"`
	MissingName    []string          `json:"missingName,omitempty"`
	DraftCount     int               `json:"draftCount"`
	ArchivedCount  int               `json:"archivedCount"`
	DuplicateSlugs []DuplicateGroup  `json:"duplicateSlugs,omitempty"`
	Suggestions    []PatchSuggestion `json:"suggestions,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// Totals accumulate over the collections that fetched successfully.
type Totals struct {
	Collections int `json:"collections"`
	Failed      int `json:"failed"`
	Items       int `json:"items"`
	MissingSlug int `json:"missingSlug"`
	MissingName int `json:"missingName"`
	Drafts      int `json:"drafts"`
	Archived    int `json:"archived"`
	Duplicates  int `json:"duplicates"`
}

// Report is the result of one audit run.
type Report struct {
	SiteID      string            `json:"siteId,omitempty"`
	StartedAt   time.Time         `json:"startedAt"`
	FinishedAt  time.Time         `json:"finishedAt"`
	Collections []CollectionAudit `json:"collections"`
	Totals      Totals            `json:"totals"`
	SmokeTest   *SmokeTestRun     `json:"smokeTest,omitempty"`
}

// StageResult records one smoke-test stage outcome.
type StageResult struct {
	OK      bool   `json:"ok"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// SmokeTestRun records the scripted create/update/publish/delete
// rehearsal. Published is absent when publishing was not requested and
// never affects OK. OrphanedItemID names a created item the run failed to
// delete, so an operator can clean up manually.
type SmokeTestRun struct {
	CollectionID       string              `json:"collectionId"`
	Slug               string              `json:"slug"`
	Name               string              `json:"name"`
	Created            *StageResult        `json:"created,omitempty"`
	Updated            *StageResult        `json:"updated,omitempty"`
	Published          *StageResult        `json:"published,omitempty"`
	Deleted            *StageResult        `json:"deleted,omitempty"`
	OK                 bool                `json:"ok"`
	Generation         upstream.Generation `json:"generation,omitempty"`
	UsedAlternateShape bool                `json:"usedAlternateShape,omitempty"`
	OrphanedItemID     string              `json:"orphanedItemId,omitempty"`
	CreationResponse   any                 `json:"creationResponse,omitempty"`
}

// CollectionSummary is the read-only safe-mode snapshot of one configured
// collection.
type CollectionSummary struct {
	CollectionID  string `json:"collectionId"`
	Name          string `json:"name,omitempty"`
	ItemCount     int    `json:"itemCount"`
	DraftCount    int    `json:"draftCount"`
	ArchivedCount int    `json:"archivedCount"`
	Error         string `json:"error,omitempty"`
}
