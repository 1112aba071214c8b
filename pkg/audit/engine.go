package audit

import (
	"context"
	"time"

	"github.com/mosaicops/cmsgate/pkg/config"
	"github.com/mosaicops/cmsgate/pkg/observability"
	"github.com/mosaicops/cmsgate/pkg/trail"
	"github.com/mosaicops/cmsgate/pkg/upstream"
)

// CollectionResolver discovers a site's collections.
type CollectionResolver interface {
	ResolveForSite(ctx context.Context, siteID string) ([]upstream.Collection, error)
}

// ItemLister fetches every item of a collection.
type ItemLister interface {
	ListAll(ctx context.Context, collectionID string) ([]upstream.Item, error)
}

// ItemWriter performs shape-negotiated writes and deletes.
type ItemWriter interface {
	WriteItem(ctx context.Context, collectionID, method, itemID string, fields map[string]any) (upstream.WriteResult, error)
	DeleteItem(ctx context.Context, collectionID, itemID string) error
}

// ItemPublisher publishes items with the legacy-payload fallback.
type ItemPublisher interface {
	Publish(ctx context.Context, collectionID string, itemIDs []string) (upstream.PublishResult, error)
}

// Engine orchestrates audit runs. All working state is local to one Run
// invocation; the engine itself holds only immutable collaborators.
type Engine struct {
	resolver  CollectionResolver
	lister    ItemLister
	writer    ItemWriter
	publisher ItemPublisher
	trail     trail.Logger
	logger    *observability.Logger
	metrics   *observability.Metrics
	cfg       config.AuditConfig
}

// NewEngine creates an audit engine.
func NewEngine(resolver CollectionResolver, lister ItemLister, writer ItemWriter, publisher ItemPublisher, trailLog trail.Logger, logger *observability.Logger, metrics *observability.Metrics, cfg config.AuditConfig) *Engine {
	if trailLog == nil {
		trailLog = trail.NopLogger{}
	}
	return &Engine{
		resolver:  resolver,
		lister:    lister,
		writer:    writer,
		publisher: publisher,
		trail:     trailLog,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Run executes one audit: gather collections, fetch and classify each
// collection's items in sequence, then optionally rehearse the write
// path. A single collection's fetch failure is recorded in its entry and
// does not abort the run.
func (e *Engine) Run(ctx context.Context, opts Options) (*Report, error) {
	started := time.Now().UTC()

	collections, siteID, err := e.gatherCollections(ctx, opts)
	if err != nil {
		if e.metrics != nil {
			e.metrics.AuditRunsTotal.WithLabelValues("failed").Inc()
		}
		return nil, err
	}

	report := &Report{
		SiteID:      siteID,
		StartedAt:   started,
		Collections: make([]CollectionAudit, 0, len(collections)),
	}

	for _, col := range collections {
		entry := e.auditCollection(ctx, col)
		report.Collections = append(report.Collections, entry)
		if entry.Error != "" {
			report.Totals.Failed++
			continue
		}
		report.Totals.Collections++
		report.Totals.Items += entry.ItemCount
		report.Totals.MissingSlug += len(entry.MissingSlug)
		report.Totals.MissingName += len(entry.MissingName)
		report.Totals.Drafts += entry.DraftCount
		report.Totals.Archived += entry.ArchivedCount
		report.Totals.Duplicates += len(entry.DuplicateSlugs)
	}

	if opts.RunSmokeTest {
		report.SmokeTest = e.runSmokeTest(ctx, collections, opts.RunPublishStep)
	}

	report.FinishedAt = time.Now().UTC()
	if e.metrics != nil {
		e.metrics.AuditRunsTotal.WithLabelValues("ok").Inc()
		e.metrics.AuditRunDuration.Observe(report.FinishedAt.Sub(started).Seconds())
	}
	e.logger.WithFields(map[string]interface{}{
		"collections": len(report.Collections),
		"items":       report.Totals.Items,
		"failed":      report.Totals.Failed,
	}).Info("audit run finished")

	return report, nil
}

// gatherCollections resolves the run's collection set: site-wide
// discovery when requested, otherwise the static configured set.
func (e *Engine) gatherCollections(ctx context.Context, opts Options) ([]upstream.Collection, string, error) {
	if opts.ScanSiteWide {
		siteID := opts.SiteID
		if siteID == "" {
			siteID = e.cfg.DefaultSiteID
		}
		if siteID == "" {
			return nil, "", &upstream.ConfigurationError{Field: "default site id"}
		}
		collections, err := e.resolver.ResolveForSite(ctx, siteID)
		return collections, siteID, err
	}

	if len(e.cfg.Collections) == 0 {
		return nil, "", &upstream.ValidationError{Message: "no collections configured; request a site-wide scan or configure a collections file"}
	}
	collections := make([]upstream.Collection, 0, len(e.cfg.Collections))
	for _, col := range e.cfg.Collections {
		collections = append(collections, upstream.Collection{ID: col.ID, Name: col.Name, Slug: col.Slug})
	}
	return collections, "", nil
}

// auditCollection fetches and classifies one collection.
func (e *Engine) auditCollection(ctx context.Context, col upstream.Collection) CollectionAudit {
	entry := CollectionAudit{CollectionID: col.ID, Name: col.Name, Slug: col.Slug}

	items, err := e.lister.ListAll(ctx, col.ID)
	if err != nil {
		e.logger.WithError(err).WithField("collection", col.ID).Warn("collection fetch failed, continuing audit")
		entry.Error = err.Error()
		return entry
	}

	c := classifyItems(items)
	entry.ItemCount = len(items)
	entry.MissingSlug = c.missingSlug
	entry.MissingName = c.missingName
	entry.DraftCount = len(c.drafts)
	entry.ArchivedCount = len(c.archived)
	entry.DuplicateSlugs = c.duplicateGroups()
	entry.Suggestions = suggestPatches(items, c)

	if e.metrics != nil {
		e.metrics.CollectionsAuditedTotal.Inc()
		e.metrics.AuditFindingsTotal.WithLabelValues("missing_slug").Add(float64(len(entry.MissingSlug)))
		e.metrics.AuditFindingsTotal.WithLabelValues("missing_name").Add(float64(len(entry.MissingName)))
		e.metrics.AuditFindingsTotal.WithLabelValues("duplicate_slug").Add(float64(len(entry.DuplicateSlugs)))
	}
	return entry
}
