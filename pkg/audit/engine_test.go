package audit

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicops/cmsgate/pkg/config"
	"github.com/mosaicops/cmsgate/pkg/observability"
	"github.com/mosaicops/cmsgate/pkg/upstream"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

type fakeResolver struct {
	collections []upstream.Collection
	err         error
	gotSiteID   string
}

func (f *fakeResolver) ResolveForSite(_ context.Context, siteID string) ([]upstream.Collection, error) {
	f.gotSiteID = siteID
	return f.collections, f.err
}

type fakeLister struct {
	mu    sync.Mutex
	items map[string][]upstream.Item
	errs  map[string]error
	calls []string
}

func (f *fakeLister) ListAll(_ context.Context, collectionID string) ([]upstream.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, collectionID)
	if err := f.errs[collectionID]; err != nil {
		return nil, err
	}
	return f.items[collectionID], nil
}

type writeCall struct {
	collectionID string
	method       string
	itemID       string
	fields       map[string]any
}

type fakeWriter struct {
	writeResults []upstream.WriteResult
	writeErrs    []error
	deleteErr    error
	writes       []writeCall
	deletes      []string
}

func (f *fakeWriter) WriteItem(_ context.Context, collectionID, method, itemID string, fields map[string]any) (upstream.WriteResult, error) {
	call := len(f.writes)
	f.writes = append(f.writes, writeCall{collectionID, method, itemID, fields})
	var err error
	if call < len(f.writeErrs) {
		err = f.writeErrs[call]
	}
	var res upstream.WriteResult
	if call < len(f.writeResults) {
		res = f.writeResults[call]
	}
	return res, err
}

func (f *fakeWriter) DeleteItem(_ context.Context, _, itemID string) error {
	f.deletes = append(f.deletes, itemID)
	return f.deleteErr
}

type fakePublisher struct {
	err   error
	calls [][]string
}

func (f *fakePublisher) Publish(_ context.Context, _ string, itemIDs []string) (upstream.PublishResult, error) {
	f.calls = append(f.calls, itemIDs)
	return upstream.PublishResult{}, f.err
}

func newTestEngine(resolver *fakeResolver, lister *fakeLister, writer *fakeWriter, publisher *fakePublisher, cfg config.AuditConfig) *Engine {
	if resolver == nil {
		resolver = &fakeResolver{}
	}
	if lister == nil {
		lister = &fakeLister{}
	}
	if writer == nil {
		writer = &fakeWriter{}
	}
	if publisher == nil {
		publisher = &fakePublisher{}
	}
	return NewEngine(resolver, lister, writer, publisher, nil, testLogger(), nil, cfg)
}

func staticConfig(ids ...string) config.AuditConfig {
	cfg := config.AuditConfig{}
	for _, id := range ids {
		cfg.Collections = append(cfg.Collections, config.StaticCollection{ID: id, Name: "Collection " + id})
	}
	return cfg
}

func TestRunAuditsConfiguredCollections(t *testing.T) {
	lister := &fakeLister{items: map[string][]upstream.Item{
		"c1": {
			item("aaa111", "alpha", "Alpha", false, false),
			item("bbb222", "", "Beta", true, false),
		},
		"c2": {
			item("ccc333", "gamma", "", false, true),
		},
	}}
	e := newTestEngine(nil, lister, nil, nil, staticConfig("c1", "c2"))

	report, err := e.Run(context.Background(), Options{})

	require.NoError(t, err)
	require.Len(t, report.Collections, 2)
	assert.Equal(t, 2, report.Totals.Collections)
	assert.Equal(t, 3, report.Totals.Items)
	assert.Equal(t, 1, report.Totals.MissingSlug)
	assert.Equal(t, 1, report.Totals.MissingName)
	assert.Equal(t, 1, report.Totals.Drafts)
	assert.Equal(t, 1, report.Totals.Archived)
	assert.Zero(t, report.Totals.Failed)
	assert.Nil(t, report.SmokeTest)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestRunContinuesPastCollectionFailure(t *testing.T) {
	lister := &fakeLister{
		items: map[string][]upstream.Item{
			"good": {item("aaa111", "alpha", "Alpha", false, false)},
		},
		errs: map[string]error{
			"bad": &upstream.UpstreamError{Status: 500, Message: "boom"},
		},
	}
	e := newTestEngine(nil, lister, nil, nil, staticConfig("bad", "good"))

	report, err := e.Run(context.Background(), Options{})

	require.NoError(t, err)
	require.Len(t, report.Collections, 2)
	assert.NotEmpty(t, report.Collections[0].Error)
	assert.Empty(t, report.Collections[1].Error)
	// Totals come only from collections that fetched.
	assert.Equal(t, 1, report.Totals.Failed)
	assert.Equal(t, 1, report.Totals.Collections)
	assert.Equal(t, 1, report.Totals.Items)
}

func TestRunSiteWideUsesResolver(t *testing.T) {
	resolver := &fakeResolver{collections: []upstream.Collection{{ID: "r1", Name: "Resolved"}}}
	lister := &fakeLister{items: map[string][]upstream.Item{"r1": {}}}
	cfg := staticConfig("ignored")
	cfg.DefaultSiteID = "site-default"
	e := newTestEngine(resolver, lister, nil, nil, cfg)

	report, err := e.Run(context.Background(), Options{ScanSiteWide: true})

	require.NoError(t, err)
	assert.Equal(t, "site-default", resolver.gotSiteID)
	assert.Equal(t, "site-default", report.SiteID)
	require.Len(t, report.Collections, 1)
	assert.Equal(t, "r1", report.Collections[0].CollectionID)
}

func TestRunSiteWideSiteOverride(t *testing.T) {
	resolver := &fakeResolver{}
	cfg := config.AuditConfig{DefaultSiteID: "site-default"}
	e := newTestEngine(resolver, nil, nil, nil, cfg)

	_, err := e.Run(context.Background(), Options{ScanSiteWide: true, SiteID: "site-override"})

	require.NoError(t, err)
	assert.Equal(t, "site-override", resolver.gotSiteID)
}

func TestRunSiteWideWithoutSiteFails(t *testing.T) {
	e := newTestEngine(nil, nil, nil, nil, config.AuditConfig{})

	var ce *upstream.ConfigurationError
	_, err := e.Run(context.Background(), Options{ScanSiteWide: true})
	require.ErrorAs(t, err, &ce)
}

func TestRunWithoutCollectionsFails(t *testing.T) {
	e := newTestEngine(nil, nil, nil, nil, config.AuditConfig{})

	var ve *upstream.ValidationError
	_, err := e.Run(context.Background(), Options{})
	require.ErrorAs(t, err, &ve)
}
