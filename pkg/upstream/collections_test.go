package upstream

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(caller Caller) *Resolver {
	return NewResolver(NewDispatcher(caller, testLogger(), nil), testLogger(), nil)
}

func TestResolverPrimaryDiscoveryPath(t *testing.T) {
	caller := &scriptedCaller{script: func(req Request) (any, error) {
		return map[string]any{"collections": []any{
			map[string]any{"id": "c1", "displayName": "Posts", "slug": "posts"},
		}}, nil
	}}
	r := newTestResolver(caller)

	cols, err := r.ResolveForSite(context.Background(), "site1")

	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, Collection{ID: "c1", Name: "Posts", Slug: "posts"}, cols[0])
	require.Len(t, caller.calls, 1)
	assert.Equal(t, "/sites/site1/collections", caller.calls[0].Path)
}

func TestResolverFallsBackOnBadRequest(t *testing.T) {
	caller := &scriptedCaller{script: func(req Request) (any, error) {
		if strings.HasPrefix(req.Path, "/sites/") {
			return nil, &UpstreamError{Status: http.StatusBadRequest, Message: "route not supported"}
		}
		return []any{
			map[string]any{"_id": "c2", "name": "Authors", "slug": "authors"},
		}, nil
	}}
	r := newTestResolver(caller)

	cols, err := r.ResolveForSite(context.Background(), "site1")

	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "c2", cols[0].ID)
	assert.Equal(t, "Authors", cols[0].Name)
	require.Len(t, caller.calls, 2)
	assert.Equal(t, "/collections", caller.calls[1].Path)
	assert.Equal(t, "site1", caller.calls[1].Query.Get("siteId"))
}

func TestResolverPropagatesNonBadRequestFailures(t *testing.T) {
	tests := []struct {
		name string
		err  *UpstreamError
	}{
		{"unauthorized", &UpstreamError{Status: 401, Message: "bad token"}},
		{"not found", &UpstreamError{Status: 404, Message: "no such site"}},
		{"server error", &UpstreamError{Status: 500, Message: "boom"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &scriptedCaller{script: func(req Request) (any, error) {
				return nil, tt.err
			}}
			r := newTestResolver(caller)

			_, err := r.ResolveForSite(context.Background(), "site1")

			assert.ErrorIs(t, err, tt.err)
			assert.Len(t, caller.calls, 1)
		})
	}
}

func TestResolverFallbackFailureIsFinal(t *testing.T) {
	failure := &UpstreamError{Status: http.StatusBadRequest, Message: "siteId filter not supported"}
	caller := &scriptedCaller{script: func(req Request) (any, error) {
		return nil, failure
	}}
	r := newTestResolver(caller)

	_, err := r.ResolveForSite(context.Background(), "site1")

	assert.ErrorIs(t, err, failure)
	assert.Len(t, caller.calls, 2)
}

func TestResolverRequiresSiteID(t *testing.T) {
	caller := &scriptedCaller{script: func(req Request) (any, error) { return nil, nil }}
	r := newTestResolver(caller)

	var ve *ValidationError
	_, err := r.ResolveForSite(context.Background(), "")
	require.ErrorAs(t, err, &ve)
	assert.Empty(t, caller.calls)
}
