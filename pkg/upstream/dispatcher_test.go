package upstream

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedCaller records every request and answers from a script keyed
// by the requested generation.
type scriptedCaller struct {
	calls  []Request
	script func(req Request) (any, error)
}

func (c *scriptedCaller) Do(_ context.Context, req Request) (any, error) {
	c.calls = append(c.calls, req)
	return c.script(req)
}

func versionMismatchError() *UpstreamError {
	return &UpstreamError{
		Status:  http.StatusBadRequest,
		Name:    "UnsupportedVersion",
		Message: "this endpoint only supports versions 1.0.0",
	}
}

func TestDispatcherFallsBackOnVersionMismatch(t *testing.T) {
	caller := &scriptedCaller{script: func(req Request) (any, error) {
		if req.Version == GenerationPrimary {
			return nil, versionMismatchError()
		}
		return map[string]any{"items": []any{}}, nil
	}}
	d := NewDispatcher(caller, testLogger(), nil)

	res, err := d.Dispatch(context.Background(), http.MethodGet, "/collections/abc/items", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, GenerationLegacy, res.Generation)
	require.Len(t, caller.calls, 2)
	assert.Equal(t, GenerationPrimary, caller.calls[0].Version)
	assert.Equal(t, GenerationLegacy, caller.calls[1].Version)
}

func TestDispatcherLegacyOutcomeIsFinal(t *testing.T) {
	legacyErr := &UpstreamError{Status: http.StatusBadRequest, Name: "UnsupportedVersion", Message: "only supports versions 1.0.0"}
	caller := &scriptedCaller{script: func(req Request) (any, error) {
		return nil, legacyErr
	}}
	d := NewDispatcher(caller, testLogger(), nil)

	_, err := d.Dispatch(context.Background(), http.MethodGet, "/collections", nil, nil)

	assert.ErrorIs(t, err, legacyErr)
	// The fallback itself failing with a version signature must not
	// trigger another retry.
	assert.Len(t, caller.calls, 2)
}

func TestDispatcherDoesNotRetryOtherFailures(t *testing.T) {
	tests := []struct {
		name string
		err  *UpstreamError
	}{
		{"plain 400", &UpstreamError{Status: 400, Message: "slug already in use"}},
		{"unauthorized", &UpstreamError{Status: 401, Message: "bad token"}},
		{"server error", &UpstreamError{Status: 500, Message: "boom"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &scriptedCaller{script: func(req Request) (any, error) {
				return nil, tt.err
			}}
			d := NewDispatcher(caller, testLogger(), nil)

			_, err := d.Dispatch(context.Background(), http.MethodGet, "/collections", nil, nil)

			assert.ErrorIs(t, err, tt.err)
			assert.Len(t, caller.calls, 1)
		})
	}
}

func TestDispatcherPrimarySuccessNeedsNoRetry(t *testing.T) {
	caller := &scriptedCaller{script: func(req Request) (any, error) {
		return []any{}, nil
	}}
	d := NewDispatcher(caller, testLogger(), nil)

	res, err := d.Dispatch(context.Background(), http.MethodGet, "/collections", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, GenerationPrimary, res.Generation)
	assert.Len(t, caller.calls, 1)
}

func TestDeleteItemValidatesIdentifiers(t *testing.T) {
	caller := &scriptedCaller{script: func(req Request) (any, error) { return nil, nil }}
	d := NewDispatcher(caller, testLogger(), nil)

	var ve *ValidationError
	require.ErrorAs(t, d.DeleteItem(context.Background(), "", "item"), &ve)
	require.ErrorAs(t, d.DeleteItem(context.Background(), "col", ""), &ve)
	assert.Empty(t, caller.calls)
}
