package upstream

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shapeMismatchError() *UpstreamError {
	return &UpstreamError{
		Status:  http.StatusBadRequest,
		Name:    "ValidationError",
		Message: "'fields' is required",
	}
}

func newTestWriter(caller Caller) *Writer {
	return NewWriter(NewDispatcher(caller, testLogger(), nil), testLogger(), nil)
}

func TestWriterPrimaryShapeSucceeds(t *testing.T) {
	caller := &scriptedCaller{script: func(req Request) (any, error) {
		return map[string]any{"id": "item1"}, nil
	}}
	w := newTestWriter(caller)

	res, err := w.WriteItem(context.Background(), "col1", http.MethodPost, "", map[string]any{"name": "x"})

	require.NoError(t, err)
	assert.False(t, res.UsedAlternateShape)
	require.Len(t, caller.calls, 1)

	body, ok := caller.calls[0].Body.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, body, ContainerPrimary)
	assert.NotContains(t, body, ContainerAlternate)
}

func TestWriterRetriesWithAlternateShape(t *testing.T) {
	caller := &scriptedCaller{script: func(req Request) (any, error) {
		body := req.Body.(map[string]any)
		if _, primary := body[ContainerPrimary]; primary {
			return nil, shapeMismatchError()
		}
		return map[string]any{"_id": "item1"}, nil
	}}
	w := newTestWriter(caller)

	res, err := w.WriteItem(context.Background(), "col1", http.MethodPost, "", map[string]any{"name": "x"})

	require.NoError(t, err)
	assert.True(t, res.UsedAlternateShape)
	require.Len(t, caller.calls, 2)

	retry := caller.calls[1].Body.(map[string]any)
	assert.Contains(t, retry, ContainerAlternate)

	// Same values travel under both containers.
	first := caller.calls[0].Body.(map[string]any)[ContainerPrimary]
	second := retry[ContainerAlternate]
	assert.Equal(t, first, second)
}

func TestWriterDoesNotRetryOtherFailures(t *testing.T) {
	failure := &UpstreamError{Status: 400, Message: "slug already in use"}
	caller := &scriptedCaller{script: func(req Request) (any, error) {
		return nil, failure
	}}
	w := newTestWriter(caller)

	_, err := w.WriteItem(context.Background(), "col1", http.MethodPost, "", map[string]any{"name": "x"})

	assert.ErrorIs(t, err, failure)
	assert.Len(t, caller.calls, 1)
}

func TestWriterTargetsItemPathOnUpdate(t *testing.T) {
	caller := &scriptedCaller{script: func(req Request) (any, error) {
		return map[string]any{"id": "item1"}, nil
	}}
	w := newTestWriter(caller)

	_, err := w.WriteItem(context.Background(), "col1", http.MethodPatch, "item1", map[string]any{"name": "x"})

	require.NoError(t, err)
	assert.Equal(t, "/collections/col1/items/item1", caller.calls[0].Path)
}

func TestNormalizeFlags(t *testing.T) {
	tests := []struct {
		name         string
		fields       map[string]any
		wantDraft    any
		wantArchived any
	}{
		{
			"defaults to false",
			map[string]any{"name": "x"},
			false, false,
		},
		{
			"explicit normalized flags win",
			map[string]any{FlagDraft: true, FlagArchived: true, AltFlagDraft: false, AltFlagArchived: false},
			true, true,
		},
		{
			"alternate-named flags adopted",
			map[string]any{AltFlagDraft: true, AltFlagArchived: true},
			true, true,
		},
		{
			"mixed sources",
			map[string]any{FlagDraft: false, AltFlagArchived: true},
			false, true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NormalizeFlags(tt.fields)
			assert.Equal(t, tt.wantDraft, out[FlagDraft])
			assert.Equal(t, tt.wantArchived, out[FlagArchived])
			assert.NotContains(t, out, AltFlagDraft)
			assert.NotContains(t, out, AltFlagArchived)
		})
	}
}

func TestNormalizeFlagsPreservesValues(t *testing.T) {
	out := NormalizeFlags(map[string]any{"name": "x", "slug": "y"})
	assert.Equal(t, "x", out["name"])
	assert.Equal(t, "y", out["slug"])
}

func TestWriterRejectsUnsupportedMethod(t *testing.T) {
	caller := &scriptedCaller{script: func(req Request) (any, error) { return nil, nil }}
	w := newTestWriter(caller)

	var ve *ValidationError
	_, err := w.WriteItem(context.Background(), "col1", http.MethodGet, "", nil)
	require.ErrorAs(t, err, &ve)
	assert.Empty(t, caller.calls)
}
