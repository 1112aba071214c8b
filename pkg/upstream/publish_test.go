package upstream

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPublisher(caller Caller) *Publisher {
	return NewPublisher(NewDispatcher(caller, testLogger(), nil), testLogger(), nil)
}

func TestPublishPrimaryPayload(t *testing.T) {
	caller := &scriptedCaller{script: func(req Request) (any, error) {
		return map[string]any{"publishedItemIds": []any{"i1", "i2"}}, nil
	}}
	p := newTestPublisher(caller)

	res, err := p.Publish(context.Background(), "col1", []string{"i1", "i2"})

	require.NoError(t, err)
	assert.False(t, res.UsedLegacyPayload)
	require.Len(t, caller.calls, 1)
	assert.Equal(t, "/collections/col1/items/publish", caller.calls[0].Path)

	body := caller.calls[0].Body.(map[string]any)
	assert.Equal(t, []string{"i1", "i2"}, body["itemIds"])
	assert.Equal(t, []string{"live"}, body["publishTargets"])
	assert.NotContains(t, body, "live")
}

func TestPublishFallsBackToLegacyPayload(t *testing.T) {
	caller := &scriptedCaller{script: func(req Request) (any, error) {
		body := req.Body.(map[string]any)
		if _, ok := body["publishTargets"]; ok {
			return nil, &UpstreamError{Status: http.StatusBadRequest, Message: "publishTargets is not a valid field"}
		}
		return map[string]any{"published": true}, nil
	}}
	p := newTestPublisher(caller)

	res, err := p.Publish(context.Background(), "col1", []string{"i1"})

	require.NoError(t, err)
	assert.True(t, res.UsedLegacyPayload)
	require.Len(t, caller.calls, 2)

	legacy := caller.calls[1].Body.(map[string]any)
	assert.Equal(t, true, legacy["live"])
	assert.Equal(t, []string{"i1"}, legacy["itemIds"])
	assert.NotContains(t, legacy, "publishTargets")
}

func TestPublishPropagatesNonBadRequestFailures(t *testing.T) {
	failure := &UpstreamError{Status: 500, Message: "boom"}
	caller := &scriptedCaller{script: func(req Request) (any, error) {
		return nil, failure
	}}
	p := newTestPublisher(caller)

	_, err := p.Publish(context.Background(), "col1", []string{"i1"})

	assert.ErrorIs(t, err, failure)
	assert.Len(t, caller.calls, 1)
}

func TestPublishLegacyFailureIsFinal(t *testing.T) {
	failure := &UpstreamError{Status: http.StatusBadRequest, Message: "cannot publish archived item"}
	caller := &scriptedCaller{script: func(req Request) (any, error) {
		return nil, failure
	}}
	p := newTestPublisher(caller)

	res, err := p.Publish(context.Background(), "col1", []string{"i1"})

	assert.ErrorIs(t, err, failure)
	assert.True(t, res.UsedLegacyPayload)
	assert.Len(t, caller.calls, 2)
}

func TestPublishValidatesInput(t *testing.T) {
	caller := &scriptedCaller{script: func(req Request) (any, error) { return nil, nil }}
	p := newTestPublisher(caller)

	var ve *ValidationError
	_, err := p.Publish(context.Background(), "", []string{"i1"})
	require.ErrorAs(t, err, &ve)

	_, err = p.Publish(context.Background(), "col1", nil)
	require.ErrorAs(t, err, &ve)
	assert.Empty(t, caller.calls)
}
