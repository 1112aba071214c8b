package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mosaicops/cmsgate/pkg/audit"
	"github.com/mosaicops/cmsgate/pkg/httputil"
	"github.com/mosaicops/cmsgate/pkg/observability"
	"github.com/mosaicops/cmsgate/pkg/trail"
	"github.com/mosaicops/cmsgate/pkg/upstream"
)

// heartbeatInterval is the SSE keep-alive cadence.
const heartbeatInterval = 15 * time.Second

// handleRunAudit runs one audit and returns the report. The run executes
// to completion even if the caller disconnects; the result is simply
// discarded when nobody is left to read it.
func (s *Server) handleRunAudit(w http.ResponseWriter, r *http.Request) {
	var opts audit.Options
	if r.Body != nil && r.ContentLength != 0 {
		if !httputil.ParseJSONOrError(w, r, &opts) {
			return
		}
	}

	// Detached from the request context so a disconnect cannot abort a
	// smoke test between create and delete; context values (request ID)
	// still flow through.
	report, err := s.engine.Run(context.WithoutCancel(r.Context()), opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, report)
}

// handleSummary returns the safe-mode snapshot of the configured
// collection set.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.engine.Summary(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]any{"collections": summaries})
}

// handleListCollections resolves collections for a site, or returns the
// static configured set when no site is named.
func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	siteID := r.URL.Query().Get("siteId")
	if siteID == "" {
		siteID = s.cfg.Audit.DefaultSiteID
	}

	if siteID == "" {
		if len(s.cfg.Audit.Collections) == 0 {
			s.respondError(w, r, &upstream.ValidationError{Message: "siteId is required when no collections are configured"})
			return
		}
		collections := make([]upstream.Collection, 0, len(s.cfg.Audit.Collections))
		for _, col := range s.cfg.Audit.Collections {
			collections = append(collections, upstream.Collection{ID: col.ID, Name: col.Name, Slug: col.Slug})
		}
		httputil.WriteSuccess(w, map[string]any{"collections": collections})
		return
	}

	collections, err := s.resolver.ResolveForSite(r.Context(), siteID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]any{"collections": collections})
}

// handleListItems lists a collection's items, one page or all of them.
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	collectionID, ok := httputil.ParsePathStringOrError(w, r, "collectionID")
	if !ok {
		return
	}

	if httputil.ParseQueryBool(r, "all") {
		items, err := s.lister.ListAll(r.Context(), collectionID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		httputil.WriteSuccess(w, map[string]any{"items": items, "count": len(items)})
		return
	}

	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", s.cfg.Upstream.PageSize)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	items, err := s.lister.ListPage(r.Context(), collectionID, offset, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]any{"items": items, "count": len(items), "offset": offset})
}

// writeRequest is the body accepted by the create and update endpoints.
// Either container key is accepted; a body with neither is treated as a
// bare field-data map.
type writeRequest map[string]any

func (req writeRequest) fields() map[string]any {
	if fd, ok := req[upstream.ContainerPrimary].(map[string]any); ok {
		return fd
	}
	if fd, ok := req[upstream.ContainerAlternate].(map[string]any); ok {
		return fd
	}
	return req
}

// handleCreateItem creates one item through the shape-negotiating writer.
func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	s.handleWrite(w, r, http.MethodPost, "")
}

// handleUpdateItem updates one item through the shape-negotiating writer.
// The caller's method (PATCH or PUT) travels to the upstream unchanged.
func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := httputil.ParsePathStringOrError(w, r, "itemID")
	if !ok {
		return
	}
	s.handleWrite(w, r, r.Method, itemID)
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request, method, itemID string) {
	collectionID, ok := httputil.ParsePathStringOrError(w, r, "collectionID")
	if !ok {
		return
	}
	var body writeRequest
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}

	result, err := s.writer.WriteItem(r.Context(), collectionID, method, itemID, body.fields())

	action := trail.ActionItemCreate
	if itemID != "" {
		action = trail.ActionItemUpdate
	}
	s.recordTrail(r, trail.Event{
		Action:         action,
		CollectionID:   collectionID,
		ItemID:         itemID,
		Generation:     string(result.Generation),
		AlternateShape: result.UsedAlternateShape,
		Success:        err == nil,
	}, err)

	if err != nil {
		s.respondError(w, r, err)
		return
	}

	status := http.StatusOK
	if itemID == "" {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, map[string]any{
		"item":               result.Body,
		"generation":         result.Generation,
		"usedAlternateShape": result.UsedAlternateShape,
	})
}

// handleDeleteItem removes one item.
func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	collectionID, ok := httputil.ParsePathStringOrError(w, r, "collectionID")
	if !ok {
		return
	}
	itemID, ok := httputil.ParsePathStringOrError(w, r, "itemID")
	if !ok {
		return
	}

	err := s.writer.DeleteItem(r.Context(), collectionID, itemID)
	s.recordTrail(r, trail.Event{
		Action:       trail.ActionItemDelete,
		CollectionID: collectionID,
		ItemID:       itemID,
		Success:      err == nil,
	}, err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// publishRequest is the body accepted by the publish endpoint.
type publishRequest struct {
	ItemIDs []string `json:"itemIds"`
}

// handlePublish publishes the named items of a collection.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	collectionID, ok := httputil.ParsePathStringOrError(w, r, "collectionID")
	if !ok {
		return
	}
	var body publishRequest
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}

	result, err := s.publisher.Publish(r.Context(), collectionID, body.ItemIDs)
	s.recordTrail(r, trail.Event{
		Action:       trail.ActionItemPublish,
		CollectionID: collectionID,
		Success:      err == nil,
	}, err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]any{
		"result":            result.Body,
		"usedLegacyPayload": result.UsedLegacyPayload,
	})
}

// handleHeartbeat streams SSE pings until the caller disconnects.
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: ping\ndata: %d\n\n", time.Now().Unix())
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case t := <-ticker.C:
			fmt.Fprintf(w, "event: ping\ndata: %d\n\n", t.Unix())
			flusher.Flush()
		}
	}
}

// handlePassthrough forwards an arbitrary call to the upstream through
// the version-negotiating dispatcher.
func (s *Server) handlePassthrough(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/upstream")
	if path == "" {
		path = "/"
	}

	var body any
	if r.Body != nil && r.ContentLength != 0 {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			httputil.WriteBadRequest(w, "reading request body: "+err.Error())
			return
		}
		if len(raw) > 0 {
			var parsed any
			if err := json.Unmarshal(raw, &parsed); err != nil {
				httputil.WriteBadRequest(w, "invalid JSON body: "+err.Error())
				return
			}
			body = parsed
		}
	}

	result, err := s.forwarder.Dispatch(r.Context(), r.Method, path, r.URL.Query(), body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("X-Upstream-Generation", string(result.Generation))
	httputil.WriteSuccess(w, result.Body)
}

// respondError converts core errors into the uniform boundary envelope.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.FromContext(r.Context())

	var ce *upstream.ConfigurationError
	if errors.As(err, &ce) {
		logger.WithError(err).Error("request failed on server configuration")
		httputil.WriteDetailedError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	var ve *upstream.ValidationError
	if errors.As(err, &ve) {
		httputil.WriteDetailedError(w, http.StatusUnprocessableEntity, ve.Message, nil)
		return
	}

	var ue *upstream.UpstreamError
	if errors.As(err, &ue) {
		status := ue.Status
		if status < 400 {
			status = http.StatusBadGateway
		}
		httputil.WriteDetailedError(w, status, ue.Message, ue.Details)
		return
	}

	logger.WithError(err).Error("request failed")
	httputil.WriteDetailedError(w, http.StatusInternalServerError, err.Error(), nil)
}

// recordTrail appends one mutating-operation event, folding in the
// request ID and any error message.
func (s *Server) recordTrail(r *http.Request, event trail.Event, err error) {
	event.RequestID = observability.GetRequestID(r.Context())
	if err != nil {
		event.Message = err.Error()
	}
	if recordErr := s.trail.Record(r.Context(), event); recordErr != nil {
		s.logger.WithError(recordErr).Warn("failed to record trail event")
	}
}
