// Package api exposes the gateway's HTTP surface: audit runs, collection
// discovery, item listing and writes, publishing, the safe-mode summary,
// a heartbeat stream, and generic upstream pass-through.
package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/mosaicops/cmsgate/pkg/audit"
	"github.com/mosaicops/cmsgate/pkg/config"
	"github.com/mosaicops/cmsgate/pkg/middleware"
	"github.com/mosaicops/cmsgate/pkg/observability"
	"github.com/mosaicops/cmsgate/pkg/trail"
	"github.com/mosaicops/cmsgate/pkg/upstream"
)

// AuditService runs audits and safe-mode summaries.
type AuditService interface {
	Run(ctx context.Context, opts audit.Options) (*audit.Report, error)
	Summary(ctx context.Context) ([]audit.CollectionSummary, error)
}

// ItemLister lists collection items, paged or in full.
type ItemLister interface {
	ListAll(ctx context.Context, collectionID string) ([]upstream.Item, error)
	ListPage(ctx context.Context, collectionID string, offset, limit int) ([]upstream.Item, error)
}

// Forwarder dispatches arbitrary negotiated upstream calls; used by the
// pass-through endpoint.
type Forwarder interface {
	Dispatch(ctx context.Context, method, path string, query url.Values, body any) (upstream.Result, error)
}

// Server wires the gateway's handlers and middleware.
type Server struct {
	engine    AuditService
	resolver  audit.CollectionResolver
	lister    ItemLister
	writer    audit.ItemWriter
	publisher audit.ItemPublisher
	forwarder Forwarder
	trail     trail.Logger
	logger    *observability.Logger
	metrics   *observability.Metrics
	cfg       config.Config
}

// NewServer creates the gateway HTTP server.
func NewServer(
	engine AuditService,
	resolver audit.CollectionResolver,
	lister ItemLister,
	writer audit.ItemWriter,
	publisher audit.ItemPublisher,
	forwarder Forwarder,
	trailLog trail.Logger,
	logger *observability.Logger,
	metrics *observability.Metrics,
	cfg config.Config,
) *Server {
	if trailLog == nil {
		trailLog = trail.NopLogger{}
	}
	return &Server{
		engine:    engine,
		resolver:  resolver,
		lister:    lister,
		writer:    writer,
		publisher: publisher,
		forwarder: forwarder,
		trail:     trailLog,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Router builds the gateway router with its middleware chain.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	logging := middleware.NewLoggingMiddleware(s.logger, s.metrics)
	auth := middleware.NewAuthMiddleware(s.cfg.Server.APIToken)
	limiter := middleware.NewRateLimiter(nil)

	router.Use(logging.Handler)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.Handler, limiter.Handler)

	api.HandleFunc("/audit/runs", s.handleRunAudit).Methods(http.MethodPost)
	api.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/collections", s.handleListCollections).Methods(http.MethodGet)
	api.HandleFunc("/collections/{collectionID}/items", s.handleListItems).Methods(http.MethodGet)
	api.HandleFunc("/collections/{collectionID}/items", s.handleCreateItem).Methods(http.MethodPost)
	api.HandleFunc("/collections/{collectionID}/items/{itemID}", s.handleUpdateItem).Methods(http.MethodPatch, http.MethodPut)
	api.HandleFunc("/collections/{collectionID}/items/{itemID}", s.handleDeleteItem).Methods(http.MethodDelete)
	api.HandleFunc("/collections/{collectionID}/publish", s.handlePublish).Methods(http.MethodPost)
	api.HandleFunc("/heartbeat", s.handleHeartbeat).Methods(http.MethodGet)
	api.PathPrefix("/upstream/").HandlerFunc(s.handlePassthrough)

	return router
}
