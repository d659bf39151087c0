package httpadapter

//go:generate go run github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen -config ../../../api/oapi-codegen.yaml ../../../api/openapi.yaml

import (
	"context"
	"expvar"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"contentaudit/internal/config"
	"contentaudit/internal/ports"
	"contentaudit/internal/workers/reconcilerunner"
)

const (
	headerAccount = "X-Account-ID"
	headerTier    = "X-Plan-Tier"

	defaultWaitTimeout = 30 * time.Second
	maxWaitTimeout     = 120 * time.Second
	maxBodyBytes       = 8 << 20
)

// Deps are the services the HTTP surface fronts.
type Deps struct {
	Audits      ports.AuditRepository
	Jobs        ports.JobRepository
	Processor   reconcilerunner.Processor
	Lifecycle   ports.Lifecycle
	Scores      ports.Scores
	Quotas      ports.Quotas
	Tiers       config.Tiers
	DefaultTier string
	Log         *slog.Logger
}

type Server struct {
	audits      ports.AuditRepository
	jobs        ports.JobRepository
	processor   reconcilerunner.Processor
	lifecycle   ports.Lifecycle
	scores      ports.Scores
	quotas      ports.Quotas
	tiers       config.Tiers
	defaultTier string
	log         *slog.Logger
}

func New(d Deps) *Server {
	return &Server{
		audits:      d.Audits,
		jobs:        d.Jobs,
		processor:   d.Processor,
		lifecycle:   d.Lifecycle,
		scores:      d.Scores,
		quotas:      d.Quotas,
		tiers:       d.Tiers,
		defaultTier: d.DefaultTier,
		log:         d.Log,
	}
}

// Routes returns a chi.Router with every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/debug/vars", expvar.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireAccount)
		r.Use(limitBody)

		r.Post("/audits/start", s.handleStartAudit)
		r.Post("/audits", s.handleSubmitAudit)
		r.Get("/audits/{id}", s.handleGetAudit)
		r.Get("/audits/{id}/score", s.handleAuditScore)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Get("/domains/{domain}/score", s.handleDomainScore)

		r.Patch("/issues/status", s.handleBulkStatus)
		r.Patch("/issues/{id}/status", s.handleIssueStatus)
		r.Patch("/domains/{domain}/signatures/{signature}/status", s.handleSignatureStatus)

		r.Get("/usage", s.handleUsage)
		r.Get("/usage/history", s.handleUsageHistory)
	})
	return r
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"dur", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type ctxKey int

const accountKey ctxKey = iota

// requireAccount reads the account id set by the upstream auth layer.
func (s *Server) requireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acct := r.Header.Get(headerAccount)
		if acct == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing " + headerAccount})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountKey, acct)))
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func accountID(r *http.Request) string {
	acct, _ := r.Context().Value(accountKey).(string)
	return acct
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
