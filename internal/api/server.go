package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/lite-site-auditor/internal/audit"
	"github.com/JakeFAU/lite-site-auditor/internal/config"
	iduuid "github.com/JakeFAU/lite-site-auditor/internal/id/uuid"
	"github.com/JakeFAU/lite-site-auditor/internal/metrics"
	"github.com/JakeFAU/lite-site-auditor/internal/policy/ratelimit"
)

const (
	msgInvalidURL   = "Invalid URL. Please enter a valid website URL."
	msgRateLimited  = "Rate limit exceeded. Try again in an hour or sign up for unlimited audits."
	defaultAuditLim = 20
	maxAuditLim     = 100
	readyTimeout    = 2 * time.Second
	storeTimeout    = 5 * time.Second
)

// Auditor runs one site audit.
type Auditor interface {
	Run(ctx context.Context, rawURL string) (audit.Record, error)
}

// ReadinessCheck reports whether a downstream dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Deps are the collaborators behind the routes. Only Auditor is required.
type Deps struct {
	Auditor   Auditor
	Reports   audit.ReportStore
	Limiter   ratelimit.Limiter
	Readiness map[string]ReadinessCheck
	Logger    *zap.Logger
}

// Server wires HTTP handlers to the auditor and report store.
type Server struct {
	router    chi.Router
	auditor   Auditor
	reports   audit.ReportStore
	limiter   ratelimit.Limiter
	readiness map[string]ReadinessCheck
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(cfg config.Config, deps Deps) (*Server, error) {
	if deps.Auditor == nil {
		return nil, errors.New("auditor is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		auditor:   deps.Auditor,
		reports:   deps.Reports,
		limiter:   deps.Limiter,
		readiness: deps.Readiness,
		logger:    logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(metrics.Middleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(timeoutMiddleware(cfg.RequestTimeout()))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/crawl/lite", s.crawlLite)
		r.Route("/audits", func(r chi.Router) {
			r.Get("/", s.listAudits)
			r.Get("/{id}", s.getAudit)
			r.Get("/{id}/export.csv", s.exportAudit)
		})
	})

	s.router = r
	return s, nil
}

// Handler returns the traced router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "auditor.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	for name, check := range s.readiness {
		if err := check(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "check": name})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type crawlRequest struct {
	URL string `json:"url"`
}

// crawlLite handles POST /api/crawl/lite. The body is the bare report; the
// audit ID travels in the X-Audit-ID header.
func (s *Server) crawlLite(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r) {
		writeError(w, http.StatusTooManyRequests, msgRateLimited)
		return
	}

	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rec, err := s.auditor.Run(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, audit.ErrInvalidURL) {
			writeError(w, http.StatusBadRequest, msgInvalidURL)
			return
		}
		s.logger.Error("audit failed", zap.String("url", req.URL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("X-Audit-ID", rec.ID)
	writeJSON(w, http.StatusOK, rec.Report)
}

func (s *Server) allow(r *http.Request) bool {
	if s.limiter == nil {
		return true
	}
	key := clientKey(r)
	ok, err := s.limiter.Allow(r.Context(), key)
	if err != nil {
		s.logger.Warn("rate limiter unavailable, allowing request", zap.String("client", key), zap.Error(err))
		return true
	}
	return ok
}

// clientKey identifies the caller: first X-Forwarded-For hop, then
// X-Real-IP, then the connection's remote host.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (s *Server) listAudits(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report store unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultAuditLim, maxAuditLim)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	audits, err := s.reports.ListReports(ctx, limit, offset)
	if err != nil {
		s.logger.Error("list reports failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list audits")
		return
	}
	if audits == nil {
		audits = []audit.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"audits": audits})
}

func (s *Server) getAudit(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadRecord(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) exportAudit(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadRecord(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="audit-%s.csv"`, rec.ID))
	w.WriteHeader(http.StatusOK)
	if err := audit.WriteCSV(w, rec.Report.Pages); err != nil {
		s.logger.Error("write csv failed", zap.String("audit_id", rec.ID), zap.Error(err))
	}
}

// loadRecord fetches the audit named in the path, writing the error response
// itself when it cannot.
func (s *Server) loadRecord(w http.ResponseWriter, r *http.Request) (audit.Record, bool) {
	if s.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report store unavailable")
		return audit.Record{}, false
	}
	id := chi.URLParam(r, "id")
	if !iduuid.Valid(id) {
		writeError(w, http.StatusNotFound, "audit not found")
		return audit.Record{}, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	rec, err := s.reports.GetReport(ctx, id)
	switch {
	case errors.Is(err, audit.ErrNotFound):
		writeError(w, http.StatusNotFound, "audit not found")
		return audit.Record{}, false
	case err != nil:
		s.logger.Error("get report failed", zap.String("audit_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load audit")
		return audit.Record{}, false
	}
	return rec, true
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}
