package api

import (
	"bufio"
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
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsdesk/internal/catalog"
	"github.com/JakeFAU/newsdesk/internal/metrics"
	"github.com/JakeFAU/newsdesk/internal/news"
	"github.com/JakeFAU/newsdesk/internal/report"
)

const (
	defaultArticleLimit = 50
	maxArticleLimit     = 500
	defaultRunLimit     = 20
	maxRunLimit         = 200
)

// Catalog is the read model served under /v1/articles.
type Catalog interface {
	List(ctx context.Context, f catalog.Filter) ([]news.Row, error)
	Get(ctx context.Context, id string) (news.Row, bool, error)
	Refresh(ctx context.Context) (int, error)
	LoadedAt() time.Time
}

// RunLedger lists recorded pipeline runs.
type RunLedger interface {
	RecentRuns(ctx context.Context, limit int) ([]report.Report, error)
	Run(ctx context.Context, runID string) (report.Report, bool, error)
}

// Config controls server behaviour.
type Config struct {
	// APIKey, when set, is required on every /v1 request.
	APIKey  string
	Timeout time.Duration
}

// Server wires HTTP handlers to the catalog and the run ledger.
type Server struct {
	router  chi.Router
	catalog Catalog
	runs    RunLedger
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes. runs may be nil.
func NewServer(cat Catalog, runs RunLedger, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	s := &Server{
		catalog: cat,
		runs:    runs,
		logger:  logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(cfg.Timeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.APIKey != "" {
			r.Use(apiKeyMiddleware(cfg.APIKey))
		}
		r.Get("/articles", s.listArticles)
		r.Get("/articles/{article_id}", s.getArticle)
		r.Post("/catalog/refresh", s.refreshCatalog)
		r.Get("/runs", s.listRuns)
		r.Get("/runs/{run_id}", s.getRun)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz loads the catalog on first use so the pod only turns ready once
// the store is reachable.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
		return
	}
	if s.catalog.LoadedAt().IsZero() {
		if _, err := s.catalog.Refresh(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "store unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"loaded_at": s.catalog.LoadedAt().UTC().Format(time.RFC3339),
	})
}

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
		return
	}
	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"), defaultArticleLimit, maxArticleLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f := catalog.Filter{
		Category: strings.TrimSpace(q.Get("category")),
		Source:   strings.TrimSpace(q.Get("source")),
		Query:    strings.TrimSpace(q.Get("q")),
		Limit:    limit,
	}
	if raw := q.Get("min_score"); raw != "" {
		score, err := strconv.Atoi(raw)
		if err != nil || score < news.MinScore || score > news.MaxScore {
			writeError(w, http.StatusBadRequest, "min_score must be between 1 and 5")
			return
		}
		f.MinScore = score
	}
	rows, err := s.catalog.List(r.Context(), f)
	if err != nil {
		s.logger.Error("list articles failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to read articles")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": toArticleDTOs(rows)})
}

func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
		return
	}
	id := chi.URLParam(r, "article_id")
	row, ok, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("get article failed", zap.String("article_id", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to read articles")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}
	writeJSON(w, http.StatusOK, toArticleDTO(row))
}

func (s *Server) refreshCatalog(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
		return
	}
	n, err := s.catalog.Refresh(r.Context())
	if err != nil {
		s.logger.Error("catalog refresh failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to refresh catalog")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": n})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run ledger unavailable")
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultRunLimit, maxRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := s.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []report.Report{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run ledger unavailable")
		return
	}
	id := chi.URLParam(r, "run_id")
	run, ok, err := s.runs.Run(r.Context(), id)
	if err != nil {
		s.logger.Error("get run failed", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read run")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

type articleDTO struct {
	ID         string   `json:"id"`
	Sheet      string   `json:"sheet"`
	Row        int      `json:"row"`
	Source     string   `json:"source"`
	Title      string   `json:"title"`
	Date       string   `json:"date"`
	Tags       string   `json:"tags,omitempty"`
	Score      int      `json:"score"`
	Summary    string   `json:"summary"`
	URL        string   `json:"url"`
	Categories []string `json:"categories"`
}

func toArticleDTO(r news.Row) articleDTO {
	return articleDTO{
		ID:         r.ID(),
		Sheet:      r.Sheet,
		Row:        r.Index,
		Source:     r.Source,
		Title:      r.Title,
		Date:       r.Date,
		Tags:       r.Tags,
		Score:      r.Score,
		Summary:    r.Summary,
		URL:        r.URL,
		Categories: r.Categories,
	}
}

func toArticleDTOs(rows []news.Row) []articleDTO {
	out := make([]articleDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, toArticleDTO(r))
	}
	return out
}

func parseLimit(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > max {
		n = max
	}
	return n, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Info("request completed",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
