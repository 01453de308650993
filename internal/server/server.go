package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hazz-dev/netpulse/internal/config"
	"github.com/hazz-dev/netpulse/internal/storage"
)

// Store defines the storage queries the server needs.
type Store interface {
	AllLatest(ctx context.Context) ([]storage.Record, error)
	LatestResult(ctx context.Context, probe string) (*storage.Record, error)
	ProbeHistory(ctx context.Context, probe string, limit, offset int) ([]storage.Record, int, error)
	SuccessPercent(ctx context.Context, probe string, last int) (float64, error)
}

// Server holds the chi router and its dependencies.
type Server struct {
	store  Store
	probes []config.Probe
	router chi.Router
	logger *slog.Logger
}

// New creates a new Server and registers all routes. corsOrigins lists the
// origins allowed to call the API from a browser; empty allows none.
func New(store Store, probes []config.Probe, corsOrigins []string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:  store,
		probes: probes,
		router: chi.NewRouter(),
		logger: logger,
	}
	s.registerRoutes(corsOrigins)
	return s
}

// Router returns the chi router (for mounting or testing).
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) registerRoutes(corsOrigins []string) {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/probes", s.handleListProbes)
	r.Get("/api/probes/{name}", s.handleGetProbe)
	r.Get("/api/probes/{name}/history", s.handleGetProbeHistory)
}

// --- Response helpers ---

type envelope struct {
	Data  any    `json:"data"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: msg})
}

func (s *Server) probeIndex() map[string]config.Probe {
	idx := make(map[string]config.Probe, len(s.probes))
	for _, p := range s.probes {
		idx[p.Name] = p
	}
	return idx
}

// --- JSON views ---

type resultView struct {
	RunID         string    `json:"run_id"`
	Kind          string    `json:"kind"`
	Successful    bool      `json:"successful"`
	Status        string    `json:"status"`
	LatencyMs     float64   `json:"latency_ms"`
	Error         string    `json:"error,omitempty"`
	StatusCode    int       `json:"status_code,omitempty"`
	IP            string    `json:"ip,omitempty"`
	DaysRemaining *int      `json:"days_remaining,omitempty"`
	Issuer        string    `json:"issuer,omitempty"`
	CheckedAt     time.Time `json:"checked_at"`
}

func toView(rec storage.Record) resultView {
	v := resultView{
		RunID:      rec.RunID,
		Kind:       rec.Kind,
		Successful: rec.Successful,
		Status:     rec.Status(),
		LatencyMs:  rec.LatencyMs,
		Error:      rec.Error,
		StatusCode: rec.StatusCode,
		IP:         rec.IP,
		Issuer:     rec.Issuer,
		CheckedAt:  rec.CheckedAt,
	}
	if rec.Kind == "ssl" && rec.Error == "" {
		days := rec.DaysRemaining
		v.DaysRemaining = &days
	}
	return v
}

func toViews(recs []storage.Record) []resultView {
	out := make([]resultView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toView(rec))
	}
	return out
}

type probeDetail struct {
	Name        string      `json:"name"`
	Kind        string      `json:"kind"`
	Target      string      `json:"target"`
	Interval    string      `json:"interval"`
	Status      string      `json:"status"`
	SuccessPct  float64     `json:"success_percent"`
	LastChecked *time.Time  `json:"last_checked"`
	Latest      *resultView `json:"latest"`
}

func (s *Server) detail(ctx context.Context, p config.Probe, latest *storage.Record) probeDetail {
	d := probeDetail{
		Name:     p.Name,
		Kind:     p.Kind,
		Target:   p.Target,
		Interval: p.Interval.Duration.String(),
		Status:   "unknown",
	}
	if latest == nil {
		return d
	}
	view := toView(*latest)
	d.Status = latest.Status()
	t := latest.CheckedAt
	d.LastChecked = &t
	d.Latest = &view
	pct, err := s.store.SuccessPercent(ctx, p.Name, 100)
	if err != nil {
		s.logger.Warn("SuccessPercent", "probe", p.Name, "error", err)
	}
	d.SuccessPct = pct
	return d
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleListProbes(w http.ResponseWriter, r *http.Request) {
	latest, err := s.store.AllLatest(r.Context())
	if err != nil {
		s.logger.Error("AllLatest", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	byProbe := make(map[string]storage.Record, len(latest))
	for _, rec := range latest {
		byProbe[rec.Probe] = rec
	}

	details := make([]probeDetail, 0, len(s.probes))
	for _, p := range s.probes {
		var rec *storage.Record
		if v, ok := byProbe[p.Name]; ok {
			rec = &v
		}
		details = append(details, s.detail(r.Context(), p, rec))
	}

	writeJSON(w, http.StatusOK, details)
}

type probeDetailResponse struct {
	probeDetail
	RecentResults []resultView `json:"recent_results"`
}

func (s *Server) handleGetProbe(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	p, ok := s.probeIndex()[name]
	if !ok {
		writeError(w, http.StatusNotFound, "probe not found")
		return
	}

	latest, err := s.store.LatestResult(r.Context(), name)
	if err != nil {
		s.logger.Error("LatestResult", "probe", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	history, _, err := s.store.ProbeHistory(r.Context(), name, 10, 0)
	if err != nil {
		s.logger.Error("ProbeHistory", "probe", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, probeDetailResponse{
		probeDetail:   s.detail(r.Context(), p, latest),
		RecentResults: toViews(history),
	})
}

type historyResponse struct {
	Results []resultView `json:"results"`
	Total   int          `json:"total"`
}

func (s *Server) handleGetProbeHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if _, ok := s.probeIndex()[name]; !ok {
		writeError(w, http.StatusNotFound, "probe not found")
		return
	}

	const maxLimit = 1000

	limit := 50
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		if n > maxLimit {
			n = maxLimit
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset parameter")
			return
		}
		offset = n
	}

	recs, total, err := s.store.ProbeHistory(r.Context(), name, limit, offset)
	if err != nil {
		s.logger.Error("ProbeHistory", "probe", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Results: toViews(recs),
		Total:   total,
	})
}

// --- Middleware ---

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}
