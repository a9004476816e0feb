// Package api is volscan's read-only HTTP query surface (SPEC_FULL.md §2
// item 9): a chi router exposing search over whatever indexes have
// finished scanning, plus health and Prometheus endpoints.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/volscan/volscan/internal/applog"
	"github.com/volscan/volscan/internal/index"
	"github.com/volscan/volscan/internal/metrics"
	"github.com/volscan/volscan/internal/search"
)

// Server owns the set of indexes this process currently serves and the
// router answering queries against them.
type Server struct {
	mu      sync.RWMutex
	indexes map[uuid.UUID]*index.Index

	metrics *metrics.Metrics
	router  chi.Router
}

// NewServer builds a Server with its routes registered. m may be nil, in
// which case requests are served unmetered.
func NewServer(m *metrics.Metrics) *Server {
	s := &Server{
		indexes: make(map[uuid.UUID]*index.Index),
		metrics: m,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/volumes", s.handleListVolumes)
	r.Get("/search", s.handleSearch)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// AddIndex registers ix so subsequent /search requests can see it. Callers
// typically call this once a scan's FinishedEvent fires.
func (s *Server) AddIndex(ix *index.Index) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexes[ix.ID] = ix
	if s.metrics != nil {
		s.metrics.IndexedVolumes.Set(float64(len(s.indexes)))
	}
}

// RemoveIndex drops ix from the served set.
func (s *Server) RemoveIndex(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indexes, id)
	if s.metrics != nil {
		s.metrics.IndexedVolumes.Set(float64(len(s.indexes)))
	}
}

func (s *Server) snapshotIndexes() map[uuid.UUID]*index.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]*index.Index, len(s.indexes))
	for id, ix := range s.indexes {
		out[id] = ix
	}
	return out
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type volumeInfo struct {
	ID       uuid.UUID `json:"id"`
	RootPath string    `json:"root_path"`
	Records  int64     `json:"records_so_far"`
	Expected int64     `json:"expected_records"`
}

func (s *Server) handleListVolumes(w http.ResponseWriter, r *http.Request) {
	indexes := s.snapshotIndexes()
	out := make([]volumeInfo, 0, len(indexes))
	for id, ix := range indexes {
		out = append(out, volumeInfo{
			ID:       id,
			RootPath: ix.RootPath,
			Records:  ix.RecordsSoFar(),
			Expected: ix.ExpectedRecords(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type searchResult struct {
	IndexID uuid.UUID `json:"index_id"`
	Path    string    `json:"path"`
	Depth   int       `json:"depth"`
}

// handleSearch answers GET /search?q=...&mode=glob&ignore_case=true&whole=false
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()
	text := q.Get("q")
	if text == "" {
		http.Error(w, "missing required query parameter: q", http.StatusBadRequest)
		return
	}

	mode := search.Glob
	switch q.Get("mode") {
	case "verbatim":
		mode = search.Verbatim
	case "regex":
		mode = search.Regex
	}

	caseInsensitive, _ := strconv.ParseBool(q.Get("ignore_case"))
	whole, _ := strconv.ParseBool(q.Get("whole"))
	matchStreams, _ := strconv.ParseBool(q.Get("streams"))
	matchAttributes, _ := strconv.ParseBool(q.Get("attributes"))

	pat, err := search.Compile(text, mode, caseInsensitive, whole)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	indexes := s.snapshotIndexes()
	results, err := search.Search(r.Context(), indexes, pat, true, matchStreams, matchAttributes, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
		return
	}

	out := make([]searchResult, 0, len(results))
	for _, res := range results {
		ix := indexes[res.IndexID]
		if ix == nil {
			continue
		}
		path, ok := ix.GetPath(res.Key)
		if !ok {
			continue
		}
		out = append(out, searchResult{IndexID: res.IndexID, Path: path, Depth: res.Depth})
	}

	if s.metrics != nil {
		s.metrics.ObserveSearch(time.Since(start), len(out))
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		applog.WithFields(applog.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start),
		}).Debug("handled request")
	})
}
