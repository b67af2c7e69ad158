// Package server exposes the recorded data and derived analytics as a
// local JSON API. Every handler maps failures onto a response; nothing
// here ever terminates the process.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/moegi/roomstat/internal/analytics"
	"github.com/moegi/roomstat/internal/clicks"
	"github.com/moegi/roomstat/internal/ingest"
	"github.com/moegi/roomstat/internal/store"
)

// Server provides the HTTP API.
type Server struct {
	store    store.Store
	agg      *analytics.Aggregator
	ingestor *ingest.Ingestor
	importer *clicks.Importer
	port     int
}

// New creates a new HTTP server.
func New(s store.Store, agg *analytics.Aggregator, ingestor *ingest.Ingestor, importer *clicks.Importer, port int) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{
		store:    s,
		agg:      agg,
		ingestor: ingestor,
		importer: importer,
		port:     port,
	}
}

// Router builds the chi router. Exposed for tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/progress", s.handleProgress)
		r.Get("/series", s.handleSeries)
		r.Get("/ranking", s.handleRanking)
		r.Get("/export.csv", s.handleExportCSV)

		r.Post("/snapshots", s.handleAddSnapshot)
		r.Delete("/snapshots/{id}", s.handleDeleteSnapshot)

		r.Put("/goals/{month}", s.handleSetGoal)

		r.Get("/posts", s.handleListPosts)
		r.Post("/posts", s.handleAddPost)
		r.Delete("/posts", s.handleDeletePost)

		r.Get("/clicks", s.handleListClicks)
		r.Post("/clicks/import", s.handleImportClicks)
	})

	return r
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.port)
	fmt.Printf("roomstat server listening on %s\n", addr)
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.agg.Progress(r.Context())
	if errors.Is(err, store.ErrNoSnapshots) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	points, err := s.agg.Series(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  points,
		"count": len(points),
	})
}

func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	rows, err := s.agg.ReactionRanking(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  rows,
		"count": len(rows),
	})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="follow_stats.csv"`)

	var err error
	if r.URL.Query().Get("diffs") == "1" {
		err = s.agg.ExportSeriesCSV(r.Context(), w)
	} else {
		err = s.agg.ExportCSV(r.Context(), w)
	}
	if err != nil {
		// Headers are already out; best we can do is log.
		fmt.Printf("export csv: %v\n", err)
	}
}

func (s *Server) handleAddSnapshot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date          string `json:"date"`
		FollowCount   int    `json:"follow_count"`
		FollowerCount int    `json:"follower_count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id, err := s.store.AddSnapshot(r.Context(), req.Date, req.FollowCount, req.FollowerCount)
	if errors.Is(err, store.ErrInvalidDate) || errors.Is(err, store.ErrNegativeCount) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid id: %w", err))
		return
	}
	if err := s.store.DeleteSnapshot(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetGoal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FollowGoal   int `json:"follow_goal"`
		FollowerGoal int `json:"follower_goal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	month := chi.URLParam(r, "month")
	err := s.store.SetGoal(r.Context(), month, req.FollowGoal, req.FollowerGoal)
	if errors.Is(err, store.ErrInvalidMonth) || errors.Is(err, store.ErrNegativeCount) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	posts, err := s.store.ListRecentPosts(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  posts,
		"count": len(posts),
	})
}

func (s *Server) handleAddPost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
		RawText  string `json:"raw_text"`
		Likes    string `json:"likes"`
		Shop     string `json:"shop"`
		Memo     string `json:"memo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, errors.New("filename is required"))
		return
	}

	fields := ingest.Resolve(req.RawText, ingest.Fields{
		Likes: req.Likes,
		Shop:  req.Shop,
		Memo:  req.Memo,
	})

	post, err := s.ingestor.Register(r.Context(), req.Filename, fields)
	if errors.Is(err, ingest.ErrInvalidLikes) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if errors.Is(err, store.ErrDuplicatePost) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename    string `json:"filename"`
		Likes       int64  `json:"likes"`
		CreatedDate string `json:"created_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.store.DeletePost(r.Context(), req.Filename, req.Likes, req.CreatedDate); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListClicks(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ListShopClicks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  rows,
		"count": len(rows),
	})
}

func (s *Server) handleImportClicks(w http.ResponseWriter, r *http.Request) {
	n, err := s.importer.Import(r.Context(), r.Body)
	if errors.Is(err, clicks.ErrMissingColumns) || errors.Is(err, clicks.ErrBadRow) || errors.Is(err, store.ErrMalformedRow) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"imported": n})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
