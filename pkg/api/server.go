package api

import (
	"bytes"
	"context"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"hash/fnv"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
	"github.com/vjranagit/leveltracker/pkg/store"
	"github.com/vjranagit/leveltracker/pkg/types"
	"github.com/vjranagit/leveltracker/pkg/utils/errutil"
	"github.com/vjranagit/leveltracker/pkg/utils/logging"
	"github.com/vjranagit/leveltracker/pkg/view"
)

//go:embed templates/index.html
var templatesFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// Options tunes the server
type Options struct {
	Timeout     time.Duration
	ChartWidth  int
	ChartHeight int
}

// Server serves the tracker page and its JSON API
type Server struct {
	store  *store.Store
	addr   string
	opts   Options
	server *http.Server
}

// NewServer creates a new API server
func NewServer(addr string, st *store.Store, opts Options) *Server {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Server{
		store: st,
		addr:  addr,
		opts:  opts,
	}
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog)

	r.Get("/", s.handleIndex)
	r.Post("/measurements", s.handleFormAdd)
	r.Post("/measurements/{id}/delete", s.handleFormDelete)
	r.Get("/chart.png", s.handleChart(view.ChartPNG))
	r.Get("/chart.svg", s.handleChart(view.ChartSVG))
	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/measurements", s.handleList)
		r.Post("/measurements", s.handleAdd)
		r.Delete("/measurements/{id}", s.handleDelete)
		r.Get("/summary", s.handleSummary)
		r.Get("/series", s.handleSeries)
	})

	return r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadTimeout:       s.opts.Timeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.opts.Timeout,
	}

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return goerr.Wrap(err, "server stopped", goerr.V("addr", s.addr))
	}
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.Default().With("request_id", middleware.GetReqID(r.Context()))
		r = r.WithContext(logging.With(r.Context(), logger))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

type indexPage struct {
	Summary   types.Summary
	Breakdown types.RangeBreakdown
	History   []types.HistoryEntry
	HasData   bool
	ChartRev  uint64
	Unit      string
	BandLow   float64
	BandHigh  float64
}

// handleIndex renders the form, tiles, chart and history
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	items := s.store.Measurements()

	page := indexPage{
		Summary:   view.Summarize(items),
		Breakdown: view.Breakdown(items),
		History:   view.History(items, s.store.Location()),
		HasData:   len(items) > 0,
		Unit:      view.Unit,
		BandLow:   view.BandLow,
		BandHigh:  view.BandHigh,
	}
	page.ChartRev = chartRevision(items)

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, page); err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to render page"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleFormAdd adds from the HTML form. Invalid input is dropped without a message.
func (s *Server) handleFormAdd(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	c := types.Candidate{
		Date:  r.PostFormValue("date"),
		Time:  r.PostFormValue("time"),
		Level: r.PostFormValue("level"),
		Notes: r.PostFormValue("notes"),
	}
	if _, err := s.store.Add(r.Context(), c); err != nil {
		logging.From(r.Context()).Info("form submission rejected", "candidate", c, "error", err)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleFormDelete(w http.ResponseWriter, r *http.Request) {
	if id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64); err == nil {
		s.store.Remove(r.Context(), id)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// chartRevision fingerprints the collection so the chart URL changes with every mutation
func chartRevision(items []types.Measurement) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(len(items)))
	_, _ = h.Write(buf[:])
	for _, m := range items {
		binary.BigEndian.PutUint64(buf[:], uint64(m.ID))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

func (s *Server) handleChart(format view.ChartFormat) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		err := view.RenderChart(&buf, s.store.Measurements(), view.ChartOptions{
			Format:   format,
			Width:    s.opts.ChartWidth,
			Height:   s.opts.ChartHeight,
			Location: s.store.Location(),
		})
		if errors.Is(err, view.ErrNoData) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}

		contentType := "image/png"
		if format == view.ChartSVG {
			contentType = "image/svg+xml"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(buf.Bytes())
	}
}

// handleList returns the history listing, newest first
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, view.History(s.store.Measurements(), s.store.Location()))
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var c types.Candidate
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "invalid request body"), http.StatusBadRequest)
		return
	}

	m, err := s.store.Add(r.Context(), c)
	if errors.Is(err, store.ErrInvalidMeasurement) {
		logging.From(r.Context()).Info("measurement rejected", "candidate", c)
		errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
		return
	}
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
		return
	}

	writeJSON(r.Context(), w, http.StatusCreated, m)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "invalid id"), http.StatusBadRequest)
		return
	}

	if !s.store.Remove(r.Context(), id) {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type summaryResponse struct {
	types.Summary
	Breakdown types.RangeBreakdown `json:"breakdown"`
	Unit      string               `json:"unit"`
	BandLow   float64              `json:"band_low"`
	BandHigh  float64              `json:"band_high"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	items := s.store.Measurements()
	writeJSON(r.Context(), w, http.StatusOK, summaryResponse{
		Summary:   view.Summarize(items),
		Breakdown: view.Breakdown(items),
		Unit:      view.Unit,
		BandLow:   view.BandLow,
		BandHigh:  view.BandHigh,
	})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, view.ChartSeries(s.store.Measurements(), s.store.Location()))
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"measurements": s.store.Len(),
	})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.From(ctx).Warn("failed to encode response", "error", err)
	}
}
