// Package server exposes one long-lived reading session over a local JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robertmeta/swipe-news/feed"
	"github.com/robertmeta/swipe-news/model"
	"github.com/robertmeta/swipe-news/opml"
	"github.com/robertmeta/swipe-news/reader"
	"github.com/robertmeta/swipe-news/selection"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// Invalidator drops cached article lists before a forced refresh.
type Invalidator interface {
	Invalidate()
}

// Config wires a Server.
type Config struct {
	Session   *reader.Session
	Selection *selection.Selection
	Feeds     *model.FeedConfig
	// Cache is optional.
	Cache Invalidator
	// Notices, when set, must be the recorder the session notifies; notices
	// raised by a request are returned in its response.
	Notices *reader.Recorder
	// AllowedOrigins lists browser origins allowed to call the API.
	AllowedOrigins []string
	Log            logrus.FieldLogger
}

// Server is the HTTP API. Requests are serialised over the session.
type Server struct {
	mu     sync.Mutex
	cfg    Config
	log    logrus.FieldLogger
	router chi.Router
}

// New creates a new server.
func New(cfg Config) *Server {
	s := &Server{cfg: cfg, log: cfg.Log}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.cfg.Feeds == nil {
		s.cfg.Feeds = &model.FeedConfig{}
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}).Handler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/feeds", s.handleFeeds)
		r.Put("/selection", s.handleSelection)
		r.Post("/refresh", s.handleRefresh)

		r.Get("/articles", s.handleArticles)
		r.Get("/current", s.handleCurrent)
		r.Put("/index", s.handleIndex)

		r.Post("/swipe", s.handleSwipe)
		r.Post("/bookmark", s.handleBookmark)
		r.Post("/undo", s.handleUndo)
		r.Put("/actions/{id}", s.handleUpdateAction)
		r.Post("/unread", s.handleUnread)
		r.Post("/saved/{id}", s.handleSave)
		r.Delete("/saved/{id}", s.handleUnsave)

		r.Put("/filter", s.handleFilter)
		r.Put("/goal", s.handleGoal)
		r.Get("/stats", s.handleStats)
		r.Get("/history", s.handleHistory)
		r.Get("/prefs", s.handleGetPrefs)
		r.Put("/prefs", s.handlePutPrefs)

		r.Get("/export/liked", s.handleExportLiked)
		r.Get("/export/opml", s.handleExportOPML)
	})

	s.router = r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.WithField("addr", addr).Info("server starting")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// lock serialises access to the session and clears notices recorded by
// earlier requests.
func (s *Server) lock() func() {
	s.mu.Lock()
	if s.cfg.Notices != nil {
		s.cfg.Notices.Reset()
	}
	return s.mu.Unlock
}

func (s *Server) notices() []reader.Notice {
	if s.cfg.Notices == nil {
		return nil
	}
	var out []reader.Notice
	for _, n := range s.cfg.Notices.Notices {
		if n.Level != reader.LevelProgress {
			out = append(out, n)
		}
	}
	return out
}

func (s *Server) refresh(ctx context.Context, force bool) (reader.Resolution, error) {
	if force && s.cfg.Cache != nil {
		s.cfg.Cache.Invalidate()
	}
	return s.cfg.Session.Refresh(ctx, s.cfg.Selection.Feeds())
}

// --- Handlers ---

type statusResponse struct {
	Status         reader.Status     `json:"status"`
	Filter         model.TimeFilter  `json:"filter"`
	Index          int               `json:"index"`
	Unread         int               `json:"unread"`
	LoadingMessage string            `json:"loadingMessage,omitempty"`
	CanUndo        bool              `json:"canUndo"`
	Error          string            `json:"error,omitempty"`
	Stats          model.DailyStats  `json:"stats"`
	Feeds          []feed.FeedStatus `json:"feeds"`
	Selected       []string          `json:"selected"`
	Query          string            `json:"query"`
}

func (s *Server) status() statusResponse {
	sess := s.cfg.Session
	resp := statusResponse{
		Status:         sess.Status(),
		Filter:         sess.Filter(),
		Index:          sess.Index(),
		Unread:         len(sess.Unread()),
		LoadingMessage: sess.LoadingMessage(),
		CanUndo:        sess.CanUndo(),
		Stats:          sess.DailyStats(),
		Feeds:          sess.FeedStatuses(),
		Selected:       s.cfg.Selection.IDs(),
		Query:          s.cfg.Selection.Query(),
	}
	if err := sess.Err(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	defer s.lock()()
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleFeeds(w http.ResponseWriter, r *http.Request) {
	defer s.lock()()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"feeds":    s.cfg.Feeds.Feeds,
		"selected": s.cfg.Selection.IDs(),
	})
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if !decode(w, r, &req) {
		return
	}

	defer s.lock()()
	query := s.cfg.Selection.Change(req.IDs)
	s.cfg.Session.UseSelection(s.cfg.Selection)
	res, err := s.refresh(r.Context(), false)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"selected":   s.cfg.Selection.IDs(),
		"query":      query,
		"link":       s.cfg.Selection.Link(),
		"resolution": res,
		"notices":    s.notices(),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") != ""

	defer s.lock()()
	res, err := s.refresh(r.Context(), force)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resolution": res,
		"feeds":      s.cfg.Session.FeedStatuses(),
		"notices":    s.notices(),
	})
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	defer s.lock()()
	sess := s.cfg.Session

	var articles []model.Article
	switch view := r.URL.Query().Get("view"); view {
	case "", "unread":
		articles = sess.Unread()
	case "visible":
		articles = sess.Articles()
	case "read":
		articles = sess.Read()
	case "saved":
		articles = sess.SavedForLater()
	case "liked":
		articles = sess.Liked()
	case "all":
		articles = sess.All()
	default:
		writeErrorMessage(w, http.StatusBadRequest, "unknown view: "+view)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"articles": articles})
}

type currentResponse struct {
	Article       *model.Article `json:"article,omitempty"`
	CaughtUp      bool           `json:"caughtUp"`
	Index         int            `json:"index"`
	ReadingTime   float64        `json:"readingTime,omitempty"`
	AutoPlayDelay float64        `json:"autoPlayDelay,omitempty"`
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	defer s.lock()()
	a, ok := s.cfg.Session.Current()
	resp := currentResponse{CaughtUp: !ok, Index: s.cfg.Session.Index()}
	if ok {
		resp.Article = &a
		resp.ReadingTime = reader.ReadingTime(a).Seconds()
		resp.AutoPlayDelay = reader.AutoPlayDelay(a).Seconds()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if !decode(w, r, &req) {
		return
	}
	defer s.lock()()
	s.cfg.Session.SetIndex(req.Index)
	writeJSON(w, http.StatusOK, map[string]int{"index": s.cfg.Session.Index()})
}

type itemRequest struct {
	ID        string `json:"id"`
	Direction string `json:"direction,omitempty"`
}

func (s *Server) handleSwipe(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !decode(w, r, &req) {
		return
	}
	dir, err := model.ParseDirection(req.Direction)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	defer s.lock()()
	a, err := s.cfg.Session.Find(req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	action := s.cfg.Session.Swipe(dir, a)
	s.writeAction(w, action)
}

func (s *Server) handleBookmark(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !decode(w, r, &req) {
		return
	}

	defer s.lock()()
	a, err := s.cfg.Session.Find(req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeAction(w, s.cfg.Session.Bookmark(a))
}

func (s *Server) writeAction(w http.ResponseWriter, action model.SwipeAction) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"action":  action,
		"index":   s.cfg.Session.Index(),
		"notices": s.notices(),
	})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	defer s.lock()()
	undone := s.cfg.Session.Undo()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"undone":  undone,
		"index":   s.cfg.Session.Index(),
		"notices": s.notices(),
	})
}

func (s *Server) handleUpdateAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if !decode(w, r, &req) {
		return
	}
	act, err := model.ParseAction(req.Action)
	if err != nil {
		s.writeError(w, err)
		return
	}

	defer s.lock()()
	action, err := s.cfg.Session.UpdateAction(chi.URLParam(r, "id"), act)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeAction(w, action)
}

func (s *Server) handleUnread(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if !decode(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		writeErrorMessage(w, http.StatusBadRequest, "ids are required")
		return
	}

	defer s.lock()()
	s.cfg.Session.MarkManyUnread(req.IDs)
	writeJSON(w, http.StatusOK, map[string]interface{}{"unread": req.IDs, "notices": s.notices()})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	defer s.lock()()
	a, err := s.cfg.Session.Find(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.cfg.Session.SaveForLater(a)
	writeJSON(w, http.StatusOK, map[string]interface{}{"saved": s.cfg.Session.SavedForLater(), "notices": s.notices()})
}

func (s *Server) handleUnsave(w http.ResponseWriter, r *http.Request) {
	defer s.lock()()
	s.cfg.Session.Unsave(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]interface{}{"saved": s.cfg.Session.SavedForLater(), "notices": s.notices()})
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filter string `json:"filter"`
	}
	if !decode(w, r, &req) {
		return
	}
	f, err := model.ParseTimeFilter(req.Filter)
	if err != nil {
		s.writeError(w, err)
		return
	}

	defer s.lock()()
	res, err := s.cfg.Session.ChangeFilter(r.Context(), f)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"resolution": res, "notices": s.notices()})
}

func (s *Server) handleGoal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Goal int `json:"goal"`
	}
	if !decode(w, r, &req) {
		return
	}

	defer s.lock()()
	if err := s.cfg.Session.ChangeDailyGoal(req.Goal); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Session.DailyStats())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	defer s.lock()()
	writeJSON(w, http.StatusOK, s.cfg.Session.Stats())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	defer s.lock()()
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": s.cfg.Session.Ledger()})
}

func (s *Server) handleGetPrefs(w http.ResponseWriter, r *http.Request) {
	defer s.lock()()
	writeJSON(w, http.StatusOK, s.cfg.Session.State().Prefs)
}

func (s *Server) handlePutPrefs(w http.ResponseWriter, r *http.Request) {
	defer s.lock()()
	st := s.cfg.Session.State()
	prefs := st.Prefs
	if !decode(w, r, &prefs) {
		return
	}
	st.Prefs = prefs
	if err := st.SavePrefs(); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st.Prefs)
}

func (s *Server) handleExportLiked(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")

	defer s.lock()()
	var buf strings.Builder
	if err := feed.Export(&buf, format, "Liked articles", s.cfg.Session.Liked()); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Content-Type", feed.ContentType(format))
	w.Write([]byte(buf.String()))
}

func (s *Server) handleExportOPML(w http.ResponseWriter, r *http.Request) {
	defer s.lock()()
	w.Header().Set("Content-Type", "text/x-opml")
	w.Header().Set("Content-Disposition", "attachment; filename=swipe-news.opml")
	if err := opml.Generate(w, s.cfg.Feeds.Feeds); err != nil {
		s.log.WithError(err).Error("failed to write OPML")
	}
}

// --- Helpers ---

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrInvalidAction),
		errors.Is(err, model.ErrInvalidFilter),
		errors.Is(err, model.ErrInvalidGoal):
		status = http.StatusBadRequest
	case model.IsFetchError(err):
		status = http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
	}
	writeErrorMessage(w, status, err.Error())
}
