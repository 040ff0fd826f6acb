// Package server is the loopback HTTP bridge between the browser extension
// and the timesheet engine.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/runnerr0/timesheet/internal/activity"
	"github.com/runnerr0/timesheet/internal/activitylog"
	"github.com/runnerr0/timesheet/internal/history"
	"github.com/runnerr0/timesheet/internal/recorder"
	"github.com/runnerr0/timesheet/internal/service"
)

// DefaultMaxRequestSize bounds request bodies when none is configured.
const DefaultMaxRequestSize = 10 << 20

// Server routes host events to the recorder and commands to the service.
type Server struct {
	Recorder *recorder.Recorder
	Tabs     *recorder.TabCache
	Service  *service.Service
	Log      *activitylog.Log

	Version string
	// AuthToken, when set, is required as a bearer token on /v1 routes.
	AuthToken      string
	MaxRequestSize int64
	// PruneInterval enables periodic retention pruning while serving.
	PruneInterval time.Duration
	Logger        *slog.Logger

	started time.Time
}

type tabActivated struct {
	TabID int    `json:"tabId"`
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
}

type tabUpdated struct {
	TabID  int    `json:"tabId"`
	Status string `json:"status"`
	URL    string `json:"url"`
	Title  string `json:"title"`
}

type tabRemoved struct {
	TabID int `json:"tabId"`
}

// dateRequest selects a day. Reload rebuilds it from the configured
// history source first.
type dateRequest struct {
	Date   string `json:"date,omitempty"`
	Reload bool   `json:"reload,omitempty"`
}

// historyUpload is the history dump posted by the extension. Times are
// milliseconds since the epoch, as the browser reports them.
type historyUpload struct {
	Items []struct {
		URL           string    `json:"url"`
		Title         string    `json:"title"`
		LastVisitTime float64   `json:"lastVisitTime"`
		VisitCount    int       `json:"visitCount"`
		Visits        []float64 `json:"visits"`
	} `json:"items"`
}

// statusResponse is served on GET /status.
type statusResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Entries    int    `json:"entries"`
	Recording  bool   `json:"recording"`
	CurrentTab *int   `json:"currentTab,omitempty"`
	Uptime     string `json:"uptime"`
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("POST /v1/tabs/activated", s.guard(s.handleActivated))
	mux.Handle("POST /v1/tabs/updated", s.guard(s.handleUpdated))
	mux.Handle("POST /v1/tabs/removed", s.guard(s.handleRemoved))
	mux.Handle("POST /v1/history", s.guard(s.handleHistory))
	mux.Handle("POST /v1/reload", s.guard(s.handleReload))
	mux.Handle("POST /v1/export", s.guard(s.handleExport))
	mux.Handle("POST /v1/summarize", s.guard(s.handleSummarize))
	mux.Handle("GET /v1/summary", s.guard(s.handleSummary))
	return mux
}

// guard applies the bearer token check and the body size limit.
func (s *Server) guard(h http.HandlerFunc) http.Handler {
	limit := s.MaxRequestSize
	if limit <= 0 {
		limit = DefaultMaxRequestSize
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AuthToken != "" && !validToken(r.Header.Get("Authorization"), s.AuthToken) {
			writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		h(w, r)
	})
}

func validToken(header, token string) bool {
	got, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	out := statusResponse{
		Status:  "ok",
		Version: s.Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}
	if s.Log != nil {
		out.Entries = s.Log.Len()
		_, out.Recording = s.Log.Open()
	}
	if s.Recorder != nil {
		if id, ok := s.Recorder.CurrentTab(); ok {
			out.CurrentTab = &id
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleActivated(w http.ResponseWriter, r *http.Request) {
	var req tabActivated
	if !decode(w, r, &req) {
		return
	}
	if req.URL != "" || req.Title != "" {
		s.Tabs.Set(recorder.Tab{ID: req.TabID, URL: req.URL, Title: req.Title})
	}
	s.recordResult(w, "tab activated", req.TabID, s.Recorder.HandleActivated(r.Context(), req.TabID))
}

func (s *Server) handleUpdated(w http.ResponseWriter, r *http.Request) {
	var req tabUpdated
	if !decode(w, r, &req) {
		return
	}
	s.Tabs.Set(recorder.Tab{ID: req.TabID, URL: req.URL, Title: req.Title})
	err := s.Recorder.HandleUpdated(r.Context(), recorder.TabUpdate{
		TabID:  req.TabID,
		Status: req.Status,
		URL:    req.URL,
		Title:  req.Title,
	})
	s.recordResult(w, "tab updated", req.TabID, err)
}

func (s *Server) handleRemoved(w http.ResponseWriter, r *http.Request) {
	var req tabRemoved
	if !decode(w, r, &req) {
		return
	}
	s.Tabs.Remove(req.TabID)
	writeJSON(w, http.StatusOK, service.Response{Status: service.StatusSuccess})
}

// recordResult maps a recorder outcome to a response. Bad events are
// logged and reported but never stop the bridge.
func (s *Server) recordResult(w http.ResponseWriter, event string, tabID int, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, service.Response{Status: service.StatusSuccess})
	case errors.Is(err, recorder.ErrUnknownTab):
		s.logger().Warn(event, "tab", tabID, "err", err)
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, activity.ErrNoHost):
		s.logger().Warn(event, "tab", tabID, "err", err)
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		s.logger().Error(event, "tab", tabID, "err", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	var req historyUpload
	if !decode(w, r, &req) {
		return
	}

	items := make([]history.SnapshotItem, 0, len(req.Items))
	for _, it := range req.Items {
		si := history.SnapshotItem{
			Item: history.Item{
				URL:           it.URL,
				Title:         it.Title,
				LastVisitTime: fromMillis(it.LastVisitTime),
				VisitCount:    it.VisitCount,
			},
		}
		for _, v := range it.Visits {
			si.Visits = append(si.Visits, fromMillis(v))
		}
		items = append(items, si)
	}

	resp := s.Service.ReloadDayFrom(r.Context(), r.URL.Query().Get("date"), history.NewSnapshot(items))
	writeResponse(w, resp)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	writeResponse(w, s.Service.ReloadDay(r.Context(), req.Date))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	req, ok := s.dateCommand(w, r)
	if !ok {
		return
	}
	writeResponse(w, s.Service.Export(r.Context(), req.Date))
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	req, ok := s.dateCommand(w, r)
	if !ok {
		return
	}
	writeResponse(w, s.Service.Summarize(r.Context(), req.Date))
}

// dateCommand decodes a date request and runs the requested reload. A
// failed reload is written as the response.
func (s *Server) dateCommand(w http.ResponseWriter, r *http.Request) (dateRequest, bool) {
	var req dateRequest
	if !decodeOptional(w, r, &req) {
		return req, false
	}
	if req.Reload {
		if resp := s.Service.ReloadDay(r.Context(), req.Date); !resp.OK() {
			writeResponse(w, resp)
			return req, false
		}
	}
	return req, true
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, s.Service.CachedSummary(r.Context()))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.PruneInterval > 0 && s.Log != nil {
		go s.pruneLoop(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger().Info("daemon listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if s.Log != nil {
		if _, err := s.Log.CloseOpen(shutdownCtx, s.Log.Now()); err != nil {
			s.logger().Error("close open entry on shutdown", "err", err)
		}
	}
	s.logger().Info("daemon stopped")
	return nil
}

func (s *Server) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(s.PruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Log.Prune(ctx)
			if err != nil {
				s.logger().Error("periodic prune", "err", err)
				continue
			}
			if n > 0 {
				s.logger().Info("pruned expired entries", "removed", n)
			}
		}
	}
}

func fromMillis(ms float64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(ms*float64(time.Millisecond)))
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, decodeStatus(err), fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, decodeStatus(err), fmt.Errorf("invalid request body: %w", err))
	return false
}

func decodeStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// writeResponse sends a command response. Command failures are still 200:
// the status field carries the outcome.
func writeResponse(w http.ResponseWriter, resp service.Response) {
	writeJSON(w, http.StatusOK, resp)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, service.Response{Status: service.StatusError, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
