// Package server exposes conversations over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/mnemo/internal/agent"
	"github.com/felixgeelhaar/mnemo/internal/metrics"
	"github.com/felixgeelhaar/mnemo/internal/observe"
	"github.com/felixgeelhaar/mnemo/internal/provider"
	"github.com/felixgeelhaar/mnemo/internal/store"
)

const maxBodyBytes = 1 << 20

// Recorder persists conversation bookkeeping.
type Recorder interface {
	RecordTurn(conversationID string, at time.Time) error
	ListConversations() ([]*store.Conversation, error)
}

// Options configures a Server.
type Options struct {
	Store    Recorder
	Observer *observe.Observer
	Metrics  *metrics.Metrics
}

// Server routes HTTP requests to a conversation registry.
type Server struct {
	reg     *agent.Registry
	store   Recorder
	obs     *observe.Observer
	metrics *metrics.Metrics
	router  chi.Router
}

// New builds the router. When a store is given, completed turns are
// recorded in it; when metrics are given, they are served on /metrics.
func New(reg *agent.Registry, opts Options) *Server {
	if opts.Observer == nil {
		opts.Observer = observe.Discard()
	}
	s := &Server{reg: reg, store: opts.Store, obs: opts.Observer, metrics: opts.Metrics}
	if s.store != nil {
		Track(reg.Bus(), s.store, s.obs)
	}
	if s.metrics != nil {
		s.metrics.Watch(reg)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.logRequests, middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/turn", s.handleTurn)
		r.Get("/conversations", s.handleConversations)
		r.Get("/conversations/{id}/memories", s.handleMemories)
		r.Get("/conversations/{id}/state", s.handleState)
		r.Get("/conversations/{id}/dialogue", s.handleDialogue)
		r.Get("/conversations/{id}/live", s.handleLive)
		r.Delete("/conversations/{id}", s.handleClose)
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.obs.Log().Info().Str("addr", addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.obs.Log().Info().Msg("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// Track records every completed turn published on bus into st.
func Track(bus *agent.EventBus, st Recorder, obs *observe.Observer) {
	bus.Subscribe(agent.EventTurnComplete, func(e agent.Event) {
		if err := st.RecordTurn(e.Conversation, e.Timestamp); err != nil {
			obs.Log().Warn().Err(err).Str("conversation", e.Conversation).Msg("failed to record turn")
		}
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 && websocket.IsWebSocketUpgrade(r) {
			status = http.StatusSwitchingProtocols
		}
		if s.metrics != nil {
			s.metrics.ObserveRequest(r.Method, chi.RouteContext(r.Context()).RoutePattern(), status)
		}
		s.obs.Log().Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("duration", time.Since(start).String()).
			Msg("request")
	})
}

type turnRequest struct {
	Conversation string `json:"conversation"`
	User         string `json:"user"`
	Text         string `json:"text"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var in turnRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if in.Conversation == "" {
		writeError(w, http.StatusBadRequest, "conversation is required")
		return
	}

	rep, err := s.reg.RunTurn(r.Context(), in.Conversation, in.User, in.Text)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newTurnView(in.Conversation, rep))
}

func (s *Server) handleConversations(w http.ResponseWriter, _ *http.Request) {
	views := make([]conversationView, 0)
	seen := make(map[string]bool)

	if s.store != nil {
		recs, err := s.store.ListConversations()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, c := range recs {
			_, live := s.reg.Lookup(c.ID)
			views = append(views, conversationView{
				ID:        c.ID,
				Live:      live,
				Turns:     c.Turns,
				CreatedAt: c.CreatedAt,
				UpdatedAt: c.UpdatedAt,
			})
			seen[c.ID] = true
		}
	}
	for _, id := range s.reg.Conversations() {
		if seen[id] {
			continue
		}
		sess, _ := s.reg.Lookup(id)
		views = append(views, conversationView{ID: id, Live: true, Turns: sess.Turns()})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleMemories(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Memories())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	user := r.URL.Query().Get("user")
	if user == "" {
		writeError(w, http.StatusBadRequest, "user query parameter is required")
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot(user))
}

func (s *Server) handleDialogue(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Dialogue())
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if !s.reg.Close(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*agent.Session, bool) {
	sess, ok := s.reg.Lookup(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
	}
	return sess, ok
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, agent.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, provider.ErrTransient):
		return http.StatusServiceUnavailable
	case errors.Is(err, provider.ErrModelUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
