package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/spigell/resume-chat/internal/agent"
	"github.com/spigell/resume-chat/internal/conversation"
	"github.com/spigell/resume-chat/internal/logger"
)

const maxBodyBytes = 64 << 10

type messageRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

type turnResponse struct {
	Reply    string              `json:"reply"`
	Route    conversation.Route  `json:"route"`
	Source   string              `json:"source"`
	Usage    *conversation.Usage `json:"usage,omitempty"`
	FocusIDs []int64             `json:"focus_ids"`
	Totals   conversation.Usage  `json:"totals"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	engine   Advancer
	sessions *Sessions
	validate *validator.Validate
	logger   *zap.Logger
}

func New(engine Advancer, sessionTTL time.Duration, log *zap.Logger) *Server {
	return &Server{
		engine:   engine,
		sessions: NewSessions(sessionTTL),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.WithComponent(log, "server"),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/messages", s.postMessage)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("elapsed", time.Since(started)),
		)
	})
}

func (s *Server) createSession(w http.ResponseWriter, _ *http.Request) {
	session := s.sessions.Create()
	logger.WithSession(s.logger, session.ID).Info("session created")
	writeJSON(w, http.StatusCreated, map[string]string{"id": session.ID})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.View())
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.sessions.Delete(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	logger.WithSession(s.logger, id).Info("session deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req messageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "text is required and must be at most 4000 characters")
		return
	}

	log := logger.WithSession(s.logger, session.ID)

	state, view, err := session.Turn(r.Context(), s.engine, req.Text)
	if err != nil {
		if errors.Is(err, agent.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error("turn failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "the assistant could not answer, please try again")
		return
	}

	resp := turnResponse{
		Route:    state.Route,
		Source:   state.Route.Label(),
		Usage:    state.LastUsage,
		FocusIDs: view.FocusIDs,
		Totals:   view.Totals,
	}
	if reply, ok := state.Reply(); ok {
		resp.Reply = reply.Content
	}

	log.Info("turn served", zap.String("route", string(state.Route)), zap.Int("turns", view.Turns))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	session, err := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return session, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// ListenAndServe serves the API on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
