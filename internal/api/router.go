package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.middlewares()...)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/devices", s.handleListDevices)
		r.Get("/devices/{address}", s.handleGetDevice)
		r.Post("/scan", s.handleScan)
		r.Post("/stop", s.handleStop)
		r.Get("/menu", s.handleMenu)
		r.Get("/about", s.handleAbout)
		r.Get("/ws", s.handleWebSocket)
	})

	if s.panel != nil {
		r.Handle("/*", s.panel)
	}

	return r
}

func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	status, err := s.session.Status(ctx)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	rows, err := s.session.Devices(ctx)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": rows,
		"count":   len(rows),
	})
}

// handleGetDevice returns the item dialog. Addresses match case-insensitively.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	address := strings.ToUpper(chi.URLParam(r, "address"))
	ctx, cancel := requestContext(r)
	defer cancel()
	dialog, err := s.session.Detail(ctx, address)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dialog)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	s.handleAction(w, r, s.session.Scan)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.handleAction(w, r, s.session.Stop)
}

// handleAction runs a session action and answers 202 with the resulting
// status. Outcomes such as notices arrive on the WebSocket stream.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request, action func(context.Context) error) {
	ctx, cancel := requestContext(r)
	defer cancel()
	if err := action(ctx); err != nil {
		writeSessionError(w, err)
		return
	}
	status, err := s.session.Status(ctx)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, status)
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	menu, err := s.session.Menu(ctx)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, menu)
}

func (s *Server) handleAbout(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.About())
}
