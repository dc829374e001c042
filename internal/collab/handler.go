package collab

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rayscope/rayscope/backend-go/internal/engine"
	"github.com/rayscope/rayscope/backend-go/internal/typeid"
)

const requestTimeout = 5 * time.Second

type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

type sessionResponse struct {
	SessionID string               `json:"sessionId"`
	CreatedAt time.Time            `json:"createdAt"`
	Ready     bool                 `json:"ready"`
	Clients   int                  `json:"clients"`
	Viewport  engine.ViewportState `json:"viewport"`
	Options   engine.RenderOptions `json:"options"`
}

// Create handles POST /api/sessions. The body is optional.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var opts CreateOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	s := h.hub.CreateSession(opts)
	resp, err := describe(r.Context(), s)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Get handles GET /api/sessions/{sessionId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	resp, err := describe(r.Context(), s)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /api/sessions/{sessionId}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if err := h.hub.CloseSession(s.ID); err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Frame handles GET /api/sessions/{sessionId}/frame and returns the current
// view as draw commands.
func (h *Handler) Frame(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var frame engine.Frame
	if err := s.Do(ctx, func(e *engine.Engine) { frame = e.Frame() }); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

// session resolves the {sessionId} route variable. Malformed IDs are
// reported as unknown sessions.
func (h *Handler) session(r *http.Request) (*Session, error) {
	id := mux.Vars(r)["sessionId"]
	if err := typeid.Validate(id, typeid.PrefixSession); err != nil {
		return nil, ErrSessionNotFound
	}
	return h.hub.Session(id)
}

func describe(ctx context.Context, s *Session) (sessionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp := sessionResponse{SessionID: s.ID, CreatedAt: s.CreatedAt}
	err := s.Do(ctx, func(e *engine.Engine) {
		resp.Ready = e.Ready()
		resp.Clients = len(s.clients)
		resp.Viewport = e.Viewport()
		resp.Options = e.Options()
	})
	return resp, err
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrSessionClosed):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "session busy"})
	default:
		slog.Error("session request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
