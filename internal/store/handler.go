package store

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rayscope/rayscope/backend-go/internal/loader"
	"github.com/rayscope/rayscope/backend-go/internal/panel"
	"github.com/rayscope/rayscope/backend-go/internal/scene"
)

const maxUploadSize = 2 * loader.MaxDocumentSize

// Upload form fields.
const (
	RayField    = "ray_data"
	MediumField = "medium_data"
)

// Handler serves the dataset endpoints.
type Handler struct {
	store     *Store
	formatter *panel.Formatter
}

// NewHandler creates a handler over store.
func NewHandler(store *Store, formatter *panel.Formatter) *Handler {
	return &Handler{store: store, formatter: formatter}
}

type infoResponse struct {
	Ready    bool         `json:"ready"`
	Version  int64        `json:"version"`
	LoadedAt *time.Time   `json:"loadedAt,omitempty"`
	Error    string       `json:"error,omitempty"`
	Panels   panel.Panels `json:"panels"`
}

// Info handles GET /api/dataset/info. A failed or pending load puts its
// message in all three panels.
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.info())
}

func (h *Handler) info() infoResponse {
	snap := h.store.Snapshot()
	resp := infoResponse{Version: snap.Version}
	if !snap.LoadedAt.IsZero() {
		resp.LoadedAt = &snap.LoadedAt
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
		resp.Panels = panel.Error(resp.Error)
		return resp
	}
	resp.Ready = true
	resp.Panels = h.formatter.Format(scene.Summarize(snap.Dataset))
	return resp
}

// Dataset handles GET /api/dataset.
func (h *Handler) Dataset(w http.ResponseWriter, r *http.Request) {
	ds, err := h.store.Current()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

// Upload handles POST /api/dataset/upload: a multipart form with a
// ray_data file and an optional medium_data file. The uploaded documents go
// through the same merge and validation as configured sources.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid upload: " + err.Error()})
		return
	}

	rays, err := formFile(r, RayField)
	if err != nil || rays == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing " + RayField + " file"})
		return
	}
	sources := []loader.Source{{Name: "ray data", Data: rays}}

	medium, err := formFile(r, MediumField)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + MediumField + " file"})
		return
	}
	if medium != nil {
		sources = append(sources, loader.Source{Name: "medium data", Data: medium, Keys: loader.MediumKeys})
	}

	if err := h.store.Load(r.Context(), sources...); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, h.info())
		return
	}
	writeJSON(w, http.StatusOK, h.info())
}

// Reload handles POST /api/dataset/reload.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reload(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, h.info())
		return
	}
	writeJSON(w, http.StatusOK, h.info())
}

// formFile reads an optional multipart file. A missing field yields nil.
func formFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoDataset):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case errors.Is(err, loader.ErrLoad):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		slog.Error("dataset request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
