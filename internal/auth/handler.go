package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type tokenRequest struct {
	AccessKey   string `json:"accessKey"`
	DisplayName string `json:"displayName"`
}

// Token handles POST /auth/token.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.AccessKey == "" && !h.service.Open() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "accessKey is required"})
		return
	}

	result, err := h.service.IssueToken(req.AccessKey, req.DisplayName)
	if err != nil {
		if errors.Is(err, ErrInvalidKey) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid access key"})
			return
		}
		slog.Error("issue token failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
