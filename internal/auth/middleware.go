package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/rayscope/rayscope/backend-go/internal/typeid"
)

type contextKey string

const ViewerKey contextKey = "viewer"

// AuthMiddleware requires a bearer token, or a token query parameter for
// websocket upgrades. In open mode requests without a token get an
// anonymous viewer.
func (s *Service) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := tokenFromRequest(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
			return
		}

		var viewer *Viewer
		switch {
		case token != "":
			viewer, err = s.ValidateToken(token)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
				return
			}
		case s.Open():
			viewer = &Viewer{ID: typeid.NewViewerID(), DisplayName: "Anonymous"}
		default:
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing authorization header"})
			return
		}

		ctx := context.WithValue(r.Context(), ViewerKey, viewer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type authError string

func (e authError) Error() string { return string(e) }

func tokenFromRequest(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", authError("invalid authorization format")
		}
		return parts[1], nil
	}
	return r.URL.Query().Get("token"), nil
}

// ViewerFromContext returns the viewer set by AuthMiddleware, or nil.
func ViewerFromContext(ctx context.Context) *Viewer {
	v, _ := ctx.Value(ViewerKey).(*Viewer)
	return v
}
