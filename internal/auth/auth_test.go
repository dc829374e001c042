package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTokenRoundTrip(t *testing.T) {
	hash, err := HashKey("open sesame")
	if err != nil {
		t.Fatal(err)
	}
	s := NewService("secret", hash)

	if _, err := s.IssueToken("wrong", "Ada"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("IssueToken with wrong key = %v", err)
	}

	res, err := s.IssueToken("open sesame", "Ada")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	v, err := s.ValidateToken(res.Token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if v.ID != res.Viewer.ID || v.DisplayName != "Ada" {
		t.Errorf("viewer = %+v, want %+v", v, res.Viewer)
	}

	other := NewService("other-secret", hash)
	if _, err := other.ValidateToken(res.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("token accepted under another secret: %v", err)
	}
}

func TestOpenService(t *testing.T) {
	s := NewService("secret", "")
	if !s.Open() {
		t.Fatal("service without hash is not open")
	}
	res, err := s.IssueToken("", "")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if res.Viewer.DisplayName != "Viewer" {
		t.Errorf("default display name = %q", res.Viewer.DisplayName)
	}
}

func protected(s *Service) http.Handler {
	return s.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := ViewerFromContext(r.Context())
		w.Write([]byte(v.ID))
	}))
}

func TestMiddleware(t *testing.T) {
	hash, _ := HashKey("k")
	s := NewService("secret", hash)
	res, _ := s.IssueToken("k", "Ada")

	tests := []struct {
		name   string
		header string
		query  string
		code   int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"bad format", "Token abc", "", http.StatusUnauthorized},
		{"bad token", "Bearer abc", "", http.StatusUnauthorized},
		{"bearer", "Bearer " + res.Token, "", http.StatusOK},
		{"query", "", "?token=" + res.Token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/sessions"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			protected(s).ServeHTTP(rec, req)

			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d", rec.Code, tt.code)
			}
			if tt.code == http.StatusOK && rec.Body.String() != res.Viewer.ID {
				t.Errorf("viewer = %q, want %q", rec.Body, res.Viewer.ID)
			}
		})
	}
}

func TestMiddlewareOpenModeAssignsViewer(t *testing.T) {
	rec := httptest.NewRecorder()
	protected(NewService("secret", "")).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "viewer_") {
		t.Errorf("status %d body %q", rec.Code, rec.Body)
	}
}

func TestTokenHandler(t *testing.T) {
	hash, _ := HashKey("k")
	h := NewHandler(NewService("secret", hash))

	tests := []struct {
		body string
		code int
	}{
		{`{`, http.StatusBadRequest},
		{`{"displayName": "Ada"}`, http.StatusBadRequest},
		{`{"accessKey": "nope"}`, http.StatusUnauthorized},
		{`{"accessKey": "k", "displayName": "Ada"}`, http.StatusOK},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.Token(rec, httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(tt.body)))
		if rec.Code != tt.code {
			t.Errorf("body %s: status = %d, want %d", tt.body, rec.Code, tt.code)
		}
		if tt.code == http.StatusOK {
			var res TokenResult
			if err := json.NewDecoder(rec.Body).Decode(&res); err != nil || res.Token == "" {
				t.Errorf("response = %+v, %v", res, err)
			}
		}
	}
}
