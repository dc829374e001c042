package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/rayscope/rayscope/backend-go/internal/typeid"
)

var (
	ErrInvalidKey   = errors.New("invalid access key")
	ErrInvalidToken = errors.New("invalid token")
)

const tokenTTL = 24 * time.Hour

// Service issues and checks view tokens. With no access key hash configured
// the viewer is open: tokens are issued to anyone.
type Service struct {
	jwtSecret []byte
	keyHash   []byte
}

func NewService(jwtSecret, accessKeyHash string) *Service {
	s := &Service{jwtSecret: []byte(jwtSecret)}
	if accessKeyHash != "" {
		s.keyHash = []byte(accessKeyHash)
	}
	return s
}

// Open reports whether access needs no key.
func (s *Service) Open() bool {
	return s.keyHash == nil
}

type TokenResult struct {
	Token     string    `json:"token"`
	Viewer    Viewer    `json:"viewer"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Viewer struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// IssueToken checks accessKey and returns a signed token for a new viewer.
func (s *Service) IssueToken(accessKey, displayName string) (*TokenResult, error) {
	if !s.Open() {
		if err := bcrypt.CompareHashAndPassword(s.keyHash, []byte(accessKey)); err != nil {
			return nil, ErrInvalidKey
		}
	}
	if displayName == "" {
		displayName = "Viewer"
	}

	viewer := Viewer{ID: typeid.NewViewerID(), DisplayName: displayName}
	expires := time.Now().Add(tokenTTL)

	token, err := s.sign(viewer, expires)
	if err != nil {
		return nil, err
	}
	return &TokenResult{Token: token, Viewer: viewer, ExpiresAt: expires}, nil
}

// ValidateToken returns the viewer a token was issued to.
func (s *Service) ValidateToken(tokenString string) (*Viewer, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	viewerID, ok := claims["sub"].(string)
	if !ok || viewerID == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	name, _ := claims["name"].(string)

	return &Viewer{ID: viewerID, DisplayName: name}, nil
}

// HashKey produces the bcrypt hash to configure as ACCESS_KEY_HASH.
func HashKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), 12)
	if err != nil {
		return "", fmt.Errorf("hash access key: %w", err)
	}
	return string(hash), nil
}

func (s *Service) sign(v Viewer, expires time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":  v.ID,
		"name": v.DisplayName,
		"iat":  time.Now().Unix(),
		"exp":  expires.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}
