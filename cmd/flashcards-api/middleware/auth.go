// Package middleware provides HTTP middleware for the flashcards API.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Raumain/flashcards/internal/config"
	"github.com/Raumain/flashcards/internal/domain"
	"github.com/Raumain/flashcards/internal/pipeline"
)

type contextKey string

const userKey contextKey = "user"

// User is the caller identity vouched for by the auth collaborator.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Claims are the bearer token claims. The subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

var errInvalidToken = errors.New("invalid token")

// Authenticator resolves the caller of a request.
type Authenticator struct {
	cfg    config.AuthConfig
	secret []byte
}

func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	if cfg.DevUserHeader == "" {
		cfg.DevUserHeader = "X-User-ID"
	}
	return &Authenticator{cfg: cfg, secret: []byte(cfg.JWTSecret)}
}

// Authenticate attaches the caller to the request context when one is
// present. Requests without credentials continue anonymously; a bad token is
// rejected.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled {
			if id := strings.TrimSpace(r.Header.Get(a.cfg.DevUserHeader)); id != "" {
				r = r.WithContext(WithUser(r.Context(), &User{ID: id}))
			}
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") {
			writeUnauthorized(w, "En-tête d'autorisation invalide")
			return
		}

		user, err := a.verify(strings.TrimSpace(token))
		if err != nil {
			writeUnauthorized(w, "Jeton invalide ou expiré")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func (a *Authenticator) verify(raw string) (*User, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errInvalidToken
	}
	return &User{ID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

// RequireUser rejects anonymous requests.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			writeUnauthorized(w, "Non autorisé")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser returns a context carrying user.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated caller, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userKey).(*User)
	return u
}

// UserID returns the caller id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if u := UserFromContext(ctx); u != nil {
		return u.ID
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	apiErr := pipeline.ToAPIError(domain.Unauthorized(message))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": apiErr})
}
