// Package auth verifies bearer tokens issued by the user pool.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNoToken      = errors.New("no bearer token")
)

type Identity struct {
	Subject string
	Email   string
}

type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// Cognito validates user pool JWTs against the pool's published JWKS.
type Cognito struct {
	issuer   string
	clientID string
	keyfunc  func(ctx context.Context) jwt.Keyfunc
}

func NewCognito(issuer, clientID string) (*Cognito, error) {
	if issuer == "" {
		return nil, fmt.Errorf("cognito issuer URL is required")
	}
	issuer = strings.TrimSuffix(issuer, "/")
	jwksURL := issuer + "/.well-known/jwks.json"
	jwks, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("fetch JWKS from %s: %w", jwksURL, err)
	}
	return &Cognito{issuer: issuer, clientID: clientID, keyfunc: jwks.KeyfuncCtx}, nil
}

func (c *Cognito) Verify(ctx context.Context, tokenStr string) (*Identity, error) {
	token, err := jwt.Parse(tokenStr, c.keyfunc(ctx),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrUnauthorized
	}

	// id tokens carry the app client in aud, access tokens in client_id.
	if c.clientID != "" {
		switch claimStr(claims, "token_use") {
		case "id":
			aud, _ := claims.GetAudience()
			if !contains(aud, c.clientID) {
				return nil, ErrUnauthorized
			}
		case "access":
			if claimStr(claims, "client_id") != c.clientID {
				return nil, ErrUnauthorized
			}
		default:
			return nil, ErrUnauthorized
		}
	}

	sub := claimStr(claims, "sub")
	if sub == "" {
		return nil, ErrUnauthorized
	}
	return &Identity{Subject: sub, Email: claimStr(claims, "email")}, nil
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", ErrNoToken
	}
	return strings.TrimSpace(token), nil
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the verified caller, or nil for anonymous requests.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(contextKey{}).(*Identity)
	return id
}

// Middleware attaches the verified identity when a valid bearer token is
// present. Requests without a token, or with an invalid one, pass through
// anonymously.
func Middleware(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				next.ServeHTTP(w, r)
				return
			}
			token, err := BearerToken(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			id, err := v.Verify(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func claimStr(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
