package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_test"
	testClientID = "client-123"
)

var testKey = []byte("test-signing-key")

func testVerifier() *Cognito {
	return &Cognito{
		issuer:   testIssuer,
		clientID: testClientID,
		keyfunc: func(context.Context) jwt.Keyfunc {
			return func(*jwt.Token) (any, error) { return testKey, nil }
		},
	}
}

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testKey)
	require.NoError(t, err)
	return token
}

func idClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":       testIssuer,
		"sub":       "cognito-sub-1",
		"aud":       testClientID,
		"email":     "a@b.com",
		"token_use": "id",
		"exp":       time.Now().Add(time.Hour).Unix(),
	}
}

func TestVerifyIDToken(t *testing.T) {
	id, err := testVerifier().Verify(context.Background(), sign(t, idClaims()))
	require.NoError(t, err)
	assert.Equal(t, "cognito-sub-1", id.Subject)
	assert.Equal(t, "a@b.com", id.Email)
}

func TestVerifyAccessToken(t *testing.T) {
	claims := idClaims()
	delete(claims, "aud")
	claims["token_use"] = "access"
	claims["client_id"] = testClientID

	id, err := testVerifier().Verify(context.Background(), sign(t, claims))
	require.NoError(t, err)
	assert.Equal(t, "cognito-sub-1", id.Subject)
}

func TestVerifyRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(jwt.MapClaims)
	}{
		{"expired", func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Minute).Unix() }},
		{"no expiry", func(c jwt.MapClaims) { delete(c, "exp") }},
		{"wrong issuer", func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com" }},
		{"wrong audience", func(c jwt.MapClaims) { c["aud"] = "other-client" }},
		{"missing subject", func(c jwt.MapClaims) { delete(c, "sub") }},
		{"unknown token use", func(c jwt.MapClaims) { c["token_use"] = "refresh" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := idClaims()
			tt.mutate(claims)
			_, err := testVerifier().Verify(context.Background(), sign(t, claims))
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := BearerToken(r)
	assert.ErrorIs(t, err, ErrNoToken)

	r.Header.Set("Authorization", "Basic abc")
	_, err = BearerToken(r)
	assert.ErrorIs(t, err, ErrNoToken)

	r.Header.Set("Authorization", "Bearer abc.def")
	token, err := BearerToken(r)
	require.NoError(t, err)
	assert.Equal(t, "abc.def", token)
}

func TestMiddleware(t *testing.T) {
	var seen *Identity
	handler := Middleware(testVerifier())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+sign(t, idClaims()))
	handler.ServeHTTP(httptest.NewRecorder(), r)
	require.NotNil(t, seen)
	assert.Equal(t, "cognito-sub-1", seen.Subject)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer garbage")
	handler.ServeHTTP(httptest.NewRecorder(), r)
	assert.Nil(t, seen)
}
