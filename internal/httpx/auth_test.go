package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return s
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := UserID(r.Context())
		_, _ = w.Write([]byte(uid))
	})
}

func TestAuth(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	cases := []struct {
		name   string
		setup  func(r *http.Request)
		status int
		user   string
	}{
		{"bearer subject", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, jwt.MapClaims{"sub": "user-1", "exp": exp}))
		}, http.StatusOK, "user-1"},
		{"cookie userId claim", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "token", Value: signToken(t, testSecret, jwt.MapClaims{"userId": "user-2", "exp": exp})})
		}, http.StatusOK, "user-2"},
		{"missing", func(*http.Request) {}, http.StatusUnauthorized, ""},
		{"wrong secret", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, []byte("other"), jwt.MapClaims{"sub": "user-1"}))
		}, http.StatusUnauthorized, ""},
		{"expired", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix()}))
		}, http.StatusUnauthorized, ""},
		{"no user claim", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, jwt.MapClaims{"exp": exp}))
		}, http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()

			Auth(testSecret)(echoUser()).ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, tc.user, rec.Body.String())
			}
		})
	}
}
