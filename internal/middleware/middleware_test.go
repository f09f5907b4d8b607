package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func whoAmI() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserIDFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(id))
	})
}

func TestAuthenticate(t *testing.T) {
	valid, err := GenerateToken(secret, "u1", time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken(secret, "u1", -time.Minute)
	require.NoError(t, err)
	foreign, err := GenerateToken([]byte("other-secret"), "u1", time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		query  string
		status int
		body   string
	}{
		{name: "header", header: "Bearer " + valid, status: http.StatusOK, body: "u1"},
		{name: "query", query: "?token=" + valid, status: http.StatusOK, body: "u1"},
		{name: "missing", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer not-a-token", status: http.StatusForbidden},
		{name: "expired", header: "Bearer " + expired, status: http.StatusForbidden},
		{name: "other key", header: "Bearer " + foreign, status: http.StatusForbidden},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := require.New(t)
			r := httptest.NewRequest(http.MethodGet, "/message/conversations"+c.query, nil)
			if c.header != "" {
				r.Header.Set("Authorization", c.header)
			}
			w := httptest.NewRecorder()

			Authenticate(secret)(whoAmI()).ServeHTTP(w, r)

			req.Equal(c.status, w.Code)
			if c.body != "" {
				req.Equal(c.body, w.Body.String())
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	req := require.New(t)
	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })
	w := httptest.NewRecorder()

	CORS("http://localhost:5173", slog.Default())(next).
		ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/message/conversations", nil))

	req.Equal(http.StatusOK, w.Code)
	req.False(called)
	req.Equal("http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoggingKeepsStatus(t *testing.T) {
	req := require.New(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	w := httptest.NewRecorder()

	Logging(slog.Default())(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	req.Equal(http.StatusTeapot, w.Code)
}
