package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCORSMiddleware(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	do := func(t *testing.T, h http.Handler, method string, origin string) *http.Response {
		t.Helper()
		srv := httptest.NewServer(h)
		defer srv.Close()

		req, err := http.NewRequestWithContext(t.Context(), method, srv.URL+"/test", nil)
		require.NoError(t, err)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp
	}

	t.Run("allowed origin echoed back", func(t *testing.T) {
		h := CORS([]string{"https://app.example.com"})(okHandler)

		resp := do(t, h, http.MethodGet, "https://app.example.com")

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
		require.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	})

	t.Run("unknown origin gets no cors headers", func(t *testing.T) {
		h := CORS([]string{"https://app.example.com"})(okHandler)

		resp := do(t, h, http.MethodGet, "https://evil.example.com")

		require.Equal(t, http.StatusOK, resp.StatusCode, "request itself is still served")
		require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard allows any origin", func(t *testing.T) {
		h := CORS([]string{"*"})(okHandler)

		resp := do(t, h, http.MethodGet, "https://anywhere.example.com")

		require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("empty list allows any origin", func(t *testing.T) {
		h := CORS(nil)(okHandler)

		resp := do(t, h, http.MethodGet, "https://anywhere.example.com")

		require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		called := false
		h := CORS([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		resp := do(t, h, http.MethodOptions, "https://app.example.com")

		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		require.False(t, called, "preflight must not reach the next handler")
		require.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
		require.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")
	})
}
