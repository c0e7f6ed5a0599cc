package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
	"github.com/versewall/versewall/internal/versed/session"
)

type stubRelay struct{ connected bool }

func (s stubRelay) Connected() bool { return s.connected }

type stubLocal struct {
	addr    string
	clients int
}

func (s stubLocal) Addr() string     { return s.addr }
func (s stubLocal) ClientCount() int { return s.clients }

func TestGetStatus(t *testing.T) {
	t.Run("unpaired host reports its phase", func(t *testing.T) {
		sess := session.New(slog.Default())
		sess.BeginPairing()

		h := NewHandler(sess, stubRelay{}, stubLocal{}, slog.Default())
		rec := httptest.NewRecorder()
		h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1alpha1/status", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var resp statusResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "pairing", resp.Phase)
		assert.Empty(t, resp.DisplayID)
		assert.Nil(t, resp.State)
		assert.False(t, resp.RelayConnected)
	})

	t.Run("paired host reports identity, transports, and state", func(t *testing.T) {
		sess := session.New(slog.Default())
		sess.SetPaired(&v1alpha1.DisplayIdentity{
			DisplayID: "display-42",
			TenantID:  "church-1",
			Name:      "Main Hall",
		})

		h := NewHandler(sess, stubRelay{connected: true}, stubLocal{addr: "192.168.1.20:9300", clients: 2}, slog.Default())
		rec := httptest.NewRecorder()
		h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1alpha1/status", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp statusResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "ready", resp.Phase)
		assert.Equal(t, "display-42", resp.DisplayID)
		assert.Equal(t, "church-1", resp.TenantID)
		assert.Equal(t, "192.168.1.20:9300", resp.LocalAddr)
		assert.Equal(t, 2, resp.LocalClients)
		assert.True(t, resp.RelayConnected)
		require.NotNil(t, resp.State)
		assert.True(t, resp.State.IsLogo)
	})
}

func TestRouter(t *testing.T) {
	newRouter := func(t *testing.T) http.Handler {
		t.Helper()
		sess := session.New(slog.Default())
		return NewHandler(sess, stubRelay{}, stubLocal{}, slog.Default()).Router()
	}

	t.Run("health endpoints answer", func(t *testing.T) {
		router := newRouter(t)
		for _, path := range []string{"/healthz", "/readyz"} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, rec.Code, path)
			assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String(), path)
		}
	})

	t.Run("unknown api routes get a json 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1alpha1/nope", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"not found"}`, rec.Body.String())
	})

	t.Run("responses carry a request id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.NotEmpty(t, rec.Header().Get("Request-ID"))
	})
}
