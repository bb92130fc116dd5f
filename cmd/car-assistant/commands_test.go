package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func testEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STORAGE_BACKEND", "file")
	t.Setenv("STORAGE_FILE", filepath.Join(dir, "state.json"))
	t.Setenv("LOG_FILE", filepath.Join(dir, "test.log"))
	t.Setenv("ASSISTANT_LANGUAGE", "")
}

func TestThemeCommand(t *testing.T) {
	testEnv(t)

	out, err := execute(t, "theme")
	require.NoError(t, err)
	assert.Equal(t, "light", out)

	out, err = execute(t, "theme", "toggle")
	require.NoError(t, err)
	assert.Equal(t, "dark", out)

	out, err = execute(t, "theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", out)

	_, err = execute(t, "theme", "sepia")
	assert.ErrorIs(t, err, errUnknownTheme)
}

func TestSendAndSessionCommands(t *testing.T) {
	testEnv(t)
	r := chi.NewRouter()
	r.Get("/api/greeting", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Welcome"})
	})
	r.Post("/chat", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "Rotate your tires.", "session_id": "s-1"})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	t.Setenv("ASSISTANT_BASE_URL", srv.URL)

	out, err := execute(t, "session")
	require.NoError(t, err)
	assert.Equal(t, "no session", out)

	out, err = execute(t, "send", "tire", "advice")
	require.NoError(t, err)
	assert.Equal(t, "Rotate your tires.", out)

	out, err = execute(t, "session")
	require.NoError(t, err)
	assert.Equal(t, "s-1", out)

	out, err = execute(t, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "Welcome", out)
}

func TestSendCommandReportsFailure(t *testing.T) {
	testEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("ASSISTANT_BASE_URL", srv.URL)

	out, err := execute(t, "send", "hi")
	assert.ErrorIs(t, err, errTurnFailed)
	assert.Contains(t, out, "Could not connect")
}
