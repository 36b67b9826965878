package server

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/chatrelay/internal/config"
	"github.com/edgard/chatrelay/internal/database"
	"github.com/edgard/chatrelay/internal/rooms"
	"github.com/edgard/chatrelay/internal/router"
	"github.com/edgard/chatrelay/internal/testutil"
)

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in   string
		want string
	}{
		{in: "report.pdf", want: "report.pdf"},
		{in: "../../etc/passwd", want: "passwd"},
		{in: `..\..\boot.ini`, want: "boot.ini"},
		{in: "..", want: ""},
		{in: "", want: ""},
		{in: ".hidden", want: "hidden"},
		{in: "my report (final).pdf", want: "my_report_final_.pdf"},
		{in: "résumé.pdf", want: "r_sum_.pdf"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, SanitizeFilename(tc.in), "input %q", tc.in)
	}
}

func TestOriginChecker(t *testing.T) {
	t.Parallel()

	withOrigin := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	t.Run("allow list", func(t *testing.T) {
		t.Parallel()

		oc := newOriginChecker(testutil.Logger(t), []string{"http://localhost:8080", "HTTPS://Example.COM", "not a url", ""})

		assert.True(t, oc.check(withOrigin("http://localhost:8080")))
		assert.True(t, oc.check(withOrigin("https://example.com")), "comparison is case insensitive")
		assert.False(t, oc.check(withOrigin("http://evil.test")))
		assert.False(t, oc.check(withOrigin("")), "missing Origin header is rejected")
	})

	t.Run("wildcard", func(t *testing.T) {
		t.Parallel()

		oc := newOriginChecker(testutil.Logger(t), []string{"*"})

		assert.True(t, oc.check(withOrigin("http://anywhere.test")))
		assert.False(t, oc.check(withOrigin("")), "wildcard still requires an Origin header")
	})
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	http.HandlerFunc(HealthHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func newUploadFixture(t *testing.T) (http.HandlerFunc, database.Store, config.UploadConfig) {
	t.Helper()

	log := testutil.Logger(t)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	store := database.NewStore(db, log)
	registry := rooms.NewRegistry(log)
	hub := NewHub(log, registry, store)
	rt := router.New(log, store, hub)
	hub.AttachRouter(rt)

	cfg := config.UploadConfig{Dir: t.TempDir(), MaxSize: 1 << 20}
	return UploadHandler(log, rt, hub, cfg), store, cfg
}

func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for key, value := range fields {
		require.NoError(t, w.WriteField(key, value))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadHandlerStoresFileAndRecordsMessage(t *testing.T) {
	t.Parallel()

	handler, store, cfg := newUploadFixture(t)

	body, contentType := multipartBody(t, "notes.txt", []byte("hello upload"), map[string]string{
		"room":     "lab",
		"username": "alice",
	})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "File uploaded successfully", rec.Body.String())

	stored, err := os.ReadFile(filepath.Join(cfg.Dir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello upload", string(stored))

	history, err := store.HistoryFor(context.Background(), "lab")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, database.KindFile, history[0].Kind)
	assert.Equal(t, "notes.txt", history[0].Body)
	assert.Equal(t, "alice", history[0].Username)
}

func TestUploadHandlerRejectsMissingFile(t *testing.T) {
	t.Parallel()

	handler, _, _ := newUploadFixture(t)

	body, contentType := multipartBody(t, "", nil, map[string]string{"room": "lab"})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadHandlerRejectsUnsafeFilename(t *testing.T) {
	t.Parallel()

	handler, _, _ := newUploadFixture(t)

	body, contentType := multipartBody(t, "..", []byte("x"), nil)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFilesHandler(t *testing.T) {
	t.Parallel()

	log := testutil.Logger(t)
	cfg := config.UploadConfig{Dir: t.TempDir()}
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Dir, "notes.txt"), []byte("served content"), 0o644))

	handler := FilesHandler(log, cfg)

	t.Run("serves existing file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/files/notes.txt", nil)
		req.SetPathValue("name", "notes.txt")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		data, err := io.ReadAll(rec.Body)
		require.NoError(t, err)
		assert.Equal(t, "served content", string(data))
	})

	t.Run("unknown file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/files/missing.txt", nil)
		req.SetPathValue("name", "missing.txt")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("traversal attempt", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/files/x", nil)
		req.SetPathValue("name", "..")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
