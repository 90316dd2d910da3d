package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuwen-dev/studyforge/internal/ai"
	"github.com/liuwen-dev/studyforge/internal/ai/mock"
	"github.com/liuwen-dev/studyforge/internal/config"
	"github.com/liuwen-dev/studyforge/internal/library"
	"github.com/liuwen-dev/studyforge/internal/media"
	"github.com/liuwen-dev/studyforge/internal/parser"
	"github.com/liuwen-dev/studyforge/internal/pipeline"
	"github.com/liuwen-dev/studyforge/internal/task"
	"github.com/liuwen-dev/studyforge/internal/tree"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg config.Config) (*Server, *library.Library) {
	t.Helper()
	return newTestServerWithTranscriber(t, cfg, &mock.Transcriber{})
}

func newTestServerWithTranscriber(t *testing.T, cfg config.Config, transcriber ai.Transcriber) (*Server, *library.Library) {
	t.Helper()

	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 1 << 20
	}

	cache, err := tree.OpenCache("", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	retry := ai.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond}
	lib := library.New(mock.NewProvider(), cache, retry, library.DefaultConfig(), testLogger())
	store := task.NewStore(time.Hour, testLogger())

	orch := pipeline.NewOrchestrator(
		pipeline.Config{WorkerCount: 1, MaxQueueSize: 4},
		store,
		media.NewDownloader("yt-dlp-test-missing", t.TempDir(), testLogger()),
		media.NewExtractor("ffmpeg-test-missing", testLogger()),
		transcriber,
		parser.NewRegistry(nil, false),
		lib,
		testLogger(),
	)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	return NewServer(orch, lib, testLogger(), cfg), lib
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func uploadRequest(t *testing.T, filename, content, title string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	if title != "" {
		require.NoError(t, mw.WriteField("title", title))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/process", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func awaitCompletion(t *testing.T, s *Server, taskID string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w := doJSON(t, s, http.MethodGet, "/api/tasks/"+taskID+"/status", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		switch body["status"] {
		case string(task.StatusCompleted):
			return body
		case string(task.StatusFailed):
			t.Fatalf("task failed: %v", body["error"])
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s did not complete", taskID)
	return nil
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, config.Config{})
	w := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestProcessUpload_EndToEnd(t *testing.T) {
	s, _ := newTestServer(t, config.Config{})

	text := strings.Repeat("Photosynthesis converts light into chemical energy.\n\n", 4)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, uploadRequest(t, "plants.txt", text, ""))
	require.Equal(t, http.StatusAccepted, w.Code, "body: %s", w.Body.String())

	accepted := decodeBody(t, w)
	taskID, _ := accepted["task_id"].(string)
	docID, _ := accepted["doc_id"].(string)
	require.NotEmpty(t, taskID)
	require.NotEmpty(t, docID)
	assert.Equal(t, string(task.StatusPending), accepted["status"])
	assert.Equal(t, "/api/tasks/"+taskID+"/status", accepted["poll_url"])

	status := awaitCompletion(t, s, taskID)
	assert.Equal(t, float64(100), status["progress"])
	require.NotNil(t, status["result"])

	// Tree endpoint serves the built outline.
	w = doJSON(t, s, http.MethodGet, "/api/documents/"+docID+"/tree", nil)
	require.Equal(t, http.StatusOK, w.Code)
	treeBody := decodeBody(t, w)
	assert.Equal(t, docID, treeBody["doc_id"])
	assert.NotEmpty(t, treeBody["document_tree"])

	// Node detail for the first leaf.
	w = doJSON(t, s, http.MethodGet, "/api/documents/"+docID+"/node/0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	nodeBody := decodeBody(t, w)
	assert.Equal(t, "0", nodeBody["id"])
	assert.Equal(t, "leaf", nodeBody["type"])
	assert.NotEmpty(t, nodeBody["full_text"])

	// The document shows up in the listing.
	w = doJSON(t, s, http.MethodGet, "/api/documents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeBody(t, w)["documents"], docID)

	// Question answering over the tree.
	w = doJSON(t, s, http.MethodPost, "/api/query/precise", map[string]any{
		"doc_id":   docID,
		"question": "what does photosynthesis produce?",
	})
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	queryBody := decodeBody(t, w)
	assert.Equal(t, "answer: what does photosynthesis produce?", queryBody["answer"])
	assert.NotEmpty(t, queryBody["source_ids"])

	// Study materials.
	w = doJSON(t, s, http.MethodPost, "/api/generate/materials", map[string]any{
		"doc_id":        docID,
		"material_type": "exam",
		"count":         3,
	})
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	matBody := decodeBody(t, w)
	assert.Equal(t, "exam", matBody["material_type"])
	assert.NotEmpty(t, matBody["content"])

	// Deleting the document removes it everywhere.
	w = doJSON(t, s, http.MethodDelete, "/api/documents/"+docID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/documents/"+docID+"/tree", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProcess_TitleOverride(t *testing.T) {
	s, _ := newTestServer(t, config.Config{})

	w := httptest.NewRecorder()
	s.ServeHTTP(w, uploadRequest(t, "raw.txt", "Notes on the water cycle.", "Water Cycle"))
	require.Equal(t, http.StatusAccepted, w.Code)

	taskID := decodeBody(t, w)["task_id"].(string)
	status := awaitCompletion(t, s, taskID)
	result := status["result"].(map[string]any)
	assert.Equal(t, "Water Cycle", result["doc_name"])
	assert.Equal(t, "txt", result["doc_type"])
}

func TestProcess_WrongContentType(t *testing.T) {
	s, _ := newTestServer(t, config.Config{})
	req := httptest.NewRequest(http.MethodPost, "/api/documents/process", strings.NewReader("plain text"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestProcess_UnsupportedExtension(t *testing.T) {
	s, _ := newTestServer(t, config.Config{})
	w := httptest.NewRecorder()
	s.ServeHTTP(w, uploadRequest(t, "slides.pptx", "binary stuff", ""))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "unsupported file type")
}

func TestProcess_UploadTooLarge(t *testing.T) {
	s, _ := newTestServer(t, config.Config{MaxUploadBytes: 64})
	w := httptest.NewRecorder()
	s.ServeHTTP(w, uploadRequest(t, "big.txt", strings.Repeat("x", 200), ""))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestProcess_URLValidation(t *testing.T) {
	s, _ := newTestServer(t, config.Config{})

	for _, tc := range []struct {
		name string
		body map[string]any
	}{
		{"missing url", map[string]any{}},
		{"bad scheme", map[string]any{"url": "ftp://example.com/video"}},
		{"not a url", map[string]any{"url": "::::"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, s, http.MethodPost, "/api/documents/process", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestTaskStatus_Unknown(t *testing.T) {
	s, _ := newTestServer(t, config.Config{})
	w := doJSON(t, s, http.MethodGet, "/api/tasks/01ARZ3NDEKTSV4RRFFQ69G5FAV/status", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentTree_Unknown(t *testing.T) {
	s, _ := newTestServer(t, config.Config{})
	w := doJSON(t, s, http.MethodGet, "/api/documents/nope/tree", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "document not found")
}

func TestPreciseQuery_Validation(t *testing.T) {
	s, _ := newTestServer(t, config.Config{})

	w := doJSON(t, s, http.MethodPost, "/api/query/precise", map[string]any{"doc_id": "d"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/query/precise", map[string]any{
		"doc_id": "nope", "question": "anything?",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGenerateMaterials_Validation(t *testing.T) {
	s, _ := newTestServer(t, config.Config{})

	w := doJSON(t, s, http.MethodPost, "/api/generate/materials", map[string]any{
		"doc_id": "d", "material_type": "quiz",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "unknown material kind")
}

func TestProcess_URLWithoutTranscriber(t *testing.T) {
	s, _ := newTestServerWithTranscriber(t, config.Config{}, nil)

	w := doJSON(t, s, http.MethodPost, "/api/documents/process", map[string]any{
		"url": "https://example.com/watch?v=abc123",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "not configured")

	// File uploads keep working without a transcription service.
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, uploadRequest(t, "notes.txt", "Plain file content.", ""))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestAuth(t *testing.T) {
	s, _ := newTestServer(t, config.Config{APIKey: "secret-key"})

	// Health stays open.
	w := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// API routes require the key.
	w = doJSON(t, s, http.MethodGet, "/api/documents", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	s.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	w = httptest.NewRecorder()
	s.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
