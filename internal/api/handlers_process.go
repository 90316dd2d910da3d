package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/liuwen-dev/studyforge/internal/parser"
	"github.com/liuwen-dev/studyforge/internal/pipeline"
	"github.com/liuwen-dev/studyforge/internal/task"
)

// handleProcess accepts either a JSON body with a video URL or a
// multipart form with an uploaded document, validates the input and
// queues an ingestion job.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")

	var job *pipeline.Job
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		var err error
		if job, err = s.jobFromJSON(w, r); err != nil {
			return // response already written
		}
	case strings.HasPrefix(contentType, "multipart/form-data"):
		var err error
		if job, err = s.jobFromUpload(w, r); err != nil {
			return
		}
	default:
		jsonError(w, "expected application/json or multipart/form-data", http.StatusUnsupportedMediaType)
		return
	}

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"task_id":  job.TaskID,
		"doc_id":   job.DocID,
		"status":   task.StatusPending,
		"poll_url": fmt.Sprintf("/api/tasks/%s/status", job.TaskID),
	})
}

type processURLRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

func (s *Server) jobFromJSON(w http.ResponseWriter, r *http.Request) (*pipeline.Job, error) {
	var req processURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return nil, err
	}
	if req.URL == "" {
		jsonError(w, "url is required", http.StatusBadRequest)
		return nil, fmt.Errorf("missing url")
	}
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		jsonError(w, "url must be a valid http(s) URL", http.StatusBadRequest)
		return nil, fmt.Errorf("bad url")
	}
	if !s.orchestrator.CanTranscribe() {
		jsonError(w, "video processing is not configured on this server", http.StatusBadRequest)
		return nil, fmt.Errorf("no transcriber")
	}

	job := pipeline.NewURLJob(req.URL)
	job.Title = req.Title
	return job, nil
}

func (s *Server) jobFromUpload(w http.ResponseWriter, r *http.Request) (*pipeline.Job, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return nil, err
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return nil, err
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return nil, fmt.Errorf("unsupported type")
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return nil, err
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return nil, fmt.Errorf("too large")
	}

	job := pipeline.NewFileJob(filename, data)
	job.Title = r.FormValue("title")
	return job, nil
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	t := s.orchestrator.Task(taskID)
	if t.Status == task.StatusNotFound {
		jsonError(w, "task not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(t)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
