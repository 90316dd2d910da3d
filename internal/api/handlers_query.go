package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/liuwen-dev/studyforge/internal/library"
)

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"documents": s.lib.Documents(),
	})
}

func (s *Server) handleDocumentTree(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	eng, err := s.lib.Engine(docID)
	if err != nil {
		s.libError(w, docID, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"doc_id":        docID,
		"document_tree": eng.Outline(),
	})
}

func (s *Server) handleDocumentNode(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	nodeID := chi.URLParam(r, "nodeID")

	eng, err := s.lib.Engine(docID)
	if err != nil {
		s.libError(w, docID, err)
		return
	}
	node, err := eng.Node(nodeID)
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(node)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if err := s.lib.Forget(docID); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"doc_id": docID, "status": "deleted"})
}

type preciseQueryRequest struct {
	DocID    string `json:"doc_id"`
	Question string `json:"question"`
}

// handlePreciseQuery answers a question with the layered traversal and
// reports which leaf nodes supplied the context.
func (s *Server) handlePreciseQuery(w http.ResponseWriter, r *http.Request) {
	var req preciseQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.DocID == "" || strings.TrimSpace(req.Question) == "" {
		jsonError(w, "doc_id and question are required", http.StatusBadRequest)
		return
	}

	eng, err := s.lib.Engine(req.DocID)
	if err != nil {
		s.libError(w, req.DocID, err)
		return
	}
	answer, sources, err := eng.Answer(r.Context(), req.Question)
	if err != nil {
		s.log.Error("precise query failed", "doc_id", req.DocID, "error", err)
		jsonError(w, "query failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"doc_id":     req.DocID,
		"answer":     answer,
		"source_ids": sources,
	})
}

type materialsRequest struct {
	DocID        string `json:"doc_id"`
	MaterialType string `json:"material_type"`
	Topic        string `json:"topic"`
	Count        int    `json:"count"`
}

// handleGenerateMaterials produces exam questions or a study summary
// from the flat leaf index of a document.
func (s *Server) handleGenerateMaterials(w http.ResponseWriter, r *http.Request) {
	var req materialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.DocID == "" {
		jsonError(w, "doc_id is required", http.StatusBadRequest)
		return
	}
	kind, err := library.ParseMaterialKind(req.MaterialType)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	content, err := s.lib.GenerateMaterials(r.Context(), req.DocID, kind, req.Topic, req.Count)
	if err != nil {
		if errors.Is(err, library.ErrDocumentNotFound) {
			jsonError(w, "document not found: "+req.DocID, http.StatusNotFound)
			return
		}
		s.log.Error("material generation failed", "doc_id", req.DocID, "kind", kind, "error", err)
		jsonError(w, "generation failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"doc_id":        req.DocID,
		"material_type": kind,
		"content":       content,
	})
}

func (s *Server) libError(w http.ResponseWriter, docID string, err error) {
	if errors.Is(err, library.ErrDocumentNotFound) {
		jsonError(w, "document not found: "+docID, http.StatusNotFound)
		return
	}
	s.log.Error("library access failed", "doc_id", docID, "error", err)
	jsonError(w, err.Error(), http.StatusInternalServerError)
}
