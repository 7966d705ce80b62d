package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/knoguchi/graphrag/internal/graph"
	"github.com/knoguchi/graphrag/internal/ingestion"
	"github.com/knoguchi/graphrag/internal/jobs"
	"github.com/knoguchi/graphrag/internal/search"
	"github.com/knoguchi/graphrag/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.svc.CheckHealth(r.Context())
	writeJSON(w, http.StatusOK, h)
}

func (s *HTTPServer) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.svc.Version()})
}

type searchRequest struct {
	Query       string `json:"query"`
	NResults    int    `json:"n_results"`
	MaxHops     *int   `json:"max_hops"`
	RepairIndex *bool  `json:"repair_index"`
}

// searchVectorBlock is the parallel-array form of the vector stream.
type searchVectorBlock struct {
	IDs       []string            `json:"ids"`
	Documents []string            `json:"documents"`
	Metadatas []map[string]string `json:"metadatas"`
	Distances []float32           `json:"distances"`
}

type searchGraphEntry struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	RelevanceScore float64 `json:"relevance_score"`
}

func emptySearchPayload() (searchVectorBlock, []searchGraphEntry) {
	return searchVectorBlock{
		IDs:       []string{},
		Documents: []string{},
		Metadatas: []map[string]string{},
		Distances: []float32{},
	}, []searchGraphEntry{}
}

func searchPayload(result *search.Result) (searchVectorBlock, []searchGraphEntry) {
	vectors, graphs := emptySearchPayload()
	for _, h := range result.VectorResults {
		vectors.IDs = append(vectors.IDs, h.ID)
		vectors.Documents = append(vectors.Documents, h.Text)
		vectors.Metadatas = append(vectors.Metadatas, h.Metadata)
		vectors.Distances = append(vectors.Distances, h.Distance)
	}
	for _, g := range result.GraphResults {
		graphs = append(graphs, searchGraphEntry{ID: g.ConceptID, Name: g.Name, RelevanceScore: g.Score})
	}
	return vectors, graphs
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		vectors, graphs := emptySearchPayload()
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "Invalid JSON body", "vector_results": vectors, "graph_results": graphs,
		})
		return
	}

	maxHops := 2
	if req.MaxHops != nil {
		maxHops = *req.MaxHops
	}
	repair := true
	if req.RepairIndex != nil {
		repair = *req.RepairIndex
	}

	result, err := s.svc.Search(r.Context(), req.Query, req.NResults, maxHops, repair)
	if err != nil {
		vectors, graphs := emptySearchPayload()
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrBadRequest) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]any{
			"error": err.Error(), "vector_results": vectors, "graph_results": graphs,
		})
		return
	}

	vectors, graphs := searchPayload(result)
	writeJSON(w, http.StatusOK, map[string]any{
		"vector_results": vectors,
		"graph_results":  graphs,
	})
}

type addDocumentRequest struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

func (s *HTTPServer) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error":       fmt.Sprintf("Unhandled exception: %v", rec),
				"document_id": nil,
				"traceback":   string(debug.Stack()),
			})
		}
	}()

	var req addDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid JSON body"})
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Missing required parameter: text"})
		return
	}

	report := s.svc.IngestText(r.Context(), req.Text, req.Metadata)
	writeJSON(w, documentStatusCode(report), documentEnvelope(report))
}

func documentStatusCode(report *ingestion.Report) int {
	switch report.Status {
	case ingestion.StatusDuplicate:
		return http.StatusOK
	case ingestion.StatusFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusCreated
	}
}

// documentEnvelope shapes the ingestion report for the wire. A failed
// ingestion carries an explicit null document_id, never an omitted one.
func documentEnvelope(report *ingestion.Report) map[string]any {
	switch report.Status {
	case ingestion.StatusDuplicate:
		return map[string]any{
			"status":                     report.Status,
			"document_id":                report.DocumentID,
			"duplicate_detection_method": report.Method,
		}
	case ingestion.StatusFailure:
		return map[string]any{
			"status":      report.Status,
			"error":       fmt.Sprintf("%v", report.Details),
			"document_id": nil,
		}
	default:
		envelope := map[string]any{
			"status":        report.Status,
			"document_id":   report.DocumentID,
			"entities":      report.EntityCount,
			"relationships": report.RelationshipCount,
		}
		if len(report.Details) > 0 {
			envelope["details"] = report.Details
		}
		return envelope
	}
}

type addFolderRequest struct {
	FolderPath      string         `json:"folder_path"`
	Recursive       bool           `json:"recursive"`
	FileTypes       []string       `json:"file_types"`
	DefaultMetadata map[string]any `json:"default_metadata"`
}

func (s *HTTPServer) handleAddFolder(w http.ResponseWriter, r *http.Request) {
	var req addFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid JSON body"})
		return
	}

	jobID, total, err := s.svc.StartFolderJob(jobs.TypeProcessFolder, service.FolderRequest{
		FolderPath:      req.FolderPath,
		Recursive:       req.Recursive,
		FileTypes:       req.FileTypes,
		DefaultMetadata: req.DefaultMetadata,
		CreatedBy:       "http",
	})
	if err != nil {
		writeServiceError(w, err, map[string]any{"job_id": nil})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":      "accepted",
		"job_id":      jobID,
		"total_files": total,
	})
}

func (s *HTTPServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.svc.Jobs().Get(chi.URLParam(r, "job_id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Job not found"})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *HTTPServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	list := s.svc.Jobs().List(jobs.Filter{
		Status: r.URL.Query().Get("status"),
		Type:   r.URL.Query().Get("type"),
	})
	if list == nil {
		list = []*jobs.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": list})
}

func (s *HTTPServer) handleListConcepts(w http.ResponseWriter, r *http.Request) {
	concepts, err := s.svc.Concepts(r.Context(), queryInt(r, "limit"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	out := make([]map[string]any, 0, len(concepts))
	for _, c := range concepts {
		out = append(out, conceptJSON(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"concepts": out})
}

func (s *HTTPServer) handleGetConcept(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Concept(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, conceptJSON(c))
}

func (s *HTTPServer) handleDocumentsByConcept(w http.ResponseWriter, r *http.Request) {
	docs, err := s.svc.DocumentsByConcept(r.Context(), chi.URLParam(r, "concept_name"), queryInt(r, "limit"))
	if err != nil {
		writeServiceError(w, err, nil)
		return
	}
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentJSON(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}

// writeServiceError maps typed service errors to HTTP statuses. extra
// fields are merged into the envelope so failure shapes stay uniform.
func writeServiceError(w http.ResponseWriter, err error, extra map[string]any) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	}
	envelope := map[string]any{"error": err.Error()}
	for k, v := range extra {
		envelope[k] = v
	}
	writeJSON(w, status, envelope)
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

func conceptJSON(c *graph.Concept) map[string]any {
	return map[string]any{
		"id":              c.ID,
		"name":            c.Name,
		"normalized_name": c.NormalizedName,
		"type":            c.Type,
		"abbreviation":    c.Abbreviation,
		"description":     c.Description,
		"source":          c.Source,
	}
}

func documentJSON(d *graph.Document) map[string]any {
	return map[string]any{
		"id":            d.ID,
		"title":         d.Title,
		"author":        d.Author,
		"source":        d.Source,
		"document_type": d.DocumentType,
		"category":      d.Category,
		"url":           d.URL,
		"filename":      d.Filename,
		"word_count":    d.WordCount,
	}
}
