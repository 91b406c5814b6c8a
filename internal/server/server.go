// Package server exposes the HTTP surface: document upload, conversational
// queries, search, and health/introspection.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/docbridge/docbridge/internal/api"
	"github.com/docbridge/docbridge/internal/config"
	"github.com/docbridge/docbridge/internal/extract"
	"github.com/docbridge/docbridge/internal/mcp"
	"github.com/docbridge/docbridge/internal/retrieval"
	"github.com/docbridge/docbridge/internal/store"
)

// DocumentProcessor forwards an uploaded file to the remote document service.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, localPath, filename, documentID string) mcp.Result
	StoreTextOnly(ctx context.Context, localPath, filename, documentID string) mcp.Result
}

// Searcher runs a scoped similarity search.
type Searcher interface {
	Search(ctx context.Context, req retrieval.Request) mcp.Result
}

// Answerer produces a conversational answer for one query.
type Answerer interface {
	Answer(ctx context.Context, query string) (string, error)
}

// ToolManager is the introspection surface of the session manager.
type ToolManager interface {
	Servers() []config.ToolServer
	ListToolDetails(ctx context.Context, server string) ([]mcp.ToolDetail, error)
	HealthCheckAll(ctx context.Context) map[string]mcp.Health
}

type Server struct {
	uploadDir string
	router    *chi.Mux

	mgr     ToolManager
	docs    DocumentProcessor
	search  Searcher
	agent   Answerer
	store   *store.Store
	extract *extract.Registry
}

func New(uploadDir string, mgr ToolManager, docs DocumentProcessor, search Searcher, agent Answerer, st *store.Store) *Server {
	s := &Server{
		uploadDir: uploadDir,
		router:    chi.NewRouter(),
		mgr:       mgr,
		docs:      docs,
		search:    search,
		agent:     agent,
		store:     st,
		extract:   extract.NewRegistry(),
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(120 * time.Second))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/health/tools", s.handleToolHealth)
	s.router.Get("/servers", s.handleServers)
	s.router.Get("/tools", s.handleTools)
	s.router.Get("/documents", s.handleListDocuments)
	s.router.Get("/history", s.handleHistory)

	s.router.Post("/documents/upload", s.handleUpload)
	s.router.Post("/documents/upload-mongo", s.handleUploadMongo)
	s.router.Post("/documents/extract", s.handleExtract)
	s.router.Post("/agent", s.handleAgent)
	s.router.Post("/search", s.handleSearch)

	return s
}

// Router exposes the root HTTP handler.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthResponse{
		Status:               "healthy",
		AgentInitialized:     s.agent != nil,
		MCPClientInitialized: s.mgr != nil,
	})
}

func (s *Server) handleToolHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mgr.HealthCheckAll(r.Context()))
}

func (s *Server) handleServers(w http.ResponseWriter, _ *http.Request) {
	servers := s.mgr.Servers()
	out := make([]api.ServerInfo, 0, len(servers))
	for _, srv := range servers {
		out = append(out, api.ServerInfo{
			Name:        srv.Name,
			URL:         srv.URL,
			Transport:   srv.Transport,
			Description: srv.Description,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"servers": out})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("server")
	var out []api.ToolInfo
	for _, srv := range s.mgr.Servers() {
		if target != "" && srv.Name != target {
			continue
		}
		details, err := s.mgr.ListToolDetails(r.Context(), srv.Name)
		if err != nil {
			if target != "" {
				writeError(w, http.StatusBadGateway, err.Error())
				return
			}
			continue
		}
		for _, d := range details {
			out = append(out, api.ToolInfo{Server: d.Server, Name: d.Name, Description: d.Description})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	s.upload(w, r, "process_document", s.docs.ProcessDocument)
}

func (s *Server) handleUploadMongo(w http.ResponseWriter, r *http.Request) {
	s.upload(w, r, "upload_and_save_to_mongo", s.docs.StoreTextOnly)
}

type processFunc func(ctx context.Context, localPath, filename, documentID string) mcp.Result

func (s *Server) upload(w http.ResponseWriter, r *http.Request, tool string, process processFunc) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file field is required: %v", err))
		return
	}
	defer file.Close()

	documentID := uuid.NewString()
	filename := filepath.Base(header.Filename)
	localPath, size, err := s.saveUpload(file, documentID, filename)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	started := time.Now().UTC()
	result := process(r.Context(), localPath, filename, documentID)

	s.record(api.DocumentRecord{
		DocumentID: documentID,
		Filename:   filename,
		Path:       localPath,
		SizeBytes:  size,
		UploadedAt: started,
		Tool:       tool,
		Success:    result.OK,
	}, api.HistoryItem{
		At:      started,
		Server:  "DocumentService",
		Tool:    tool,
		Args:    map[string]any{"file_path": localPath, "filename": filename, "document_id": documentID},
		Success: result.OK,
		Error:   result.Err,

		DurationMs: time.Since(started).Milliseconds(),
	})

	processing, err := json.Marshal(result)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.UploadResponse{
		Status:           "success",
		DocumentID:       documentID,
		Filename:         filename,
		FilePath:         localPath,
		ProcessingResult: processing,
	})
}

// saveUpload writes the file under the upload directory as <id>_<filename>.
// The generated id keeps concurrent uploads of the same filename apart.
func (s *Server) saveUpload(file io.Reader, documentID, filename string) (string, int64, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create upload directory: %w", err)
	}
	localPath := filepath.Join(s.uploadDir, documentID+"_"+filename)
	out, err := os.Create(localPath)
	if err != nil {
		return "", 0, fmt.Errorf("create upload file: %w", err)
	}
	size, err := io.Copy(out, file)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", 0, fmt.Errorf("write upload file: %w", err)
	}
	return localPath, size, nil
}

// handleExtract converts an uploaded file to text locally without involving
// any remote tool server. Extraction failures are raised as HTTP errors, not
// tagged results.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file field is required: %v", err))
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	tmpDir, err := os.MkdirTemp("", "docbridge-extract-")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer os.RemoveAll(tmpDir)

	localPath := filepath.Join(tmpDir, filename)
	out, err := os.Create(localPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_, err = io.Copy(out, file)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	text, err := s.extract.ExtractText(localPath)
	if err != nil {
		var unsupported *extract.UnsupportedFormatError
		if errors.As(err, &unsupported) {
			writeError(w, http.StatusUnsupportedMediaType, unsupported.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.ExtractResponse{Filename: filename, Text: text})
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}
	if s.agent == nil {
		writeError(w, http.StatusServiceUnavailable, "agent is not configured")
		return
	}
	answer, err := s.agent.Answer(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.AgentResponse{Status: "success", Query: query, Answer: answer})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req api.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Mode == "" {
		req.Mode = retrieval.ModeGlobal
	}

	started := time.Now().UTC()
	result := s.search.Search(r.Context(), retrieval.Request{
		Query:          req.Query,
		Mode:           req.Mode,
		TargetID:       req.TargetID,
		Limit:          req.Limit,
		ScoreThreshold: req.ScoreThreshold,
	})
	s.recordHistory(api.HistoryItem{
		At:         started,
		Server:     "RAGService",
		Tool:       "search_documents",
		Args:       map[string]any{"query": req.Query, "mode": req.Mode},
		Success:    result.OK,
		Error:      result.Err,
		DurationMs: time.Since(started).Milliseconds(),
	})

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "document store is not configured")
		return
	}
	docs, err := s.store.ListDocuments(queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "document store is not configured")
		return
	}
	items, err := s.store.ListHistory(
		r.URL.Query().Get("server"),
		r.URL.Query().Get("tool"),
		queryInt(r, "limit", 50),
	)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": items})
}

// record persists upload bookkeeping. Store failures are logged, never
// surfaced to the client.
func (s *Server) record(doc api.DocumentRecord, item api.HistoryItem) {
	if s.store == nil {
		return
	}
	if err := s.store.InsertDocument(doc); err != nil {
		slog.Error("record document", "document_id", doc.DocumentID, "error", err)
	}
	s.recordHistory(item)
}

func (s *Server) recordHistory(item api.HistoryItem) {
	if s.store == nil {
		return
	}
	if err := s.store.InsertHistory(item); err != nil {
		slog.Error("record history", "tool", item.Tool, "error", err)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, api.ErrorResponse{Detail: detail})
}
