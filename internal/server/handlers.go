package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/kiritori/internal/config"
	"github.com/hyperjump/kiritori/internal/extract"
	"github.com/hyperjump/kiritori/internal/indexer"
	"github.com/hyperjump/kiritori/internal/models"
	"github.com/hyperjump/kiritori/internal/storage"
	"go.uber.org/zap"
)

const defaultListLimit = 50

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.config.MaxUploadSize
	if maxSize <= 0 {
		maxSize = 500 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	opts, err := optionsFromForm(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}

	uploads := make([]indexer.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "cannot read upload "+fh.Filename)
			return
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "cannot read upload "+fh.Filename)
			return
		}
		uploads = append(uploads, indexer.Upload{
			Filename: filepath.Base(fh.Filename),
			Content:  content,
			Options:  opts,
		})
	}
	s.logger.Debug("upload request", zap.Int("files", len(uploads)), zap.String("strategy", opts.Strategy))

	if len(uploads) == 1 {
		doc, err := s.indexer.Ingest(r.Context(), uploads[0])
		if err != nil {
			s.logger.Error("ingestion failed", zap.String("filename", uploads[0].Filename), zap.Error(err))
			s.respondError(w, ingestStatus(err), err.Error())
			return
		}
		s.respondJSON(w, http.StatusCreated, doc)
		return
	}

	results := s.indexer.IngestBatch(r.Context(), uploads)
	out := make([]map[string]interface{}, len(results))
	failed := 0
	for i, res := range results {
		item := map[string]interface{}{"filename": res.Filename}
		if res.Err != nil {
			failed++
			item["error"] = res.Err.Error()
			s.logger.Error("ingestion failed", zap.String("filename", res.Filename), zap.Error(res.Err))
		} else {
			item["document"] = res.Document
		}
		out[i] = item
	}
	status := http.StatusCreated
	if failed == len(results) {
		status = http.StatusUnprocessableEntity
	}
	s.respondJSON(w, status, map[string]interface{}{"results": out, "failed": failed})
}

func optionsFromForm(r *http.Request) (indexer.Options, error) {
	opts := indexer.Options{Strategy: r.FormValue("chunking_strategy")}
	if opts.Strategy != "" && opts.Strategy != indexer.StrategyAuto {
		if _, err := models.ParseChunkStrategy(opts.Strategy); err != nil {
			return opts, err
		}
	}
	var err error
	if v := r.FormValue("chunk_size"); v != "" {
		if opts.ChunkSize, err = strconv.Atoi(v); err != nil {
			return opts, errors.New("chunk_size must be an integer")
		}
	}
	if v := r.FormValue("chunk_overlap"); v != "" {
		if opts.ChunkOverlap, err = strconv.Atoi(v); err != nil {
			return opts, errors.New("chunk_overlap must be an integer")
		}
	}
	return opts, nil
}

func ingestStatus(err error) int {
	switch {
	case errors.Is(err, extract.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusUnprocessableEntity
	}
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", defaultListLimit)
	docs, err := s.indexer.Registry().ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.indexer.Registry().CountDocuments(r.Context())
	if err != nil {
		s.logger.Error("count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"total":     total,
		"offset":    offset,
		"limit":     limit,
	})
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.indexer.Registry().GetDocument(r.Context(), id)
	if err != nil {
		s.respondLookupError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("file_id", id))
	if err := s.indexer.Delete(r.Context(), id); err != nil {
		s.logger.Error("deletion failed", zap.String("file_id", id), zap.Error(err))
		s.respondLookupError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"file_id": id, "status": "deleted"})
}

func (s *Server) handleDocumentChunks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	hits, err := s.indexer.Chunks(r.Context(), id)
	if err != nil {
		s.respondLookupError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"file_id": id, "chunks": hits, "count": len(hits)})
}

func (s *Server) handleAnalyzeDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	analysis, err := s.indexer.Analyze(r.Context(), id)
	if err != nil {
		s.logger.Error("analyze failed", zap.String("file_id", id), zap.Error(err))
		s.respondLookupError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var opts indexer.Options
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("reprocess request", zap.String("file_id", id), zap.String("strategy", opts.Strategy))
	doc, err := s.indexer.Reprocess(r.Context(), id, opts)
	if err != nil {
		s.logger.Error("reprocess failed", zap.String("file_id", id), zap.Error(err))
		s.respondError(w, ingestStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req models.RetrievalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("retrieve request", zap.String("query", req.Query), zap.String("strategy", string(req.Strategy)))
	s.respondJSON(w, http.StatusOK, s.retriever.Retrieve(r.Context(), &req))
}

type queryResponse struct {
	*models.Answer
	Strategy    models.RetrievalStrategy `json:"strategy"`
	Diagnostics []string                 `json:"diagnostics,omitempty"`
	QueryTime   int64                    `json:"query_time_ms"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.RetrievalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	start := time.Now()
	resp := s.retriever.Retrieve(r.Context(), &req)
	var answer *models.Answer
	if s.answerer != nil {
		answer = s.answerer.Answer(r.Context(), req.Query, resp)
	} else {
		answer = &models.Answer{Sources: resp.Results, Outcome: resp.Outcome}
	}
	s.respondJSON(w, http.StatusOK, queryResponse{
		Answer:      answer,
		Strategy:    resp.Strategy,
		Diagnostics: resp.Diagnostics,
		QueryTime:   time.Since(start).Milliseconds(),
	})
}

type textRequest struct {
	Text         string `json:"text"`
	Filename     string `json:"filename"`
	Strategy     string `json:"chunking_strategy"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

func (s *Server) decodeText(w http.ResponseWriter, r *http.Request) (*textRequest, bool) {
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if req.Text == "" {
		s.respondError(w, http.StatusBadRequest, "text is required")
		return nil, false
	}
	return &req, true
}

func (s *Server) handleAnalyzeText(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeText(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, indexer.AnalyzeText(req.Text))
}

func (s *Server) handleChunkPreview(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeText(w, r)
	if !ok {
		return
	}
	chunks, err := s.indexer.Preview(req.Text, req.Filename, indexer.Options{
		Strategy:     req.Strategy,
		ChunkSize:    req.ChunkSize,
		ChunkOverlap: req.ChunkOverlap,
	})
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"chunks": chunks, "count": len(chunks)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.indexer.Status(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{"index": st}
	if s.fullConfig != nil {
		s.configMu.Lock()
		cfg := s.fullConfig
		resp["config"] = map[string]interface{}{
			"vector_store":       cfg.Vector.Type,
			"embedding_backends": cfg.Embedding.Backends,
			"embedding_model":    cfg.Embedding.Model,
			"extraction_backend": cfg.Extraction.Backend,
			"llm_model":          cfg.LLM.Model,
			"chunking_strategy":  cfg.Chunking.Strategy,
			"chunk_size":         cfg.Chunking.ChunkSize,
			"chunk_overlap":      cfg.Chunking.ChunkOverlap,
			"retrieval_strategy": cfg.Retrieval.DefaultStrategy,
		}
		diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath, cfg.Vector.Path)
		s.configMu.Unlock()
		if err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" || s.fullConfig == nil {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.fullConfig.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.fullConfig); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
