// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the document catalog and the ingestion pipeline
// over HTTP. It is a thin adapter: uploads run through the pipeline,
// the resulting filenames are recorded in the registry, and every
// endpoint answers with a {code, msg, data} envelope.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/pdiddy/docbase/internal/ingest"
	"github.com/pdiddy/docbase/internal/registry"
	"github.com/pdiddy/docbase/pkg/types"
)

// maxUploadBytes caps one multipart upload request.
const maxUploadBytes = 512 << 20

// Server wires the registry and the pipeline behind HTTP handlers.
type Server struct {
	reg      registry.Registry
	dir      string
	defGroup string
	cfg      types.IngestConfig
	logger   *slog.Logger
}

// New builds a Server serving the corpus at dir through reg. Uploads
// that name no group attach to srvCfg.Group, or the registry default
// group when that is empty too.
func New(reg registry.Registry, dir string, srvCfg types.ServerConfig, ingCfg types.IngestConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	defGroup := srvCfg.Group
	if defGroup == "" {
		defGroup = registry.DefaultGroup
	}
	return &Server{reg: reg, dir: dir, defGroup: defGroup, cfg: ingCfg, logger: logger}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthz)
	mux.HandleFunc("/v1/documents", s.documents)
	mux.HandleFunc("/v1/documents/upload", s.upload)
	mux.HandleFunc("/v1/groups", s.groups)
	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]string{"status": "ok"})
}

// UploadData is the payload of a successful upload response.
type UploadData struct {
	AlreadyExists []string `json:"already_exist_files"`
	NewlyAdded    []string `json:"new_add_files"`
	Overwritten   []string `json:"overwritten_files"`
	Failed        []string `json:"failed_files,omitempty"`
}

// upload stages a multipart batch, promotes it into the corpus, and
// records the promoted files in the catalog under the requested group.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parsing multipart form: %v", err))
		return
	}
	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "multipart field 'files' is required")
		return
	}

	override, _ := strconv.ParseBool(r.FormValue("override"))
	group := r.FormValue("group")
	if group == "" {
		group = s.defGroup
	}

	var files []ingest.File
	for _, part := range parts {
		f, err := part.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("opening upload %s: %v", part.Filename, err))
			return
		}
		defer f.Close()
		files = append(files, ingest.File{Name: part.Filename, Content: f})
	}

	opts := []ingest.Option{ingest.WithOverride(override), ingest.WithLogger(s.logger)}
	if len(s.cfg.FileTypes) > 0 {
		opts = append(opts, ingest.WithFileTypes(s.cfg.FileTypes))
	}
	if s.cfg.PoolSize > 0 {
		opts = append(opts, ingest.WithPoolSize(s.cfg.PoolSize))
	}
	pipe, err := ingest.NewPipeline(s.dir, opts...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := pipe.Save(files)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Record promoted files. Overwritten paths hash to the same doc_id,
	// so AddFiles leaves their existing rows alone.
	promoted := append(append([]string{}, result.NewlyAdded...), result.Overwritten...)
	paths := make([]string, len(promoted))
	for i, name := range promoted {
		paths[i] = filepath.Join(s.dir, name)
	}
	ctx := r.Context()
	if err := s.reg.AddFiles(ctx, paths, registry.AddOptions{Status: types.StatusSuccess}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.reg.AddGroup(ctx, group); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.reg.AddFilesToGroup(ctx, paths, group); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	data := UploadData{
		AlreadyExists: orEmpty(result.AlreadyExists),
		NewlyAdded:    orEmpty(result.NewlyAdded),
		Overwritten:   orEmpty(result.Overwritten),
	}
	for _, f := range result.Failed {
		s.logger.Error("upload file failed", "file", f.Name, "error", f.Err)
		data.Failed = append(data.Failed, f.Name)
	}
	writeOK(w, data)
}

func (s *Server) documents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := types.Status(r.URL.Query().Get("status"))
	if status != "" && !status.ValidFilter() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status filter %q", status))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	docs, err := s.reg.ListFiles(r.Context(), registry.ListOptions{
		Limit:   limit,
		Status:  status,
		Details: true,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, docs)
}

func (s *Server) groups(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		groups, err := s.reg.ListAllGroups(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeOK(w, groups)
	case http.MethodPost:
		name := r.FormValue("name")
		if name == "" {
			writeError(w, http.StatusBadRequest, "form field 'name' is required")
			return
		}
		if err := s.reg.AddGroup(r.Context(), name); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeOK(w, name)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
