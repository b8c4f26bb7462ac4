// Package httpapi exposes the synchronization engine over HTTP for the
// notebook frontend: project CRUD, dataset upload and download, and a status
// probe reporting remote reachability.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"datamentor/internal/dataset"
	"datamentor/internal/sync"
)

// maxUploadBytes caps dataset payload sizes accepted over HTTP.
const maxUploadBytes = 64 << 20

// Handler provides HTTP access to one user's sync engine.
type Handler struct {
	Engine *sync.Engine
	Log    *zap.SugaredLogger
}

// NewHandler constructs the API handler. logger may be nil.
func NewHandler(engine *sync.Engine, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{Engine: engine, Log: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Engine == nil {
		writeError(w, http.StatusInternalServerError, "sync engine not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/v1/status" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, h.Engine.Status())
	case path == "/api/v1/projects":
		switch r.Method {
		case http.MethodGet:
			h.handleListProjects(w, r)
		case http.MethodPost:
			h.handleCreateProject(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case strings.HasPrefix(path, "/api/v1/projects/"):
		h.handleProject(w, r, strings.TrimPrefix(path, "/api/v1/projects/"))
	case strings.HasPrefix(path, "/api/v1/datasets/"):
		h.handleDataset(w, r, strings.TrimPrefix(path, "/api/v1/datasets/"))
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Engine.ListProjects(r.Context())
	if err != nil {
		h.Log.Errorw("list projects failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	if projects == nil {
		projects = []dataset.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// handleCreateProject accepts a multipart upload ("file" part, optional
// "name" field) and creates the dataset and its project in one step.
func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer func() { _ = file.Close() }()
	payload, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if len(payload) > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}
	d, err := h.Engine.SaveDataset(r.Context(), payload, header.Filename)
	if err != nil {
		h.Log.Errorw("save dataset failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store dataset")
		return
	}
	p, err := h.Engine.CreateProject(r.Context(), name, d.ID)
	if err != nil {
		h.Log.Errorw("create project failed", "dataset", d.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create project")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"project": p, "dataset": d})
}

func (h *Handler) handleProject(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		p, err := h.Engine.GetProject(r.Context(), id)
		if err != nil {
			h.writeProjectError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"project": p})
	case http.MethodPut:
		var p dataset.Project
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid project payload")
			return
		}
		if p.ID == "" {
			p.ID = id
		}
		if p.ID != id {
			writeError(w, http.StatusBadRequest, "project id mismatch")
			return
		}
		if err := h.Engine.SaveProject(r.Context(), p); err != nil {
			h.Log.Errorw("save project failed", "project", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to save project")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"project": p})
	case http.MethodDelete:
		datasetID := r.URL.Query().Get("dataset_id")
		if datasetID == "" {
			if p, err := h.Engine.GetProject(r.Context(), id); err == nil {
				datasetID = p.DatasetID
			}
		}
		if err := h.Engine.DeleteProject(r.Context(), id, datasetID); err != nil {
			h.Log.Errorw("delete project failed", "project", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to delete project")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleDataset serves raw payload bytes. GET resolves through the full
// fallback chain; query parameters project_id and name feed the recovery
// search. PUT replaces the payload under the same id (the save-cleaned-result
// path).
func (h *Handler) handleDataset(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		res, err := h.Engine.Resolve(r.Context(), id, r.URL.Query().Get("project_id"), r.URL.Query().Get("name"))
		if err != nil {
			if sync.IsDatasetNotFound(err) {
				writeError(w, http.StatusNotFound, "dataset not found")
				return
			}
			h.Log.Errorw("resolve dataset failed", "dataset", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to resolve dataset")
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("X-Dataset-Name", res.Name)
		w.Header().Set("X-Dataset-Local", boolHeader(res.IsLocal))
		if res.RecoveredDatasetID != "" {
			w.Header().Set("X-Recovered-Dataset-Id", res.RecoveredDatasetID)
		}
		_, _ = w.Write(res.Data)
	case http.MethodPut:
		name := r.URL.Query().Get("name")
		if name == "" {
			writeError(w, http.StatusBadRequest, "missing name query parameter")
			return
		}
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read payload")
			return
		}
		if len(payload) > maxUploadBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "payload exceeds size limit")
			return
		}
		d, err := h.Engine.ReplaceDataset(r.Context(), id, payload, name)
		if err != nil {
			h.Log.Errorw("replace dataset failed", "dataset", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to replace dataset")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"dataset": d})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) writeProjectError(w http.ResponseWriter, err error) {
	var notFound sync.ErrProjectNotFound
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	h.Log.Errorw("project lookup failed", "error", err)
	writeError(w, http.StatusInternalServerError, "failed to load project")
}

func boolHeader(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
