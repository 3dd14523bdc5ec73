package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/flowplane/flowplane/core/graph"
	"github.com/flowplane/flowplane/core/workflow"
	"github.com/flowplane/flowplane/internal/infra/logging"
)

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var payload workflow.CreatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	wf, err := s.store.Create(r.Context(), payload)
	s.storeOutcome("create", err)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	logging.Info("gateway", "workflow created", "id", wf.ID, "name", wf.Name)
	writeJSON(w, http.StatusCreated, wf)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	wf, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	limit := int64(defaultListLimit)
	if s.defaults.ListLimit > 0 {
		limit = int64(s.defaults.ListLimit)
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	list, err := s.store.List(r.Context(), r.URL.Query().Get("workspace_id"), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	var payload workflow.UpdatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	wf, err := s.store.Update(r.Context(), id, payload)
	s.storeOutcome("update", err)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	err := s.store.Delete(r.Context(), id)
	s.storeOutcome("delete", err)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	// Run records of a deleted workflow go with it.
	if err := s.runs.DeleteByWorkflow(r.Context(), id); err != nil {
		logging.Error("gateway", "run history cleanup failed", "workflow", id, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDuplicateWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	dup, err := s.store.Duplicate(r.Context(), id)
	s.storeOutcome("duplicate", err)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	logging.Info("gateway", "workflow duplicated", "source", id, "copy", dup.ID)
	writeJSON(w, http.StatusCreated, dup)
}

func (s *Server) handlePublishWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	wf, err := s.store.Publish(r.Context(), id)
	s.storeOutcome("publish", err)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

type saveVersionRequest struct {
	Config graph.Config `json:"config"`
}

func (s *Server) handleSaveVersion(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	var req saveVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	wf, err := s.store.SaveVersion(r.Context(), id, req.Config)
	s.storeOutcome("save_version", err)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.storeMetrics.IncVersionSaved(id)
	logging.Info("gateway", "version saved", "workflow", id, "version", wf.CurrentVersion)
	writeJSON(w, http.StatusCreated, wf)
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	versions, err := s.store.ListVersions(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	id, versionID, ok := versionPath(w, r)
	if !ok {
		return
	}
	v, err := s.store.GetVersion(r.Context(), id, versionID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleRestoreVersion(w http.ResponseWriter, r *http.Request) {
	id, versionID, ok := versionPath(w, r)
	if !ok {
		return
	}
	wf, err := s.store.RestoreVersion(r.Context(), id, versionID)
	s.storeOutcome("restore_version", err)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	logging.Info("gateway", "version restored", "workflow", id, "from", versionID, "current", wf.CurrentVersion)
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleSetDefaultVersion(w http.ResponseWriter, r *http.Request) {
	id, versionID, ok := versionPath(w, r)
	if !ok {
		return
	}
	wf, err := s.store.SetDefaultVersion(r.Context(), id, versionID)
	s.storeOutcome("set_default_version", err)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

// versionPath extracts and validates the {id}/{version} pair shared by the
// per-version routes. Reports ok=false after writing the error response.
func versionPath(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return "", 0, false
	}
	versionID, err := strconv.Atoi(r.PathValue("version"))
	if err != nil || versionID < 0 {
		http.Error(w, "invalid version id", http.StatusBadRequest)
		return "", 0, false
	}
	return id, versionID, true
}
