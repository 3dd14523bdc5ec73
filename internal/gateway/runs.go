package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/flowplane/flowplane/core/graph"
	"github.com/flowplane/flowplane/core/history"
	"github.com/flowplane/flowplane/core/workflow"
	"github.com/flowplane/flowplane/internal/infra/bus"
	"github.com/flowplane/flowplane/internal/infra/logging"
	"github.com/flowplane/flowplane/internal/infra/schema"
)

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	wfID := r.PathValue("id")
	if wfID == "" {
		http.Error(w, "missing workflow id", http.StatusBadRequest)
		return
	}
	var inputs map[string]any
	if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if inputs == nil {
		inputs = map[string]any{}
	}

	wf, err := s.store.Get(r.Context(), wfID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if len(wf.InputSchema) > 0 {
		if err := schema.ValidateMap(wf.InputSchema, inputs); err != nil {
			http.Error(w, fmt.Sprintf("input validation failed: %v", err), http.StatusBadRequest)
			return
		}
	}

	source := history.Source(r.URL.Query().Get("source"))
	switch source {
	case history.SourceWeb, history.SourceAgent, history.SourceAPI:
	case "":
		source = history.SourceAPI
	default:
		http.Error(w, fmt.Sprintf("unknown source %q", source), http.StatusBadRequest)
		return
	}

	rec := &history.ExecutionRecord{
		ID:         uuid.NewString(),
		WorkflowID: wf.ID,
		VersionID:  wf.CurrentVersion,
		Status:     history.StatusRunning,
		CreatedAt:  time.Now().UTC(),
		Source:     source,
		Inputs:     inputs,
	}
	if err := s.runs.Save(r.Context(), rec); err != nil {
		writeStoreError(w, err)
		return
	}
	if err := s.store.IncrementRuns(r.Context(), wf.ID); err != nil {
		logging.Error("gateway", "run counter bump failed", "workflow", wf.ID, "error", err)
	}
	if s.pub != nil {
		trigger := bus.RunTrigger{
			RunID:       rec.ID,
			WorkflowID:  wf.ID,
			VersionID:   rec.VersionID,
			Inputs:      inputs,
			Source:      source,
			TriggeredAt: rec.CreatedAt,
		}
		if err := s.pub.PublishRunTrigger(trigger); err != nil {
			logging.Error("gateway", "run trigger publish failed", "run", rec.ID, "error", err)
		}
	}
	logging.Info("gateway", "run started", "workflow", wf.ID, "run", rec.ID, "version", rec.VersionID)
	writeJSON(w, http.StatusCreated, map[string]any{"run_id": rec.ID, "version_id": rec.VersionID})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	if runID == "" {
		http.Error(w, "missing run id", http.StatusBadRequest)
		return
	}
	rec, err := s.runs.Get(r.Context(), runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleQueryRuns serves one page of the execution log. Each workflow's
// history panel holds a supersession guard: if a newer query for the same
// workflow completed while this one ran, the stale page is discarded and
// the client is told to retry.
func (s *Server) handleQueryRuns(w http.ResponseWriter, r *http.Request) {
	wfID := r.PathValue("id")
	if wfID == "" {
		http.Error(w, "missing workflow id", http.StatusBadRequest)
		return
	}
	q := history.Query{
		WorkflowID: wfID,
		Range:      history.TimeRange(r.URL.Query().Get("range")),
		Status:     r.URL.Query().Get("status"),
		PageSize:   s.defaults.PageSize,
	}
	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
		q.Page = page
	}
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			http.Error(w, "invalid page_size", http.StatusBadRequest)
			return
		}
		q.PageSize = size
	}

	view := s.view(wfID)
	ticket := view.Issue()
	start := time.Now()
	result, err := s.engine.Query(r.Context(), q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.histMetrics.ObserveQuery(string(q.Range), q.Status, time.Since(start).Seconds())
	if !view.Apply(ticket) {
		s.histMetrics.IncStaleDiscarded()
		http.Error(w, "superseded by a newer query", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	wfID := r.PathValue("id")
	if wfID == "" {
		http.Error(w, "missing workflow id", http.StatusBadRequest)
		return
	}
	cols, err := s.columns.Resolve(r.Context(), wfID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"columns": cols})
}

// handleDeleteEdge applies an interactive edge deletion to the stored
// config and announces it on the bus. The edit works on the draft config
// and does not touch version history.
func (s *Server) handleDeleteEdge(w http.ResponseWriter, r *http.Request) {
	wfID := r.PathValue("id")
	edgeID := r.PathValue("edge_id")
	if wfID == "" || edgeID == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	wf, err := s.store.Get(r.Context(), wfID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	cmd := graph.EdgeDeleteCommand{
		WorkflowID:  wfID,
		EdgeID:      edgeID,
		RequestedBy: r.URL.Query().Get("requested_by"),
		RequestedAt: time.Now().UTC(),
	}
	updated, err := s.applyEdgeDelete(r.Context(), wf, cmd)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if s.pub != nil {
		if err := s.pub.PublishEdgeDelete(cmd); err != nil {
			logging.Error("gateway", "edge delete publish failed", "workflow", wfID, "edge", edgeID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, updated)
}

// applyEdgeDelete executes an edge-delete command against the stored
// draft config. Removing an already absent edge is a no-op.
func (s *Server) applyEdgeDelete(ctx context.Context, wf *workflow.Workflow, cmd graph.EdgeDeleteCommand) (*workflow.Workflow, error) {
	model := graph.NewModel(wf.Config)
	cmd.Apply(model)
	cfg := model.Config()
	return s.store.Update(ctx, wf.ID, workflow.UpdatePayload{Config: &cfg})
}

// ApplyEdgeDeleteCommand handles an edge-delete command arriving over the
// bus from another surface. The gateway owns the stored model, so bus
// commands land here the same way HTTP deletions do.
func (s *Server) ApplyEdgeDeleteCommand(cmd graph.EdgeDeleteCommand) {
	ctx := context.Background()
	wf, err := s.store.Get(ctx, cmd.WorkflowID)
	if err != nil {
		logging.Error("gateway", "edge delete command for unknown workflow", "workflow", cmd.WorkflowID, "error", err)
		return
	}
	if _, err := s.applyEdgeDelete(ctx, wf, cmd); err != nil {
		logging.Error("gateway", "edge delete command apply failed", "workflow", cmd.WorkflowID, "edge", cmd.EdgeID, "error", err)
	}
}
