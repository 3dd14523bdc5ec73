package workflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flowplane/flowplane/core/graph"
	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and embedded callers.
// It mirrors the Redis store's semantics exactly, including append-only
// version history.
type MemoryStore struct {
	mu        sync.Mutex
	workflows map[string]*Workflow
	versions  map[string][]Version
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows: make(map[string]*Workflow),
		versions:  make(map[string][]Version),
	}
}

var _ Store = (*MemoryStore)(nil)

// Create persists a new draft workflow with its initial config as version 0.
func (s *MemoryStore) Create(ctx context.Context, p CreatePayload) (*Workflow, error) {
	if err := validateCreate(p); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	wf := &Workflow{
		ID:             uuid.NewString(),
		UUID:           uuid.NewString(),
		Name:           p.Name,
		Description:    p.Description,
		WorkspaceID:    p.WorkspaceID,
		CreatedBy:      p.CreatedBy,
		Status:         StatusDraft,
		CurrentVersion: 0,
		Config:         cloneConfig(p.Config),
		Inputs:         cloneInputs(p.Inputs),
		InputSchema:    p.InputSchema,
		Public:         p.Public,
		Color:          p.Color,
		Emoji:          p.Emoji,
		Readme:         p.Readme,
		LastEdited:     now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[wf.ID] = wf
	s.versions[wf.ID] = []Version{{VersionID: 0, Config: cloneConfig(p.Config), CreatedAt: now}}
	return cloneWorkflow(wf), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, notFoundf("workflow %s", id)
	}
	return cloneWorkflow(wf), nil
}

func (s *MemoryStore) List(ctx context.Context, workspaceID string, limit int64) ([]*Workflow, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Workflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		if workspaceID != "" && wf.WorkspaceID != workspaceID {
			continue
		}
		out = append(out, cloneWorkflow(wf))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, p UpdatePayload) (*Workflow, error) {
	if err := validateUpdate(p); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, notFoundf("workflow %s", id)
	}
	wf.apply(p)
	wf.UpdatedAt = time.Now().UTC()
	return cloneWorkflow(wf), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[id]; !ok {
		return notFoundf("workflow %s", id)
	}
	delete(s.workflows, id)
	delete(s.versions, id)
	return nil
}

// Duplicate copies the current config into a fresh draft workflow.
func (s *MemoryStore) Duplicate(ctx context.Context, id string) (*Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.workflows[id]
	if !ok {
		return nil, notFoundf("workflow %s", id)
	}
	now := time.Now().UTC()
	dup := cloneWorkflow(src)
	dup.ID = uuid.NewString()
	dup.UUID = uuid.NewString()
	dup.Name = src.Name + " (Copy)"
	dup.Status = StatusDraft
	dup.CurrentVersion = 0
	dup.TotalRuns = 0
	dup.LastEdited = now
	dup.CreatedAt = now
	dup.UpdatedAt = now
	s.workflows[dup.ID] = dup
	s.versions[dup.ID] = []Version{{VersionID: 0, Config: cloneConfig(src.Config), CreatedAt: now}}
	return cloneWorkflow(dup), nil
}

// Publish moves draft to published. Publishing a published workflow is a
// no-op returning current state; nothing moves it back to draft.
func (s *MemoryStore) Publish(ctx context.Context, id string) (*Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, notFoundf("workflow %s", id)
	}
	if wf.Status != StatusPublished {
		wf.Status = StatusPublished
		wf.UpdatedAt = time.Now().UTC()
	}
	return cloneWorkflow(wf), nil
}

func (s *MemoryStore) SaveVersion(ctx context.Context, id string, cfg graph.Config) (*Workflow, error) {
	if err := graph.CheckConfig(cfg); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, notFoundf("workflow %s", id)
	}
	now := time.Now().UTC()
	next := maxVersionID(s.versions[id]) + 1
	s.versions[id] = append(s.versions[id], Version{VersionID: next, Config: cloneConfig(cfg), CreatedAt: now})
	wf.CurrentVersion = next
	wf.Config = cloneConfig(cfg)
	wf.LastEdited = now
	wf.UpdatedAt = now
	return cloneWorkflow(wf), nil
}

func (s *MemoryStore) ListVersions(ctx context.Context, id string) ([]Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[id]; !ok {
		return nil, notFoundf("workflow %s", id)
	}
	history := s.versions[id]
	out := make([]Version, len(history))
	for i, v := range history {
		out[i] = Version{VersionID: v.VersionID, Config: cloneConfig(v.Config), CreatedAt: v.CreatedAt}
	}
	return out, nil
}

func (s *MemoryStore) GetVersion(ctx context.Context, id string, versionID int) (*Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[id]; !ok {
		return nil, notFoundf("workflow %s", id)
	}
	for _, v := range s.versions[id] {
		if v.VersionID == versionID {
			out := Version{VersionID: v.VersionID, Config: cloneConfig(v.Config), CreatedAt: v.CreatedAt}
			return &out, nil
		}
	}
	return nil, notFoundf("workflow %s version %d", id, versionID)
}

// RestoreVersion appends a new version whose config equals the named
// historical snapshot and makes it current. The historical entry itself is
// never touched.
func (s *MemoryStore) RestoreVersion(ctx context.Context, id string, versionID int) (*Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, notFoundf("workflow %s", id)
	}
	var src *Version
	for i := range s.versions[id] {
		if s.versions[id][i].VersionID == versionID {
			src = &s.versions[id][i]
			break
		}
	}
	if src == nil {
		return nil, notFoundf("workflow %s version %d", id, versionID)
	}
	now := time.Now().UTC()
	next := maxVersionID(s.versions[id]) + 1
	s.versions[id] = append(s.versions[id], Version{VersionID: next, Config: cloneConfig(src.Config), CreatedAt: now})
	wf.CurrentVersion = next
	wf.Config = cloneConfig(src.Config)
	wf.LastEdited = now
	wf.UpdatedAt = now
	return cloneWorkflow(wf), nil
}

// SetDefaultVersion repoints CurrentVersion at an existing history entry
// without growing history.
func (s *MemoryStore) SetDefaultVersion(ctx context.Context, id string, versionID int) (*Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, notFoundf("workflow %s", id)
	}
	var src *Version
	for i := range s.versions[id] {
		if s.versions[id][i].VersionID == versionID {
			src = &s.versions[id][i]
			break
		}
	}
	if src == nil {
		return nil, notFoundf("workflow %s version %d", id, versionID)
	}
	wf.CurrentVersion = versionID
	wf.Config = cloneConfig(src.Config)
	wf.UpdatedAt = time.Now().UTC()
	return cloneWorkflow(wf), nil
}

func (s *MemoryStore) IncrementRuns(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return notFoundf("workflow %s", id)
	}
	wf.TotalRuns++
	return nil
}

func cloneWorkflow(wf *Workflow) *Workflow {
	out := *wf
	out.Config = cloneConfig(wf.Config)
	out.Inputs = cloneInputs(wf.Inputs)
	if wf.InputSchema != nil {
		schema := make(map[string]any, len(wf.InputSchema))
		for k, v := range wf.InputSchema {
			schema[k] = v
		}
		out.InputSchema = schema
	}
	return &out
}

func cloneConfig(cfg graph.Config) graph.Config {
	return graph.NewModel(cfg).Config()
}

func cloneInputs(in []InputField) []InputField {
	if in == nil {
		return nil
	}
	out := make([]InputField, len(in))
	copy(out, in)
	return out
}
