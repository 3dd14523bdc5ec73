package history

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var (
	// ErrRecordNotFound marks an unknown execution record id.
	ErrRecordNotFound = errors.New("execution record not found")

	errInvalidRecord = errors.New("execution record requires id and workflow id")
)

// RunRepository abstracts the execution log backing store. The query
// engine depends on this interface only, never on process-wide state; the
// external executor writes through the same interface.
type RunRepository interface {
	Save(ctx context.Context, rec *ExecutionRecord) error
	Get(ctx context.Context, id string) (*ExecutionRecord, error)
	// ListByWorkflow returns every record for a workflow, newest first.
	ListByWorkflow(ctx context.Context, workflowID string) ([]*ExecutionRecord, error)
	DeleteByWorkflow(ctx context.Context, workflowID string) error
}

// MemoryRepository is an in-process RunRepository used in tests and as the
// injected double for the engine.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]*ExecutionRecord
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*ExecutionRecord)}
}

var _ RunRepository = (*MemoryRepository)(nil)

func (r *MemoryRepository) Save(ctx context.Context, rec *ExecutionRecord) error {
	if rec == nil || rec.ID == "" || rec.WorkflowID == "" {
		return errInvalidRecord
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *rec
	r.records[rec.ID] = &clone
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*ExecutionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	clone := *rec
	return &clone, nil
}

func (r *MemoryRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*ExecutionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ExecutionRecord, 0)
	for _, rec := range r.records {
		if rec.WorkflowID != workflowID {
			continue
		}
		clone := *rec
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) DeleteByWorkflow(ctx context.Context, workflowID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rec := range r.records {
		if rec.WorkflowID == workflowID {
			delete(r.records, id)
		}
	}
	return nil
}
