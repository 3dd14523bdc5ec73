package workflow

import (
	"context"

	"github.com/flowplane/flowplane/core/graph"
	"github.com/flowplane/flowplane/internal/infra/schema"
)

// Store is the single-writer persistence contract for workflows and their
// version history. Every operation either succeeds with the documented
// shape or fails with ErrNotFound / ErrValidation / graph.ErrIntegrity;
// partially applied state is never observable.
type Store interface {
	Create(ctx context.Context, p CreatePayload) (*Workflow, error)
	Get(ctx context.Context, id string) (*Workflow, error)
	List(ctx context.Context, workspaceID string, limit int64) ([]*Workflow, error)
	Update(ctx context.Context, id string, p UpdatePayload) (*Workflow, error)
	Delete(ctx context.Context, id string) error
	Duplicate(ctx context.Context, id string) (*Workflow, error)
	Publish(ctx context.Context, id string) (*Workflow, error)

	// SaveVersion is the only path that grows version history: it appends
	// a snapshot with id max+1 and makes it current.
	SaveVersion(ctx context.Context, id string, cfg graph.Config) (*Workflow, error)
	ListVersions(ctx context.Context, id string) ([]Version, error)
	GetVersion(ctx context.Context, id string, versionID int) (*Version, error)
	RestoreVersion(ctx context.Context, id string, versionID int) (*Workflow, error)
	SetDefaultVersion(ctx context.Context, id string, versionID int) (*Workflow, error)

	// IncrementRuns bumps the run counter when a trigger is accepted.
	IncrementRuns(ctx context.Context, id string) error
}

func validateCreate(p CreatePayload) error {
	if p.Name == "" {
		return validationf("name required")
	}
	if err := graph.CheckConfig(p.Config); err != nil {
		return err
	}
	if err := schema.CheckSchema(p.InputSchema); err != nil {
		return validationf("input schema: %v", err)
	}
	return nil
}

func validateUpdate(p UpdatePayload) error {
	if p.Name != nil && *p.Name == "" {
		return validationf("name cannot be empty")
	}
	if p.Config != nil {
		if err := graph.CheckConfig(*p.Config); err != nil {
			return err
		}
	}
	if p.InputSchema != nil {
		if err := schema.CheckSchema(*p.InputSchema); err != nil {
			return validationf("input schema: %v", err)
		}
	}
	return nil
}
