// Package workflow owns the versioned workflow entity: its draft/publish
// lifecycle and its append-only version history. The graph payload of each
// version comes from core/graph; run history lives in core/history.
package workflow

import (
	"time"

	"github.com/flowplane/flowplane/core/graph"
)

// Status captures the publication lifecycle of a workflow.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// InputField is one declared input of a workflow, in declaration order.
// Field names are underscore-separated identifiers; display labels are
// derived from them at query time.
type InputField struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// Workflow is the persisted definition.
type Workflow struct {
	ID             string         `json:"id"`
	UUID           string         `json:"uuid"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	WorkspaceID    string         `json:"workspace_id,omitempty"`
	CreatedBy      string         `json:"created_by,omitempty"`
	Status         Status         `json:"status"`
	CurrentVersion int            `json:"current_version"`
	Config         graph.Config   `json:"config"`
	Inputs         []InputField   `json:"inputs,omitempty"`
	InputSchema    map[string]any `json:"input_schema,omitempty"`
	Public         bool           `json:"public"`
	Color          string         `json:"color,omitempty"`
	Emoji          string         `json:"emoji,omitempty"`
	Readme         string         `json:"readme,omitempty"`
	TotalRuns      int64          `json:"total_runs"`
	LastEdited     time.Time      `json:"last_edited"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Version is one immutable snapshot in a workflow's history. Entries are
// append-only: restore creates a new entry and set-default only repoints
// the workflow's CurrentVersion.
type Version struct {
	VersionID int          `json:"version_id"`
	Config    graph.Config `json:"config"`
	CreatedAt time.Time    `json:"created_at"`
}

// CreatePayload carries the fields a caller supplies when creating a
// workflow. Everything else is assigned by the store.
type CreatePayload struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	WorkspaceID string         `json:"workspace_id,omitempty"`
	CreatedBy   string         `json:"created_by,omitempty"`
	Config      graph.Config   `json:"config"`
	Inputs      []InputField   `json:"inputs,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
	Public      bool           `json:"public,omitempty"`
	Color       string         `json:"color,omitempty"`
	Emoji       string         `json:"emoji,omitempty"`
	Readme      string         `json:"readme,omitempty"`
}

// UpdatePayload is a partial merge into the live workflow. Nil fields are
// left untouched. Status is deliberately absent: publication moves through
// Publish only, and nothing moves a published workflow back to draft.
type UpdatePayload struct {
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	Public      *bool           `json:"public,omitempty"`
	Color       *string         `json:"color,omitempty"`
	Emoji       *string         `json:"emoji,omitempty"`
	Readme      *string         `json:"readme,omitempty"`
	Inputs      *[]InputField   `json:"inputs,omitempty"`
	InputSchema *map[string]any `json:"input_schema,omitempty"`
	Config      *graph.Config   `json:"config,omitempty"`
}

func (w *Workflow) apply(p UpdatePayload) {
	if p.Name != nil {
		w.Name = *p.Name
	}
	if p.Description != nil {
		w.Description = *p.Description
	}
	if p.Public != nil {
		w.Public = *p.Public
	}
	if p.Color != nil {
		w.Color = *p.Color
	}
	if p.Emoji != nil {
		w.Emoji = *p.Emoji
	}
	if p.Readme != nil {
		w.Readme = *p.Readme
	}
	if p.Inputs != nil {
		w.Inputs = *p.Inputs
	}
	if p.InputSchema != nil {
		w.InputSchema = *p.InputSchema
	}
	if p.Config != nil {
		w.Config = *p.Config
	}
}

// maxVersionID returns the highest version id in history, -1 when empty.
func maxVersionID(history []Version) int {
	max := -1
	for _, v := range history {
		if v.VersionID > max {
			max = v.VersionID
		}
	}
	return max
}
