package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flowplane/flowplane/core/workflow"
)

// NoValue is rendered when a record carries no value for a column. A
// missing input key is ordinary, never an error.
const NoValue = "—"

// ColumnKind tags the two column variants: the fixed system set and the
// per-workflow input columns.
type ColumnKind string

const (
	KindSystem ColumnKind = "system"
	KindInput  ColumnKind = "input"
)

// Column is one displayable field of the execution log. System columns
// are a closed set with dedicated renderers; input columns share a single
// look-up-by-key renderer.
type Column struct {
	ID       string     `json:"id"`
	Label    string     `json:"label"`
	Required bool       `json:"required"`
	Kind     ColumnKind `json:"kind"`

	render func(rec *ExecutionRecord) string
}

// Render produces the display value of this column for a record.
func (c Column) Render(rec *ExecutionRecord) string {
	if c.render == nil || rec == nil {
		return NoValue
	}
	return c.render(rec)
}

// System column ids, in canonical display order.
const (
	ColumnStatus    = "status"
	ColumnCreatedAt = "createdAt"
	ColumnRuntime   = "runtime"
	ColumnTasks     = "tasks"
	ColumnSource    = "source"
)

// systemColumns returns the fixed set. Status and createdAt can never be
// removed from a selection. Adding a system column means adding exactly
// one entry here with its renderer.
func systemColumns() []Column {
	return []Column{
		{ID: ColumnStatus, Label: "Status", Required: true, Kind: KindSystem,
			render: func(rec *ExecutionRecord) string { return string(rec.Status) }},
		{ID: ColumnCreatedAt, Label: "Created At", Required: true, Kind: KindSystem,
			render: func(rec *ExecutionRecord) string { return rec.CreatedAt.UTC().Format(time.RFC3339) }},
		{ID: ColumnRuntime, Label: "Runtime", Kind: KindSystem,
			render: renderRuntime},
		{ID: ColumnTasks, Label: "Tasks", Kind: KindSystem,
			render: func(rec *ExecutionRecord) string { return fmt.Sprintf("%d", rec.TaskCount) }},
		{ID: ColumnSource, Label: "Source", Kind: KindSystem,
			render: func(rec *ExecutionRecord) string { return string(rec.Source) }},
	}
}

func renderRuntime(rec *ExecutionRecord) string {
	if rec.RuntimeSec == nil {
		return NoValue
	}
	d := time.Duration(*rec.RuntimeSec * float64(time.Second)).Round(time.Second)
	return d.String()
}

// inputColumn builds the generic look-up-by-key variant for one declared
// input field.
func inputColumn(field workflow.InputField) Column {
	name := field.Name
	return Column{
		ID:    name,
		Label: titleCase(name),
		Kind:  KindInput,
		render: func(rec *ExecutionRecord) string {
			v, ok := rec.Inputs[name]
			if !ok || v == nil {
				return NoValue
			}
			return fmt.Sprintf("%v", v)
		},
	}
}

// titleCase turns an underscore-separated identifier into a display label:
// each word capitalized, words joined with spaces.
func titleCase(name string) string {
	words := strings.Split(name, "_")
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		out = append(out, strings.ToUpper(w[:1])+w[1:])
	}
	return strings.Join(out, " ")
}

// Resolver derives the ordered, deduplicated column set for a workflow.
// Output depends only on the workflow's declared inputs, never on filter
// or selection state, so two calls against unchanged state are identical.
type Resolver struct {
	store workflow.Store
}

// NewResolver builds a resolver over a workflow store.
func NewResolver(store workflow.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the system columns in canonical order followed by one
// input column per declared field, in declaration order. Duplicate ids are
// dropped, first occurrence wins. Two distinct fields may title-case to
// the same label; they stay distinct columns keyed by field id.
func (r *Resolver) Resolve(ctx context.Context, workflowID string) ([]Column, error) {
	wf, err := r.store.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	cols := systemColumns()
	seen := make(map[string]bool, len(cols)+len(wf.Inputs))
	for _, c := range cols {
		seen[c.ID] = true
	}
	for _, field := range wf.Inputs {
		if field.Name == "" || seen[field.Name] {
			continue
		}
		seen[field.Name] = true
		cols = append(cols, inputColumn(field))
	}
	return cols, nil
}
