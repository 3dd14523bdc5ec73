package graph

import "time"

// EdgeDeleteCommand is the emitted form of an interactive edge deletion.
// The editor surface owns no graph mutation logic; it publishes this
// command and the owning model applies it as a plain RemoveEdge.
type EdgeDeleteCommand struct {
	WorkflowID  string    `json:"workflow_id"`
	EdgeID      string    `json:"edge_id"`
	RequestedBy string    `json:"requested_by,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// Apply executes the command against the model it belongs to.
func (c EdgeDeleteCommand) Apply(m *Model) {
	m.RemoveEdge(c.EdgeID)
}
