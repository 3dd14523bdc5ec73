package gateway

import (
	"sync"
	"testing"

	"github.com/flowplane/flowplane/core/graph"
	"github.com/flowplane/flowplane/core/history"
	"github.com/flowplane/flowplane/core/workflow"
	"github.com/flowplane/flowplane/internal/infra/bus"
)

// stubPublisher records published events instead of touching NATS.
type stubPublisher struct {
	mu       sync.Mutex
	triggers []bus.RunTrigger
	deletes  []graph.EdgeDeleteCommand
}

func (p *stubPublisher) PublishRunTrigger(t bus.RunTrigger) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.triggers = append(p.triggers, t)
	return nil
}

func (p *stubPublisher) PublishEdgeDelete(cmd graph.EdgeDeleteCommand) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deletes = append(p.deletes, cmd)
	return nil
}

func newTestServer(t *testing.T) (*Server, *stubPublisher) {
	t.Helper()
	pub := &stubPublisher{}
	s := New(workflow.NewMemoryStore(), history.NewMemoryRepository()).WithPublisher(pub)
	return s, pub
}

func twoNodeConfig() graph.Config {
	return graph.Config{
		Nodes: []graph.Node{{ID: "start"}, {ID: "finish"}},
		Edges: []graph.Edge{{ID: "e1", Source: "start", Target: "finish"}},
	}
}
