// Package bus is a thin JSON event layer over NATS. Run triggers and
// interactive graph edits travel as commands; run status changes come back
// as events the gateway fans out to stream subscribers.
package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/flowplane/flowplane/core/graph"
	"github.com/flowplane/flowplane/core/history"
	"github.com/flowplane/flowplane/internal/infra/logging"
)

const (
	// SubjectRunTrigger carries run-start commands to the executor.
	SubjectRunTrigger = "flowplane.run.trigger"
	// SubjectRunEvents carries run status changes back from the executor.
	SubjectRunEvents = "flowplane.run.events"
	// SubjectEdgeDelete carries interactive edge-delete commands.
	SubjectEdgeDelete = "flowplane.graph.edge.delete"
)

var (
	errNilBus     = errors.New("nats bus not initialized")
	errEmptyTopic = errors.New("empty subject")
)

// RunTrigger is the command published when a run is accepted. The core
// does not interpret execution; the executor picks this up and produces
// records the history engine later observes.
type RunTrigger struct {
	RunID       string         `json:"run_id"`
	WorkflowID  string         `json:"workflow_id"`
	VersionID   int            `json:"version_id"`
	Inputs      map[string]any `json:"inputs,omitempty"`
	Source      history.Source `json:"source"`
	TriggeredAt time.Time      `json:"triggered_at"`
}

// RunEvent is a status change announced by the executor.
type RunEvent struct {
	RunID      string            `json:"run_id"`
	WorkflowID string            `json:"workflow_id"`
	Status     history.RunStatus `json:"status"`
	At         time.Time         `json:"at"`
}

// Bus wraps a NATS connection and speaks JSON envelopes.
type Bus struct {
	nc *nats.Conn
}

// New dials NATS at the provided URL.
func New(url string) (*Bus, error) {
	opts := []nats.Option{
		nats.Name("flowplane-bus"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.Error("bus", "disconnected from NATS", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info("bus", "reconnected to NATS", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &Bus{nc: nc}, nil
}

// IsConnected reports whether the NATS connection is currently up.
func (b *Bus) IsConnected() bool {
	return b != nil && b.nc != nil && b.nc.IsConnected()
}

// Status returns the NATS connection state as a string.
func (b *Bus) Status() string {
	if b == nil || b.nc == nil {
		return "DISCONNECTED"
	}
	return b.nc.Status().String()
}

// ConnectedURL returns the server URL the connection settled on.
func (b *Bus) ConnectedURL() string {
	if b == nil || b.nc == nil {
		return ""
	}
	return b.nc.ConnectedUrl()
}

// Close shuts down the underlying NATS connection.
func (b *Bus) Close() {
	if b != nil && b.nc != nil {
		b.nc.Close()
	}
}

// Publish sends a JSON-encoded payload on a subject.
func (b *Bus) Publish(subject string, v any) error {
	if b == nil || b.nc == nil {
		return errNilBus
	}
	if subject == "" {
		return errEmptyTopic
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.nc.Publish(subject, data)
}

// PublishRunTrigger announces an accepted run.
func (b *Bus) PublishRunTrigger(t RunTrigger) error {
	return b.Publish(SubjectRunTrigger, t)
}

// PublishEdgeDelete forwards an interactive edge deletion to the model
// owner. Deletion intent is a command on the bus, never a callback stored
// in edge data.
func (b *Bus) PublishEdgeDelete(cmd graph.EdgeDeleteCommand) error {
	return b.Publish(SubjectEdgeDelete, cmd)
}

// SubscribeRunEvents delivers decoded run events to the handler. Messages
// that fail to decode are logged and dropped.
func (b *Bus) SubscribeRunEvents(handler func(RunEvent)) (*nats.Subscription, error) {
	if b == nil || b.nc == nil {
		return nil, errNilBus
	}
	return b.nc.Subscribe(SubjectRunEvents, func(msg *nats.Msg) {
		var ev RunEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logging.Error("bus", "bad run event", "error", err)
			return
		}
		handler(ev)
	})
}

// SubscribeEdgeDeletes delivers decoded edge-delete commands.
func (b *Bus) SubscribeEdgeDeletes(handler func(graph.EdgeDeleteCommand)) (*nats.Subscription, error) {
	if b == nil || b.nc == nil {
		return nil, errNilBus
	}
	return b.nc.Subscribe(SubjectEdgeDelete, func(msg *nats.Msg) {
		var cmd graph.EdgeDeleteCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			logging.Error("bus", "bad edge delete command", "error", err)
			return
		}
		handler(cmd)
	})
}
