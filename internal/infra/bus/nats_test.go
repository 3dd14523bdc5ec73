package bus

import (
	"errors"
	"testing"
)

func TestPublishOnUninitializedBus(t *testing.T) {
	var b *Bus
	if err := b.Publish(SubjectRunTrigger, RunTrigger{}); !errors.Is(err, errNilBus) {
		t.Fatalf("expected errNilBus, got %v", err)
	}
	empty := &Bus{}
	if err := empty.Publish(SubjectRunEvents, RunEvent{}); !errors.Is(err, errNilBus) {
		t.Fatalf("expected errNilBus on nil conn, got %v", err)
	}
}

func TestSubscribeOnUninitializedBus(t *testing.T) {
	empty := &Bus{}
	if _, err := empty.SubscribeRunEvents(func(RunEvent) {}); !errors.Is(err, errNilBus) {
		t.Fatalf("expected errNilBus, got %v", err)
	}
}

func TestCloseNilBusIsSafe(t *testing.T) {
	var b *Bus
	b.Close()
	(&Bus{}).Close()
}
