package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/flowplane/flowplane/core/graph"
)

func testConfig() graph.Config {
	return graph.Config{
		Nodes: []graph.Node{
			{ID: "in", Type: "input"},
			{ID: "out", Type: "output"},
		},
		Edges: []graph.Edge{
			{ID: "e1", Source: "in", Target: "out"},
		},
	}
}

func testPayload() CreatePayload {
	return CreatePayload{
		Name:        "Invoice approval",
		WorkspaceID: "ws-1",
		CreatedBy:   "user-1",
		Config:      testConfig(),
		Inputs: []InputField{
			{Name: "customer_name", Required: true},
			{Name: "invoice_total"},
		},
	}
}

// Both Store implementations must satisfy the same contract.
func forEachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("redis", func(t *testing.T) {
		srv, err := miniredis.Run()
		if err != nil {
			t.Skipf("miniredis unavailable: %v", err)
		}
		defer srv.Close()
		store, err := NewRedisStore("redis://" + srv.Addr())
		if err != nil {
			t.Fatalf("store init: %v", err)
		}
		defer store.Close()
		fn(t, store)
	})
}

func TestCreateStartsAsDraftVersionZero(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		wf, err := store.Create(ctx, testPayload())
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if wf.Status != StatusDraft || wf.CurrentVersion != 0 {
			t.Fatalf("unexpected initial state: %+v", wf)
		}
		if wf.ID == "" || wf.UUID == "" {
			t.Fatalf("ids not assigned")
		}

		history, err := store.ListVersions(ctx, wf.ID)
		if err != nil {
			t.Fatalf("list versions: %v", err)
		}
		if len(history) != 1 || history[0].VersionID != 0 {
			t.Fatalf("expected single version 0, got %+v", history)
		}
	})
}

func TestCreateRejectsDanglingConfig(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		p := testPayload()
		p.Config.Edges = append(p.Config.Edges, graph.Edge{ID: "e2", Source: "in", Target: "ghost"})
		if _, err := store.Create(context.Background(), p); !errors.Is(err, graph.ErrIntegrity) {
			t.Fatalf("expected integrity error, got %v", err)
		}
	})
}

func TestSaveVersionGrowsHistoryByOne(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		wf, err := store.Create(ctx, testPayload())
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		cfg := testConfig()
		cfg.Nodes = append(cfg.Nodes, graph.Node{ID: "mid", Type: "action"})
		updated, err := store.SaveVersion(ctx, wf.ID, cfg)
		if err != nil {
			t.Fatalf("save version: %v", err)
		}
		if updated.CurrentVersion != 1 {
			t.Fatalf("expected current version 1, got %d", updated.CurrentVersion)
		}
		if updated.LastEdited.Before(wf.LastEdited) {
			t.Fatalf("lastEdited not bumped")
		}

		history, err := store.ListVersions(ctx, wf.ID)
		if err != nil {
			t.Fatalf("list versions: %v", err)
		}
		if len(history) != 2 || history[1].VersionID != 1 {
			t.Fatalf("unexpected history: %+v", history)
		}
		if len(history[1].Config.Nodes) != 3 {
			t.Fatalf("snapshot does not match saved config")
		}
	})
}

func TestRestoreVersionIsAdditive(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		wf, err := store.Create(ctx, testPayload())
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		cfg := testConfig()
		cfg.Nodes = append(cfg.Nodes, graph.Node{ID: "mid", Type: "action"})
		if _, err := store.SaveVersion(ctx, wf.ID, cfg); err != nil {
			t.Fatalf("save version: %v", err)
		}

		before, err := store.GetVersion(ctx, wf.ID, 0)
		if err != nil {
			t.Fatalf("get version 0: %v", err)
		}

		restored, err := store.RestoreVersion(ctx, wf.ID, 0)
		if err != nil {
			t.Fatalf("restore: %v", err)
		}
		if restored.CurrentVersion != 2 {
			t.Fatalf("restore must append, got current %d", restored.CurrentVersion)
		}
		if len(restored.Config.Nodes) != len(before.Config.Nodes) {
			t.Fatalf("restored config mismatch")
		}

		// The historical entry itself is untouched.
		after, err := store.GetVersion(ctx, wf.ID, 0)
		if err != nil {
			t.Fatalf("get version 0 again: %v", err)
		}
		if after.CreatedAt != before.CreatedAt || len(after.Config.Nodes) != len(before.Config.Nodes) {
			t.Fatalf("historical version mutated by restore")
		}

		history, err := store.ListVersions(ctx, wf.ID)
		if err != nil {
			t.Fatalf("list versions: %v", err)
		}
		if len(history) != 3 {
			t.Fatalf("expected 3 versions, got %d", len(history))
		}
	})
}

func TestSetDefaultVersionRepointsOnly(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		wf, err := store.Create(ctx, testPayload())
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := store.SaveVersion(ctx, wf.ID, testConfig()); err != nil {
			t.Fatalf("save version: %v", err)
		}

		updated, err := store.SetDefaultVersion(ctx, wf.ID, 0)
		if err != nil {
			t.Fatalf("set default: %v", err)
		}
		if updated.CurrentVersion != 0 {
			t.Fatalf("expected current 0, got %d", updated.CurrentVersion)
		}
		history, err := store.ListVersions(ctx, wf.ID)
		if err != nil {
			t.Fatalf("list versions: %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("set default must not grow history, got %d entries", len(history))
		}

		if _, err := store.SetDefaultVersion(ctx, wf.ID, 99); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for unknown version, got %v", err)
		}
	})
}

func TestPublishIsOneWayAndIdempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		wf, err := store.Create(ctx, testPayload())
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		pub, err := store.Publish(ctx, wf.ID)
		if err != nil || pub.Status != StatusPublished {
			t.Fatalf("publish: %v %+v", err, pub)
		}
		again, err := store.Publish(ctx, wf.ID)
		if err != nil || again.Status != StatusPublished {
			t.Fatalf("second publish must be a no-op: %v %+v", err, again)
		}
	})
}

func TestUpdateMergesWithoutVersioning(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		wf, err := store.Create(ctx, testPayload())
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		name := "Renamed"
		color := "#ff8800"
		updated, err := store.Update(ctx, wf.ID, UpdatePayload{Name: &name, Color: &color})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.Name != "Renamed" || updated.Color != "#ff8800" {
			t.Fatalf("fields not merged: %+v", updated)
		}
		if updated.Description != wf.Description || updated.WorkspaceID != wf.WorkspaceID {
			t.Fatalf("untouched fields changed")
		}
		history, err := store.ListVersions(ctx, wf.ID)
		if err != nil || len(history) != 1 {
			t.Fatalf("update must not create versions: %v %d", err, len(history))
		}

		if _, err := store.Update(ctx, "missing", UpdatePayload{Name: &name}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDuplicateResetsLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		wf, err := store.Create(ctx, testPayload())
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := store.Publish(ctx, wf.ID); err != nil {
			t.Fatalf("publish: %v", err)
		}
		if err := store.IncrementRuns(ctx, wf.ID); err != nil {
			t.Fatalf("increment: %v", err)
		}

		dup, err := store.Duplicate(ctx, wf.ID)
		if err != nil {
			t.Fatalf("duplicate: %v", err)
		}
		if dup.ID == wf.ID || dup.UUID == wf.UUID {
			t.Fatalf("duplicate must assign fresh ids")
		}
		if dup.Status != StatusDraft || dup.CurrentVersion != 0 || dup.TotalRuns != 0 {
			t.Fatalf("duplicate lifecycle not reset: %+v", dup)
		}
		history, err := store.ListVersions(ctx, dup.ID)
		if err != nil || len(history) != 1 {
			t.Fatalf("duplicate history: %v %d", err, len(history))
		}
	})
}

func TestDeleteRemovesHistory(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		wf, err := store.Create(ctx, testPayload())
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := store.Delete(ctx, wf.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := store.Get(ctx, wf.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
		if _, err := store.ListVersions(ctx, wf.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for versions after delete, got %v", err)
		}
		if err := store.Delete(ctx, wf.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound on double delete, got %v", err)
		}
	})
}

func TestListScopedByWorkspace(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		a := testPayload()
		b := testPayload()
		b.Name = "Other"
		b.WorkspaceID = "ws-2"
		if _, err := store.Create(ctx, a); err != nil {
			t.Fatalf("create a: %v", err)
		}
		if _, err := store.Create(ctx, b); err != nil {
			t.Fatalf("create b: %v", err)
		}

		all, err := store.List(ctx, "", 10)
		if err != nil || len(all) != 2 {
			t.Fatalf("list all: %v %d", err, len(all))
		}
		scoped, err := store.List(ctx, "ws-2", 10)
		if err != nil || len(scoped) != 1 || scoped[0].Name != "Other" {
			t.Fatalf("scoped list: %v %+v", err, scoped)
		}
	})
}

func TestConcurrentSaveVersionSerialized(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		wf, err := store.Create(ctx, testPayload())
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		const writers = 10
		errs := make(chan error, writers)
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			cfg := testConfig()
			cfg.Nodes = append(cfg.Nodes, graph.Node{ID: fmt.Sprintf("writer-%d", i)})
			wg.Add(1)
			go func(cfg graph.Config) {
				defer wg.Done()
				_, err := store.SaveVersion(ctx, wf.ID, cfg)
				errs <- err
			}(cfg)
		}
		wg.Wait()
		close(errs)

		saved := 0
		for err := range errs {
			if err == nil {
				saved++
				continue
			}
			// A loser must surface a conflict error, never merge silently.
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
				t.Fatalf("unexpected error kind from racing save: %v", err)
			}
		}
		if saved == 0 {
			t.Fatalf("no writer succeeded")
		}

		history, err := store.ListVersions(ctx, wf.ID)
		if err != nil {
			t.Fatalf("list versions: %v", err)
		}
		if len(history) != 1+saved {
			t.Fatalf("history has %d entries, want 1 initial + %d saved", len(history), saved)
		}
		seen := make(map[int]bool, len(history))
		for _, v := range history {
			if seen[v.VersionID] {
				t.Fatalf("duplicate version id %d in history", v.VersionID)
			}
			seen[v.VersionID] = true
		}

		current, err := store.Get(ctx, wf.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !seen[current.CurrentVersion] {
			t.Fatalf("current version %d missing from history", current.CurrentVersion)
		}
	})
}
