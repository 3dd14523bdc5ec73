package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowplane/flowplane/core/graph"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultWorkflowRedisURL = "redis://localhost:6379"
	// casRetries bounds optimistic-lock retries when concurrent writers
	// race on the same workflow's version head.
	casRetries = 5
)

// RedisStore persists workflows and their version history in Redis.
// Each workflow document lives under one key and its history under a
// sibling append-only list, so version operations never join across
// entities. Mutations that touch the version head run under WATCH so
// concurrent SaveVersion calls are serialized, not merged.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis at the provided URL.
func NewRedisStore(url string) (*RedisStore, error) {
	if url == "" {
		url = defaultWorkflowRedisURL
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)

// Create persists a new draft workflow with its config as version 0.
func (s *RedisStore) Create(ctx context.Context, p CreatePayload) (*Workflow, error) {
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
		Config:         p.Config,
		Inputs:         p.Inputs,
		InputSchema:    p.InputSchema,
		Public:         p.Public,
		Color:          p.Color,
		Emoji:          p.Emoji,
		Readme:         p.Readme,
		LastEdited:     now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	v0 := Version{VersionID: 0, Config: p.Config, CreatedAt: now}

	if err := s.write(ctx, s.client, wf, &v0); err != nil {
		return nil, err
	}
	return wf, nil
}

// Get returns a workflow definition by id.
func (s *RedisStore) Get(ctx context.Context, id string) (*Workflow, error) {
	return getWorkflowDoc(ctx, s.client, id)
}

// List returns recent workflows, optionally scoped by workspace.
func (s *RedisStore) List(ctx context.Context, workspaceID string, limit int64) ([]*Workflow, error) {
	if limit <= 0 {
		limit = 50
	}
	index := workflowAllIndexKey()
	if workspaceID != "" {
		index = workflowWorkspaceIndexKey(workspaceID)
	}
	ids, err := s.client.ZRevRange(ctx, index, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*Workflow{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(ids))
	for _, id := range ids {
		cmds[id] = pipe.Get(ctx, workflowKey(id))
	}
	_, _ = pipe.Exec(ctx)

	out := make([]*Workflow, 0, len(ids))
	for _, id := range ids {
		cmd := cmds[id]
		if cmd == nil {
			continue
		}
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}
		var wf Workflow
		if err := json.Unmarshal(data, &wf); err != nil {
			continue
		}
		out = append(out, &wf)
	}
	return out, nil
}

// Update merges partial fields into the live workflow without touching
// version history.
func (s *RedisStore) Update(ctx context.Context, id string, p UpdatePayload) (*Workflow, error) {
	if err := validateUpdate(p); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(wf *Workflow, _ []Version) (*Version, error) {
		wf.apply(p)
		wf.UpdatedAt = time.Now().UTC()
		return nil, nil
	})
}

// Delete removes the workflow and its entire version history.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	wf, err := getWorkflowDoc(ctx, s.client, id)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, workflowKey(id))
	pipe.Del(ctx, workflowVersionsKey(id))
	pipe.ZRem(ctx, workflowAllIndexKey(), id)
	if wf.WorkspaceID != "" {
		pipe.ZRem(ctx, workflowWorkspaceIndexKey(wf.WorkspaceID), id)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Duplicate copies the current config into a fresh draft workflow.
func (s *RedisStore) Duplicate(ctx context.Context, id string) (*Workflow, error) {
	src, err := getWorkflowDoc(ctx, s.client, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	dup := *src
	dup.ID = uuid.NewString()
	dup.UUID = uuid.NewString()
	dup.Name = src.Name + " (Copy)"
	dup.Status = StatusDraft
	dup.CurrentVersion = 0
	dup.TotalRuns = 0
	dup.LastEdited = now
	dup.CreatedAt = now
	dup.UpdatedAt = now
	v0 := Version{VersionID: 0, Config: src.Config, CreatedAt: now}
	if err := s.write(ctx, s.client, &dup, &v0); err != nil {
		return nil, err
	}
	return &dup, nil
}

// Publish moves draft to published; publishing twice is a no-op.
func (s *RedisStore) Publish(ctx context.Context, id string) (*Workflow, error) {
	return s.mutate(ctx, id, func(wf *Workflow, _ []Version) (*Version, error) {
		if wf.Status != StatusPublished {
			wf.Status = StatusPublished
			wf.UpdatedAt = time.Now().UTC()
		}
		return nil, nil
	})
}

// SaveVersion validates the config, appends it as version max+1, and makes
// it current.
func (s *RedisStore) SaveVersion(ctx context.Context, id string, cfg graph.Config) (*Workflow, error) {
	if err := graph.CheckConfig(cfg); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(wf *Workflow, history []Version) (*Version, error) {
		now := time.Now().UTC()
		next := Version{VersionID: maxVersionID(history) + 1, Config: cfg, CreatedAt: now}
		wf.CurrentVersion = next.VersionID
		wf.Config = cfg
		wf.LastEdited = now
		wf.UpdatedAt = now
		return &next, nil
	})
}

// ListVersions returns the full append-only history, oldest first.
func (s *RedisStore) ListVersions(ctx context.Context, id string) ([]Version, error) {
	if _, err := getWorkflowDoc(ctx, s.client, id); err != nil {
		return nil, err
	}
	return readVersions(ctx, s.client, id)
}

// GetVersion returns one historical snapshot.
func (s *RedisStore) GetVersion(ctx context.Context, id string, versionID int) (*Version, error) {
	history, err := s.ListVersions(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range history {
		if history[i].VersionID == versionID {
			return &history[i], nil
		}
	}
	return nil, notFoundf("workflow %s version %d", id, versionID)
}

// RestoreVersion appends a copy of the named snapshot as a new version and
// makes it current; the historical entry is untouched.
func (s *RedisStore) RestoreVersion(ctx context.Context, id string, versionID int) (*Workflow, error) {
	return s.mutate(ctx, id, func(wf *Workflow, history []Version) (*Version, error) {
		src := findVersion(history, versionID)
		if src == nil {
			return nil, notFoundf("workflow %s version %d", id, versionID)
		}
		now := time.Now().UTC()
		next := Version{VersionID: maxVersionID(history) + 1, Config: src.Config, CreatedAt: now}
		wf.CurrentVersion = next.VersionID
		wf.Config = src.Config
		wf.LastEdited = now
		wf.UpdatedAt = now
		return &next, nil
	})
}

// SetDefaultVersion repoints CurrentVersion without growing history.
func (s *RedisStore) SetDefaultVersion(ctx context.Context, id string, versionID int) (*Workflow, error) {
	return s.mutate(ctx, id, func(wf *Workflow, history []Version) (*Version, error) {
		src := findVersion(history, versionID)
		if src == nil {
			return nil, notFoundf("workflow %s version %d", id, versionID)
		}
		wf.CurrentVersion = versionID
		wf.Config = src.Config
		wf.UpdatedAt = time.Now().UTC()
		return nil, nil
	})
}

// IncrementRuns bumps the run counter when a trigger is accepted.
func (s *RedisStore) IncrementRuns(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, id, func(wf *Workflow, _ []Version) (*Version, error) {
		wf.TotalRuns++
		return nil, nil
	})
	return err
}

// mutate runs a read-modify-write cycle under WATCH on the workflow and
// its history, retrying on write conflicts. fn may return a version to
// append; appends and the document write land in one transaction.
func (s *RedisStore) mutate(ctx context.Context, id string, fn func(wf *Workflow, history []Version) (*Version, error)) (*Workflow, error) {
	var out *Workflow
	txn := func(tx *redis.Tx) error {
		wf, err := getWorkflowDoc(ctx, tx, id)
		if err != nil {
			return err
		}
		history, err := readVersions(ctx, tx, id)
		if err != nil {
			return err
		}
		appendVersion, err := fn(wf, history)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return writeWorkflowDoc(ctx, pipe, wf, appendVersion)
		})
		if err != nil {
			return err
		}
		out = wf
		return nil
	}

	for i := 0; i < casRetries; i++ {
		err := s.client.Watch(ctx, txn, workflowKey(id), workflowVersionsKey(id))
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("workflow %s: too many concurrent writers", id)
}

func (s *RedisStore) write(ctx context.Context, c *redis.Client, wf *Workflow, appendVersion *Version) error {
	pipe := c.TxPipeline()
	if err := writeWorkflowDoc(ctx, pipe, wf, appendVersion); err != nil {
		return err
	}
	_, err := pipe.Exec(ctx)
	return err
}

func writeWorkflowDoc(ctx context.Context, pipe redis.Pipeliner, wf *Workflow, appendVersion *Version) error {
	payload, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("marshal workflow: %w", err)
	}
	pipe.Set(ctx, workflowKey(wf.ID), payload, 0)
	score := float64(wf.UpdatedAt.Unix())
	pipe.ZAdd(ctx, workflowAllIndexKey(), redis.Z{Score: score, Member: wf.ID})
	if wf.WorkspaceID != "" {
		pipe.ZAdd(ctx, workflowWorkspaceIndexKey(wf.WorkspaceID), redis.Z{Score: score, Member: wf.ID})
	}
	if appendVersion != nil {
		versionPayload, err := json.Marshal(appendVersion)
		if err != nil {
			return fmt.Errorf("marshal version: %w", err)
		}
		pipe.RPush(ctx, workflowVersionsKey(wf.ID), versionPayload)
	}
	return nil
}

func getWorkflowDoc(ctx context.Context, c redis.Cmdable, id string) (*Workflow, error) {
	if id == "" {
		return nil, validationf("workflow id required")
	}
	data, err := c.Get(ctx, workflowKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFoundf("workflow %s", id)
		}
		return nil, err
	}
	var wf Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("unmarshal workflow: %w", err)
	}
	return &wf, nil
}

func readVersions(ctx context.Context, c redis.Cmdable, id string) ([]Version, error) {
	entries, err := c.LRange(ctx, workflowVersionsKey(id), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Version, 0, len(entries))
	for _, raw := range entries {
		var v Version
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func findVersion(history []Version, versionID int) *Version {
	for i := range history {
		if history[i].VersionID == versionID {
			return &history[i]
		}
	}
	return nil
}

func workflowKey(id string) string {
	return "wf:def:" + id
}

func workflowVersionsKey(id string) string {
	return "wf:versions:" + id
}

func workflowAllIndexKey() string {
	return "wf:index:all"
}

func workflowWorkspaceIndexKey(workspaceID string) string {
	return "wf:index:ws:" + workspaceID
}
