package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultHistoryRedisURL = "redis://localhost:6379"

// RedisRepository stores execution records in Redis, indexed per workflow
// by creation time so newest-first reads come straight off the index.
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository connects to Redis at the provided URL.
func NewRedisRepository(url string) (*RedisRepository, error) {
	if url == "" {
		url = defaultHistoryRedisURL
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
	return &RedisRepository{client: client}, nil
}

// Close closes the underlying Redis client.
func (r *RedisRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

var _ RunRepository = (*RedisRepository)(nil)

// Save upserts a record and keeps the workflow index scored by CreatedAt.
func (r *RedisRepository) Save(ctx context.Context, rec *ExecutionRecord) error {
	if rec == nil || rec.ID == "" || rec.WorkflowID == "" {
		return errInvalidRecord
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = StatusRunning
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, recordKey(rec.ID), payload, 0)
	pipe.ZAdd(ctx, recordIndexKey(rec.WorkflowID), redis.Z{
		Score:  float64(rec.CreatedAt.UnixMilli()),
		Member: rec.ID,
	})
	_, err = pipe.Exec(ctx)
	return err
}

// Get fetches one record by id.
func (r *RedisRepository) Get(ctx context.Context, id string) (*ExecutionRecord, error) {
	if id == "" {
		return nil, ErrRecordNotFound
	}
	data, err := r.client.Get(ctx, recordKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	var rec ExecutionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

// ListByWorkflow returns every record for a workflow, newest first.
func (r *RedisRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*ExecutionRecord, error) {
	if workflowID == "" {
		return nil, fmt.Errorf("workflow id required")
	}
	ids, err := r.client.ZRevRange(ctx, recordIndexKey(workflowID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*ExecutionRecord{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(ids))
	for _, id := range ids {
		cmds[id] = pipe.Get(ctx, recordKey(id))
	}
	_, _ = pipe.Exec(ctx)

	out := make([]*ExecutionRecord, 0, len(ids))
	for _, id := range ids {
		cmd := cmds[id]
		if cmd == nil {
			continue
		}
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}
		var rec ExecutionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

// DeleteByWorkflow drops a workflow's records and index; called when the
// owning workflow is deleted.
func (r *RedisRepository) DeleteByWorkflow(ctx context.Context, workflowID string) error {
	if workflowID == "" {
		return fmt.Errorf("workflow id required")
	}
	ids, err := r.client.ZRange(ctx, recordIndexKey(workflowID), 0, -1).Result()
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, recordKey(id))
	}
	pipe.Del(ctx, recordIndexKey(workflowID))
	_, err = pipe.Exec(ctx)
	return err
}

func recordKey(id string) string {
	return "run:rec:" + id
}

func recordIndexKey(workflowID string) string {
	return "run:index:" + workflowID
}
