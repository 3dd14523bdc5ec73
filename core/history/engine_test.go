package history

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func seedRecords(t *testing.T, repo RunRepository, workflowID string, n int, spacing time.Duration, base time.Time) {
	t.Helper()
	statuses := []RunStatus{StatusRunning, StatusSuccess, StatusCancelled, StatusReviewNeeded}
	for i := 0; i < n; i++ {
		rec := &ExecutionRecord{
			ID:         fmt.Sprintf("run-%03d", i),
			WorkflowID: workflowID,
			Status:     statuses[i%len(statuses)],
			CreatedAt:  base.Add(-time.Duration(i) * spacing),
			Source:     SourceWeb,
		}
		if err := repo.Save(context.Background(), rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func fixedEngine(repo RunRepository, now time.Time) *Engine {
	return NewEngine(repo).WithClock(func() time.Time { return now })
}

func TestPaginationBoundaries(t *testing.T) {
	repo := NewMemoryRepository()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	// 23 records, all inside the window, all the same status.
	for i := 0; i < 23; i++ {
		rec := &ExecutionRecord{
			ID:         fmt.Sprintf("run-%02d", i),
			WorkflowID: "wf-1",
			Status:     StatusSuccess,
			CreatedAt:  now.Add(-time.Duration(i) * time.Minute),
		}
		if err := repo.Save(context.Background(), rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	eng := fixedEngine(repo, now)

	res, err := eng.Query(context.Background(), Query{WorkflowID: "wf-1", Range: RangeAll, Status: StatusAny, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	p := res.Pagination
	if p.TotalRecords != 23 || p.TotalPages != 3 || p.CurrentPage != 1 || p.PageSize != 10 {
		t.Fatalf("unexpected pagination: %+v", p)
	}
	if len(res.Data) != 10 {
		t.Fatalf("page 1 size: %d", len(res.Data))
	}

	res, err = eng.Query(context.Background(), Query{WorkflowID: "wf-1", Page: 3, PageSize: 10})
	if err != nil {
		t.Fatalf("query page 3: %v", err)
	}
	if len(res.Data) != 3 {
		t.Fatalf("page 3 should hold 3 records, got %d", len(res.Data))
	}

	res, err = eng.Query(context.Background(), Query{WorkflowID: "wf-1", Page: 4, PageSize: 10})
	if err != nil {
		t.Fatalf("page past the end must not error: %v", err)
	}
	if len(res.Data) != 0 || res.Pagination.TotalPages != 3 {
		t.Fatalf("page 4 should be empty: %+v", res.Pagination)
	}
}

func TestTimeWindowInclusive(t *testing.T) {
	repo := NewMemoryRepository()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &ExecutionRecord{
		ID:         "run-3h",
		WorkflowID: "wf-1",
		Status:     StatusSuccess,
		CreatedAt:  now.Add(-3 * time.Hour),
	}
	if err := repo.Save(context.Background(), rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	eng := fixedEngine(repo, now)

	cases := map[TimeRange]int{Range2h: 0, Range24h: 1, RangeAll: 1}
	for tr, want := range cases {
		res, err := eng.Query(context.Background(), Query{WorkflowID: "wf-1", Range: tr})
		if err != nil {
			t.Fatalf("query %s: %v", tr, err)
		}
		if got := res.Pagination.TotalRecords; got != want {
			t.Fatalf("range %s: got %d records, want %d", tr, got, want)
		}
	}

	// A record exactly on the boundary is included: boundaries are inclusive.
	edge := &ExecutionRecord{
		ID:         "run-edge",
		WorkflowID: "wf-2",
		Status:     StatusSuccess,
		CreatedAt:  now.Add(-2 * time.Hour),
	}
	if err := repo.Save(context.Background(), edge); err != nil {
		t.Fatalf("save edge: %v", err)
	}
	res, err := eng.Query(context.Background(), Query{WorkflowID: "wf-2", Range: Range2h})
	if err != nil {
		t.Fatalf("query edge: %v", err)
	}
	if res.Pagination.TotalRecords != 1 {
		t.Fatalf("boundary record excluded")
	}
}

func TestStatusFilter(t *testing.T) {
	repo := NewMemoryRepository()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	seedRecords(t, repo, "wf-1", 12, time.Minute, now)
	eng := fixedEngine(repo, now)

	all, err := eng.Query(context.Background(), Query{WorkflowID: "wf-1", Status: StatusAny, PageSize: 50})
	if err != nil {
		t.Fatalf("query any: %v", err)
	}
	if all.Pagination.TotalRecords != 12 {
		t.Fatalf("any should return the union, got %d", all.Pagination.TotalRecords)
	}

	res, err := eng.Query(context.Background(), Query{WorkflowID: "wf-1", Status: string(StatusSuccess), PageSize: 50})
	if err != nil {
		t.Fatalf("query success: %v", err)
	}
	if res.Pagination.TotalRecords != 3 {
		t.Fatalf("expected 3 success records, got %d", res.Pagination.TotalRecords)
	}
	for i, rec := range res.Data {
		if rec.Status != StatusSuccess {
			t.Fatalf("wrong status in result: %s", rec.Status)
		}
		if i > 0 && rec.CreatedAt.After(res.Data[i-1].CreatedAt) {
			t.Fatalf("not sorted newest first")
		}
	}

	if _, err := eng.Query(context.Background(), Query{WorkflowID: "wf-1", Status: "bogus"}); err == nil {
		t.Fatalf("unknown status must be rejected")
	}
}

func TestThirtyDaySeedScenario(t *testing.T) {
	repo := NewMemoryRepository()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	// 50 records spanning 30 days.
	seedRecords(t, repo, "wf-1", 50, 30*24*time.Hour/50, now)
	eng := fixedEngine(repo, now)

	res, err := eng.Query(context.Background(), Query{
		WorkflowID: "wf-1",
		Range:      Range7d,
		Status:     string(StatusRunning),
		Page:       1,
		PageSize:   10,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res.Data) > 10 {
		t.Fatalf("page larger than page size: %d", len(res.Data))
	}
	cutoff := now.Add(-7 * 24 * time.Hour)
	for i, rec := range res.Data {
		if rec.Status != StatusRunning {
			t.Fatalf("status filter leaked: %s", rec.Status)
		}
		if rec.CreatedAt.Before(cutoff) {
			t.Fatalf("record outside 7d window: %s", rec.CreatedAt)
		}
		if i > 0 && rec.CreatedAt.After(res.Data[i-1].CreatedAt) {
			t.Fatalf("ordering broken at %d", i)
		}
	}
}

func TestQueryValidation(t *testing.T) {
	eng := NewEngine(NewMemoryRepository())
	if _, err := eng.Query(context.Background(), Query{}); err == nil {
		t.Fatalf("missing workflow id must be rejected")
	}
	if _, err := eng.Query(context.Background(), Query{WorkflowID: "wf-1", Range: "90d"}); err == nil {
		t.Fatalf("unknown range must be rejected")
	}
	// Defaults: empty range means all, empty status means any, page 0 means 1.
	res, err := eng.Query(context.Background(), Query{WorkflowID: "wf-1"})
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if res.Pagination.CurrentPage != 1 || res.Pagination.PageSize != defaultPageSize {
		t.Fatalf("defaults not applied: %+v", res.Pagination)
	}
}

func TestViewDiscardsStaleResponses(t *testing.T) {
	var v View
	first := v.Issue()
	second := v.Issue()

	// The newer query's response lands first and wins.
	if !v.Apply(second) {
		t.Fatalf("latest response must apply")
	}
	// The stale response arrives afterwards and is discarded.
	if v.Apply(first) {
		t.Fatalf("stale response must be discarded")
	}

	third := v.Issue()
	if !v.Apply(third) {
		t.Fatalf("next issued query must apply")
	}
	if v.Apply(third) {
		t.Fatalf("a response applies at most once")
	}
}
