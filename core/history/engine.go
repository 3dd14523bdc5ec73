package history

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// TimeRange names the supported query windows.
type TimeRange string

const (
	Range2h  TimeRange = "2h"
	Range24h TimeRange = "24h"
	Range7d  TimeRange = "7d"
	Range30d TimeRange = "30d"
	RangeAll TimeRange = "all"
)

// Window returns the inclusive lower bound for the range. ok is false for
// RangeAll, which applies no lower bound.
func (tr TimeRange) Window(now time.Time) (time.Time, bool) {
	switch tr {
	case Range2h:
		return now.Add(-2 * time.Hour), true
	case Range24h:
		return now.Add(-24 * time.Hour), true
	case Range7d:
		return now.Add(-7 * 24 * time.Hour), true
	case Range30d:
		return now.Add(-30 * 24 * time.Hour), true
	default:
		return time.Time{}, false
	}
}

func validRange(tr TimeRange) bool {
	switch tr {
	case Range2h, Range24h, Range7d, Range30d, RangeAll:
		return true
	}
	return false
}

// Query describes one history page request.
type Query struct {
	WorkflowID string    `json:"workflow_id"`
	Range      TimeRange `json:"time_range"`
	Status     string    `json:"status"` // StatusAny or an exact RunStatus
	Page       int       `json:"page"`   // 1-indexed
	PageSize   int       `json:"page_size"`
}

// Pagination describes where a result page sits in the filtered set.
type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalRecords int `json:"totalRecords"`
	PageSize     int `json:"pageSize"`
}

// Result is one page of filtered, newest-first records.
type Result struct {
	Data       []*ExecutionRecord `json:"data"`
	Pagination Pagination         `json:"pagination"`
}

const defaultPageSize = 10

// Engine filters, sorts, and paginates execution records against an
// injected repository. It holds no state of its own between queries.
type Engine struct {
	repo RunRepository
	now  func() time.Time
}

// NewEngine builds a query engine over a run repository.
func NewEngine(repo RunRepository) *Engine {
	return &Engine{repo: repo, now: time.Now}
}

// WithClock overrides the time source; tests pin "now" with it.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Query selects a workflow's records, applies the time window (inclusive
// boundaries) and status filter, sorts descending by creation time, and
// returns the requested 1-indexed page. A page past the end is empty, not
// an error.
func (e *Engine) Query(ctx context.Context, q Query) (*Result, error) {
	if q.WorkflowID == "" {
		return nil, fmt.Errorf("workflow id required")
	}
	if q.Range == "" {
		q.Range = RangeAll
	}
	if !validRange(q.Range) {
		return nil, fmt.Errorf("unknown time range %q", q.Range)
	}
	if q.Status == "" {
		q.Status = StatusAny
	}
	if q.Status != StatusAny && !ValidStatus(RunStatus(q.Status)) {
		return nil, fmt.Errorf("unknown status %q", q.Status)
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = defaultPageSize
	}

	records, err := e.repo.ListByWorkflow(ctx, q.WorkflowID)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	lower, bounded := q.Range.Window(now)
	filtered := make([]*ExecutionRecord, 0, len(records))
	for _, rec := range records {
		if bounded && rec.CreatedAt.Before(lower) {
			continue
		}
		if rec.CreatedAt.After(now) {
			continue
		}
		if q.Status != StatusAny && string(rec.Status) != q.Status {
			continue
		}
		filtered = append(filtered, rec)
	}

	// Newest first is part of the contract, not a storage detail.
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	total := len(filtered)
	totalPages := (total + q.PageSize - 1) / q.PageSize
	start := (q.Page - 1) * q.PageSize
	end := start + q.PageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return &Result{
		Data: filtered[start:end],
		Pagination: Pagination{
			CurrentPage:  q.Page,
			TotalPages:   totalPages,
			TotalRecords: total,
			PageSize:     q.PageSize,
		},
	}, nil
}
