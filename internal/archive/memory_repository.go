package archive

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// InMemoryRepository keeps runs in process memory. Used by tests and when
// no database is configured.
type InMemoryRepository struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		runs: make(map[string]*Run),
	}
}

// Get retrieves a run by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return clone(run), nil
}

// List retrieves runs newest first.
func (r *InMemoryRepository) List(_ context.Context, opts ListOptions) (*ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]*Run, 0, len(r.runs))
	for _, run := range r.runs {
		if matches(run, opts) {
			runs = append(runs, clone(run))
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	if opts.Cursor != "" {
		for i, run := range runs {
			if run.ID == opts.Cursor {
				runs = runs[i+1:]
				break
			}
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	result := &ListResult{Items: runs}
	if len(runs) > limit {
		result.Items = runs[:limit]
		result.NextCursor = runs[limit-1].ID
	}
	return result, nil
}

// Create stores a run.
func (r *InMemoryRepository) Create(_ context.Context, run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[run.ID] = clone(run)
	return nil
}

func matches(run *Run, opts ListOptions) bool {
	if opts.City != "" && !strings.EqualFold(run.City, opts.City) {
		return false
	}
	if opts.Gas != "" && !strings.EqualFold(run.Gas, opts.Gas) {
		return false
	}
	return opts.Kind == "" || run.Kind == opts.Kind
}

func clone(run *Run) *Run {
	cpy := *run
	if run.Bins != nil {
		cpy.Bins = append([]Bin(nil), run.Bins...)
	}
	if run.Bounds != nil {
		b := *run.Bounds
		cpy.Bounds = &b
	}
	return &cpy
}

var _ Repository = (*InMemoryRepository)(nil)
