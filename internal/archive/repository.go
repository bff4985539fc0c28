package archive

import "context"

// ListOptions filters and pages runs. Empty filters match everything.
type ListOptions struct {
	Limit  int
	Cursor string
	City   string
	Gas    string
	Kind   Kind
}

// ListResult contains one page of runs, newest first.
type ListResult struct {
	Items      []*Run
	NextCursor string
}

// DefaultListLimit is used when ListOptions.Limit is not positive.
const DefaultListLimit = 50

// Repository defines the interface for run persistence.
type Repository interface {
	// Get retrieves a run by ID.
	Get(ctx context.Context, id string) (*Run, error)

	// List retrieves runs, newest first. Cursor is the ID of the last run
	// of the previous page.
	List(ctx context.Context, opts ListOptions) (*ListResult, error)

	// Create stores a new run.
	Create(ctx context.Context, run *Run) error
}
