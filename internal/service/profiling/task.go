package profiling

import "context"

// Task is a persistence commit running in the background.
type Task struct {
	done   chan struct{}
	result CommitResult
}

// Done is closed once the commit finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the commit finished or ctx ends.
func (t *Task) Wait(ctx context.Context) (CommitResult, error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return CommitResult{}, ctx.Err()
	}
}
