package txn

import "context"

// Journal records undo actions for the mutations of one operation. Reverting
// replays them newest first.
type Journal struct {
	undo []func()
}

func (j *Journal) Append(undo func()) {
	if j == nil || undo == nil {
		return
	}
	j.undo = append(j.undo, undo)
}

func (j *Journal) Len() int {
	if j == nil {
		return 0
	}
	return len(j.undo)
}

// Revert undoes every recorded mutation and empties the journal.
func (j *Journal) Revert() {
	if j == nil {
		return
	}
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

type journalKey struct{}

// WithJournal attaches j to ctx.
func WithJournal(ctx context.Context, j *Journal) context.Context {
	return context.WithValue(ctx, journalKey{}, j)
}

// FromContext returns the journal of the enclosing operation, if any.
func FromContext(ctx context.Context) (*Journal, bool) {
	if ctx == nil {
		return nil, false
	}
	j, ok := ctx.Value(journalKey{}).(*Journal)
	return j, ok && j != nil
}

// Record appends undo to the journal carried by ctx. Outside an operation it
// is a no-op and the mutation is final.
func Record(ctx context.Context, undo func()) {
	if j, ok := FromContext(ctx); ok {
		j.Append(undo)
	}
}
