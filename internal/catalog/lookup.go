package catalog

import "context"

// ColumnValuesRequest asks for distinct values of a column.
type ColumnValuesRequest struct {
	Schema string `json:"schema,omitempty"`
	Table  string `json:"table"`
	Column string `json:"column"`
	// Prefix filters values containing it, case-insensitively.
	Prefix string `json:"prefix,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// LiveLookup answers the queries completion cannot serve from a snapshot.
// Implementations must honour ctx cancellation; callers bound every call
// with a timeout and treat errors as "no data".
type LiveLookup interface {
	// FunctionSignatures returns the overloads of a function.
	FunctionSignatures(ctx context.Context, name string) ([]Object, error)
	// ColumnValues returns distinct values of a column.
	ColumnValues(ctx context.Context, req ColumnValuesRequest) ([]string, error)
}

// SnapshotLookup serves FunctionSignatures from a snapshot and has no
// column values.
type SnapshotLookup struct {
	Snapshot *Snapshot
}

func (l SnapshotLookup) FunctionSignatures(_ context.Context, name string) ([]Object, error) {
	return l.Snapshot.Functions(name), nil
}

func (l SnapshotLookup) ColumnValues(context.Context, ColumnValuesRequest) ([]string, error) {
	return nil, nil
}

// Lookups tries each lookup in order and returns the first non-empty
// answer. An error is returned only when every lookup failed.
type Lookups []LiveLookup

func (ls Lookups) FunctionSignatures(ctx context.Context, name string) ([]Object, error) {
	var firstErr error
	failed := 0
	for _, l := range ls {
		out, err := l.FunctionSignatures(ctx, name)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failed++
			continue
		}
		if len(out) > 0 {
			return out, nil
		}
	}
	if failed < len(ls) {
		return nil, nil
	}
	return nil, firstErr
}

func (ls Lookups) ColumnValues(ctx context.Context, req ColumnValuesRequest) ([]string, error) {
	var firstErr error
	failed := 0
	for _, l := range ls {
		out, err := l.ColumnValues(ctx, req)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failed++
			continue
		}
		if len(out) > 0 {
			return out, nil
		}
	}
	if failed < len(ls) {
		return nil, nil
	}
	return nil, firstErr
}
