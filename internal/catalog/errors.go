package catalog

import "fmt"

// SnapshotFileError occurs when a snapshot file cannot be read or parsed.
type SnapshotFileError struct {
	Path string
	Err  error
}

func (e *SnapshotFileError) Error() string {
	return fmt.Sprintf("failed to load catalog snapshot '%s': %v", e.Path, e.Err)
}

func (e *SnapshotFileError) Unwrap() error {
	return e.Err
}

// IntrospectionError occurs when a catalog query against the server fails.
type IntrospectionError struct {
	Query string
	Err   error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("catalog query '%s' failed: %v", e.Query, e.Err)
}

func (e *IntrospectionError) Unwrap() error {
	return e.Err
}
