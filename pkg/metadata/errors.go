// Package metadata validates that the connected server belongs to a
// usable InnoDB cluster before any provisioning is attempted, and
// discovers the cluster's bootstrap servers.
package metadata

import "fmt"

// ShapeError reports a query result whose shape does not match what the
// metadata schema guarantees. It indicates a compatibility problem, not
// a transient server condition.
type ShapeError struct {
	msg string
}

func (e *ShapeError) Error() string { return e.msg }

func shapeErrorf(format string, args ...any) *ShapeError {
	return &ShapeError{msg: fmt.Sprintf(format, args...)}
}

// NewShapeError builds a ShapeError with a fixed message. Used by the
// membership classifier, which shares this error taxonomy.
func NewShapeError(msg string) *ShapeError {
	return &ShapeError{msg: msg}
}

// UnsupportedError reports cluster metadata this tool cannot work with:
// more than one cluster or replicaset, or a replicaset that does not
// belong to the server's own replication group.
type UnsupportedError struct {
	msg string
}

func (e *UnsupportedError) Error() string { return e.msg }

// HealthError reports that the connected member is not itself in a
// usable replication state.
type HealthError struct {
	State string
}

func (e *HealthError) Error() string {
	return fmt.Sprintf("The provided server is currently not an ONLINE member of a InnoDB cluster (%s)", e.State)
}

// QuorumError reports that the replication group has lost its majority.
type QuorumError struct {
	Online int
	Total  int
}

func (e *QuorumError) Error() string {
	return fmt.Sprintf("The provided server is currently not in a InnoDB cluster group with quorum and thus may contain inaccurate or outdated data (%d online out of %d members)", e.Online, e.Total)
}
