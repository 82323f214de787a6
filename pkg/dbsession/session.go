// Package dbsession provides the SQL session used to talk to the
// bootstrap server's metadata. The bootstrap workflow only ever needs
// three operations (multi-row query, single-row query, statement
// execution), so the interface is kept that narrow to make scripted
// test doubles practical.
package dbsession

// Row is one result row. A nil element is a SQL NULL.
type Row []*string

// Get returns the value at index i, or the empty string when the field
// is NULL or out of range.
func (r Row) Get(i int) string {
	if i >= len(r) || r[i] == nil {
		return ""
	}
	return *r[i]
}

// IsNull reports whether the field at index i is NULL or missing.
func (r Row) IsNull(i int) bool {
	return i >= len(r) || r[i] == nil
}

// Session is the metadata store connector. Implementations must surface
// server errors as *Error so callers can dispatch on the server error
// code.
type Session interface {
	// Query runs a statement expected to return rows.
	Query(stmt string) ([]Row, error)

	// QueryOne runs a statement expected to return at most one row.
	// A missing row is reported as (nil, nil), not as an error.
	QueryOne(stmt string) (Row, error)

	// Execute runs a statement that returns no rows and reports the
	// last insert id, when the server produced one.
	Execute(stmt string) (lastInsertID int64, err error)
}

// Error is a server-side failure with the MySQL error code attached.
type Error struct {
	Code    uint16
	Message string
}

func (e *Error) Error() string { return e.Message }
