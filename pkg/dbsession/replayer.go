package dbsession

import (
	"fmt"
	"strings"
)

// Replayer is a scripted Session for tests. Expectations are consumed in
// order; each incoming statement must match the next expectation's
// prefix (an empty prefix matches anything). It lives outside _test.go
// files so that every package exercising the bootstrap workflow can
// share it.
type Replayer struct {
	steps []*ReplayStep

	// Statements records every statement issued, in order, so tests can
	// assert on side channels such as the number of ROLLBACKs.
	Statements []string
}

type replayKind int

const (
	replayQuery replayKind = iota
	replayQueryOne
	replayExecute
)

// ReplayStep is one scripted expectation.
type ReplayStep struct {
	kind         replayKind
	prefix       string
	rows         []Row
	lastInsertID int64
	err          error
}

// ExpectQuery schedules a multi-row query expectation.
func (r *Replayer) ExpectQuery(prefix string) *ReplayStep {
	return r.add(replayQuery, prefix)
}

// ExpectQueryOne schedules a single-row query expectation.
func (r *Replayer) ExpectQueryOne(prefix string) *ReplayStep {
	return r.add(replayQueryOne, prefix)
}

// ExpectExecute schedules a statement-execution expectation.
func (r *Replayer) ExpectExecute(prefix string) *ReplayStep {
	return r.add(replayExecute, prefix)
}

func (r *Replayer) add(kind replayKind, prefix string) *ReplayStep {
	s := &ReplayStep{kind: kind, prefix: prefix}
	r.steps = append(r.steps, s)
	return s
}

// ThenReturn sets the rows the scripted query yields.
func (s *ReplayStep) ThenReturn(rows ...Row) *ReplayStep {
	s.rows = rows
	return s
}

// ThenOK marks the execution successful, optionally with a last insert id.
func (s *ReplayStep) ThenOK(lastInsertID ...int64) *ReplayStep {
	if len(lastInsertID) > 0 {
		s.lastInsertID = lastInsertID[0]
	}
	return s
}

// ThenError makes the step fail with a server error carrying code.
func (s *ReplayStep) ThenError(msg string, code uint16) *ReplayStep {
	s.err = &Error{Code: code, Message: msg}
	return s
}

// Empty reports whether every expectation has been consumed.
func (r *Replayer) Empty() bool { return len(r.steps) == 0 }

// Remaining returns the number of unconsumed expectations.
func (r *Replayer) Remaining() int { return len(r.steps) }

// RollbackCount counts issued ROLLBACK statements.
func (r *Replayer) RollbackCount() int {
	n := 0
	for _, stmt := range r.Statements {
		if stmt == "ROLLBACK" {
			n++
		}
	}
	return n
}

func (r *Replayer) next(kind replayKind, stmt string) (*ReplayStep, error) {
	r.Statements = append(r.Statements, stmt)
	if len(r.steps) == 0 {
		return nil, fmt.Errorf("unexpected statement with no expectations left: %s", stmt)
	}
	s := r.steps[0]
	if s.kind != kind {
		return nil, fmt.Errorf("statement kind mismatch for: %s", stmt)
	}
	if s.prefix != "" && !strings.HasPrefix(stmt, s.prefix) {
		return nil, fmt.Errorf("expected statement starting with %q, got %q", s.prefix, stmt)
	}
	r.steps = r.steps[1:]
	return s, nil
}

func (r *Replayer) Query(stmt string) ([]Row, error) {
	s, err := r.next(replayQuery, stmt)
	if err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.rows, nil
}

func (r *Replayer) QueryOne(stmt string) (Row, error) {
	s, err := r.next(replayQueryOne, stmt)
	if err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	if len(s.rows) == 0 {
		return nil, nil
	}
	return s.rows[0], nil
}

func (r *Replayer) Execute(stmt string) (int64, error) {
	s, err := r.next(replayExecute, stmt)
	if err != nil {
		return 0, err
	}
	if s.err != nil {
		return 0, s.err
	}
	return s.lastInsertID, nil
}

// Str builds a Row from plain strings.
func Str(vals ...string) Row {
	row := make(Row, len(vals))
	for i := range vals {
		v := vals[i]
		row[i] = &v
	}
	return row
}

// Null is a NULL row field, for use alongside Str-built rows.
func Null() *string { return nil }
