// Package gr classifies Group Replication membership as seen by the
// connected server.
package gr

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/mysqlgear/router-bootstrap/pkg/dbsession"
	"github.com/mysqlgear/router-bootstrap/pkg/metadata"
)

// MemberState is a member's replication state. Unrecognized states map
// to StateOther so that newer cluster software never breaks
// classification.
type MemberState int

const (
	StateOnline MemberState = iota
	StateOffline
	StateUnreachable
	StateRecovering
	StateOther
)

func (s MemberState) String() string {
	switch s {
	case StateOnline:
		return "Online"
	case StateOffline:
		return "Offline"
	case StateUnreachable:
		return "Unreachable"
	case StateRecovering:
		return "Recovering"
	}
	return "Other"
}

// MemberRole is derived from the group's primary-member variable, not
// stored by the cluster itself.
type MemberRole int

const (
	RolePrimary MemberRole = iota
	RoleSecondary
)

// Member is one database instance participating in replication.
type Member struct {
	ID    string
	Host  string
	Port  uint16
	State MemberState
	Role  MemberRole
}

// Topology is the result of one classification pass. It is a snapshot:
// nothing in it persists across fetches except member ids.
type Topology struct {
	Members map[string]Member

	// SinglePrimary reports whether the group runs in single-primary
	// mode. The flag is repeated on every membership row; when rows
	// disagree the last value seen wins.
	SinglePrimary bool

	// PrimaryID is the primary member as seen by the connected node.
	// Empty in multi-primary mode or when the node is not part of the
	// group.
	PrimaryID string
}

const (
	queryPrimaryMember = "show status like 'group_replication_primary_member'"

	queryMembers = "SELECT member_id, member_host, member_port, member_state, @@group_replication_single_primary_mode" +
		" FROM performance_schema.replication_group_members" +
		" WHERE channel_name = 'group_replication_applier'"
)

// FetchTopology resolves the current primary member and then classifies
// the membership listing. The two queries are independent reads of
// current server state; the combined result may be slightly stale and
// callers must tolerate that.
func FetchTopology(sess dbsession.Session, log *zap.Logger) (*Topology, error) {
	primary, err := fetchPrimaryMember(sess)
	if err != nil {
		return nil, err
	}

	rows, err := sess.Query(queryMembers)
	if err != nil {
		return nil, fmt.Errorf("Error querying replication group members: %w", err)
	}

	topo := &Topology{Members: make(map[string]Member, len(rows)), PrimaryID: primary}
	for _, row := range rows {
		if len(row) != 5 {
			return nil, shapeError("Unexpected number of fields in resultset from group_replication query. Expected = 5, got = " + strconv.Itoa(len(row)))
		}
		if row.IsNull(0) || row.IsNull(1) || row.IsNull(2) || row.IsNull(3) {
			log.Warn("membership query returned a row with missing required fields",
				zap.String("member_id", row.Get(0)),
				zap.String("member_host", row.Get(1)))
			return nil, shapeError("Unexpected value in group_replication_metadata query results")
		}

		flag := row.Get(4)
		topo.SinglePrimary = flag == "1" || flag == "ON"

		port, _ := strconv.Atoi(row.Get(2))
		m := Member{
			ID:    row.Get(0),
			Host:  row.Get(1),
			Port:  uint16(port),
			State: classifyState(row.Get(3)),
		}
		if m.State == StateOther {
			log.Info("unknown member state in replication_group_members",
				zap.String("state", row.Get(3)), zap.String("member_id", m.ID))
		}

		// multi-primary means every node accepts writes
		if primary == m.ID || !topo.SinglePrimary {
			m.Role = RolePrimary
		} else {
			m.Role = RoleSecondary
		}
		topo.Members[m.ID] = m
	}
	return topo, nil
}

func fetchPrimaryMember(sess dbsession.Session) (string, error) {
	// In single-primary mode the variable names the primary as seen by
	// this node (provided the node is part of the group); in
	// multi-primary mode it is always empty.
	row, err := sess.QueryOne(queryPrimaryMember)
	if err != nil {
		return "", fmt.Errorf("Error querying replication group primary member: %w", err)
	}
	if row == nil {
		return "", nil
	}
	if len(row) != 2 {
		return "", shapeError("Unexpected number of fields in the status response. Expected = 2, got = " + strconv.Itoa(len(row)))
	}
	return row.Get(1), nil
}

func classifyState(state string) MemberState {
	switch state {
	case "ONLINE":
		return StateOnline
	case "OFFLINE":
		return StateOffline
	case "UNREACHABLE":
		return StateUnreachable
	case "RECOVERING":
		return StateRecovering
	}
	return StateOther
}

func shapeError(msg string) error {
	return metadata.NewShapeError(msg)
}
