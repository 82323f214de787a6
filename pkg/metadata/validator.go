package metadata

import (
	"fmt"
	"strconv"

	"github.com/mysqlgear/router-bootstrap/pkg/dbsession"
)

// The pre-flight queries, in the order they must run. Cheap schema
// checks come first; a member that is not itself healthy is never asked
// to judge quorum for the rest of the group.
const (
	querySchemaVersion = "SELECT * FROM mysql_innodb_cluster_metadata.schema_version"

	queryMetadataSupported = "SELECT " +
		" ((SELECT count(*) FROM mysql_innodb_cluster_metadata.clusters) <= 1" +
		"  AND (SELECT count(*) FROM mysql_innodb_cluster_metadata.replicasets) <= 1) as has_one_replicaset," +
		" (SELECT attributes->>'$.group_replication_group_name' FROM mysql_innodb_cluster_metadata.replicasets) " +
		" = @@group_replication_group_name as replicaset_is_ours"

	queryMemberState = "SELECT member_state" +
		" FROM performance_schema.replication_group_members" +
		" WHERE member_id = @@server_uuid"

	queryGroupQuorum = "SELECT SUM(IF(member_state = 'ONLINE', 1, 0)) as num_onlines, COUNT(*) as num_total" +
		" FROM performance_schema.replication_group_members"
)

// CheckMetadataSession runs the ordered pre-flight sequence against the
// connected server: schema compatibility, single-cluster constraint,
// local member health, then quorum. It stops at the first violation.
func CheckMetadataSession(sess dbsession.Session) error {
	if err := checkSchemaVersion(sess); err != nil {
		return err
	}
	if err := checkMetadataSupported(sess); err != nil {
		return err
	}
	if err := checkMemberOnline(sess); err != nil {
		return err
	}
	return checkGroupQuorum(sess)
}

func queryOneRequired(sess dbsession.Session, stmt string) (dbsession.Row, error) {
	row, err := sess.QueryOne(stmt)
	if err != nil {
		return nil, fmt.Errorf("Error querying metadata: %w", err)
	}
	if row == nil {
		return nil, shapeErrorf("No result returned for metadata query")
	}
	return row, nil
}

func checkSchemaVersion(sess dbsession.Session) error {
	row, err := queryOneRequired(sess, querySchemaVersion)
	if err != nil {
		return err
	}
	// older schemas have (major, minor), newer ones add a patch field
	if len(row) != 2 && len(row) != 3 {
		return shapeErrorf("Invalid number of values returned from mysql_innodb_cluster_metadata.schema_version: expected 2 or 3 got %d", len(row))
	}
	return nil
}

func checkMetadataSupported(sess dbsession.Session) error {
	row, err := queryOneRequired(sess, queryMetadataSupported)
	if err != nil {
		return err
	}
	if len(row) != 2 {
		return shapeErrorf("Invalid number of values returned from query for metadata support: expected 2 got %d", len(row))
	}
	if row.Get(0) != "1" {
		return &UnsupportedError{msg: "The provided server contains an unsupported InnoDB cluster metadata: multiple clusters or replicasets defined"}
	}
	if row.Get(1) != "1" {
		return &UnsupportedError{msg: "The provided server contains an unsupported InnoDB cluster metadata: the replicaset's group name does not match the server's replication group"}
	}
	return nil
}

func checkMemberOnline(sess dbsession.Session) error {
	row, err := queryOneRequired(sess, queryMemberState)
	if err != nil {
		return err
	}
	if len(row) != 1 {
		return shapeErrorf("Invalid number of values returned from query for member state: expected 1 got %d", len(row))
	}
	if state := row.Get(0); state != "ONLINE" {
		return &HealthError{State: state}
	}
	return nil
}

func checkGroupQuorum(sess dbsession.Session) error {
	row, err := queryOneRequired(sess, queryGroupQuorum)
	if err != nil {
		return err
	}
	if len(row) != 2 {
		return shapeErrorf("Invalid number of values returned from performance_schema.replication_group_members: expected 2 got %d", len(row))
	}
	online, err := strconv.Atoi(row.Get(0))
	if err != nil {
		return shapeErrorf("Invalid online member count in performance_schema.replication_group_members: '%s'", row.Get(0))
	}
	total, err := strconv.Atoi(row.Get(1))
	if err != nil {
		return shapeErrorf("Invalid member count in performance_schema.replication_group_members: '%s'", row.Get(1))
	}
	if online*2 <= total {
		return &QuorumError{Online: online, Total: total}
	}
	return nil
}
