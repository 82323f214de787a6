package metadata

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mysqlgear/router-bootstrap/pkg/dbsession"
)

func passChecks(r *dbsession.Replayer) {
	r.ExpectQueryOne("SELECT * FROM mysql_innodb_cluster_metadata.schema_version").
		ThenReturn(dbsession.Str("1", "0", "1"))
	r.ExpectQueryOne("SELECT ").
		ThenReturn(dbsession.Str("1", "1"))
	r.ExpectQueryOne("SELECT member_state").
		ThenReturn(dbsession.Str("ONLINE"))
	r.ExpectQueryOne("SELECT SUM(").
		ThenReturn(dbsession.Str("3", "3"))
}

func TestCheckMetadataSessionOK(t *testing.T) {
	r := &dbsession.Replayer{}
	passChecks(r)
	require.NoError(t, CheckMetadataSession(r))
	assert.True(t, r.Empty())
}

func TestCheckMetadataSessionTwoFieldSchemaVersion(t *testing.T) {
	r := &dbsession.Replayer{}
	r.ExpectQueryOne("SELECT * FROM mysql_innodb_cluster_metadata.schema_version").
		ThenReturn(dbsession.Str("1", "0"))
	r.ExpectQueryOne("SELECT ").ThenReturn(dbsession.Str("1", "1"))
	r.ExpectQueryOne("SELECT member_state").ThenReturn(dbsession.Str("ONLINE"))
	r.ExpectQueryOne("SELECT SUM(").ThenReturn(dbsession.Str("2", "3"))
	require.NoError(t, CheckMetadataSession(r))
}

func TestCheckMetadataSessionSchemaVersionShape(t *testing.T) {
	for _, count := range []int{1, 4, 5} {
		t.Run(fmt.Sprintf("%d_fields", count), func(t *testing.T) {
			vals := make([]string, count)
			for i := range vals {
				vals[i] = "1"
			}
			r := &dbsession.Replayer{}
			r.ExpectQueryOne("SELECT * FROM mysql_innodb_cluster_metadata.schema_version").
				ThenReturn(dbsession.Str(vals...))

			err := CheckMetadataSession(r)
			require.Error(t, err)
			var shapeErr *ShapeError
			assert.ErrorAs(t, err, &shapeErr)
			assert.Equal(t, fmt.Sprintf(
				"Invalid number of values returned from mysql_innodb_cluster_metadata.schema_version: expected 2 or 3 got %d", count),
				err.Error())
		})
	}
}

func TestCheckMetadataSessionNoResult(t *testing.T) {
	r := &dbsession.Replayer{}
	r.ExpectQueryOne("SELECT * FROM mysql_innodb_cluster_metadata.schema_version").
		ThenReturn()

	err := CheckMetadataSession(r)
	require.Error(t, err)
	assert.Equal(t, "No result returned for metadata query", err.Error())
}

func TestCheckMetadataSessionUnsupported(t *testing.T) {
	tests := []struct {
		name       string
		supportRow dbsession.Row
		wantSubstr string
	}{
		{"multiple replicasets", dbsession.Str("0", "1"), "multiple clusters or replicasets"},
		{"foreign group", dbsession.Str("1", "0"), "does not match the server's replication group"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &dbsession.Replayer{}
			r.ExpectQueryOne("SELECT * FROM mysql_innodb_cluster_metadata.schema_version").
				ThenReturn(dbsession.Str("1", "0", "1"))
			r.ExpectQueryOne("SELECT ").ThenReturn(tt.supportRow)

			err := CheckMetadataSession(r)
			require.Error(t, err)
			var unsupported *UnsupportedError
			assert.ErrorAs(t, err, &unsupported)
			assert.Contains(t, err.Error(), tt.wantSubstr)
		})
	}
}

func TestCheckMetadataSessionMemberNotOnline(t *testing.T) {
	for _, state := range []string{"OFFLINE", "RECOVERING", "UNREACHABLE"} {
		t.Run(state, func(t *testing.T) {
			r := &dbsession.Replayer{}
			r.ExpectQueryOne("SELECT * FROM mysql_innodb_cluster_metadata.schema_version").
				ThenReturn(dbsession.Str("1", "0", "1"))
			r.ExpectQueryOne("SELECT ").ThenReturn(dbsession.Str("1", "1"))
			r.ExpectQueryOne("SELECT member_state").ThenReturn(dbsession.Str(state))

			err := CheckMetadataSession(r)
			require.Error(t, err)
			var healthErr *HealthError
			require.ErrorAs(t, err, &healthErr)
			assert.Equal(t, state, healthErr.State)
			assert.Contains(t, err.Error(), "currently not an ONLINE member")
		})
	}
}

func TestCheckMetadataSessionQuorum(t *testing.T) {
	tests := []struct {
		online, total string
		wantQuorum    bool
	}{
		{"3", "3", true},
		{"2", "3", true},
		{"1", "3", false},
		{"1", "2", false},
		{"2", "4", false},
		{"3", "4", true},
		{"1", "1", true},
	}
	for _, tt := range tests {
		t.Run(tt.online+"_of_"+tt.total, func(t *testing.T) {
			r := &dbsession.Replayer{}
			r.ExpectQueryOne("SELECT * FROM mysql_innodb_cluster_metadata.schema_version").
				ThenReturn(dbsession.Str("1", "0", "1"))
			r.ExpectQueryOne("SELECT ").ThenReturn(dbsession.Str("1", "1"))
			r.ExpectQueryOne("SELECT member_state").ThenReturn(dbsession.Str("ONLINE"))
			r.ExpectQueryOne("SELECT SUM(").ThenReturn(dbsession.Str(tt.online, tt.total))

			err := CheckMetadataSession(r)
			if tt.wantQuorum {
				assert.NoError(t, err)
			} else {
				var quorumErr *QuorumError
				require.ErrorAs(t, err, &quorumErr)
			}
		})
	}
}

func TestCheckMetadataSessionTransportError(t *testing.T) {
	r := &dbsession.Replayer{}
	r.ExpectQueryOne("SELECT * FROM mysql_innodb_cluster_metadata.schema_version").
		ThenError("lost connection", 2013)

	err := CheckMetadataSession(r)
	require.Error(t, err)
	var serverErr *dbsession.Error
	assert.True(t, errors.As(err, &serverErr))
	assert.Contains(t, err.Error(), "lost connection")
}
