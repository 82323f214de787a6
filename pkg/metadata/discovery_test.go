package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mysqlgear/router-bootstrap/pkg/dbsession"
)

func TestFetchBootstrapServers(t *testing.T) {
	r := &dbsession.Replayer{}
	r.ExpectQuery("SELECT F.cluster_name").ThenReturn(
		dbsession.Str("mycluster", "myreplicaset", "pm", "server1:3306"),
		dbsession.Str("mycluster", "myreplicaset", "pm", "server2:3306"),
		dbsession.Str("mycluster", "myreplicaset", "pm", "server3:3306"),
	)

	servers, err := FetchBootstrapServers(r)
	require.NoError(t, err)
	assert.Equal(t, "mycluster", servers.ClusterName)
	assert.Equal(t, "myreplicaset", servers.ReplicasetName)
	assert.False(t, servers.MultiMaster)
	assert.Equal(t, []string{
		"mysql://server1:3306", "mysql://server2:3306", "mysql://server3:3306",
	}, servers.Addresses)
	assert.Equal(t, "mysql://server1:3306,mysql://server2:3306,mysql://server3:3306",
		servers.AddressList())
}

func TestFetchBootstrapServersMultiMaster(t *testing.T) {
	r := &dbsession.Replayer{}
	r.ExpectQuery("SELECT F.cluster_name").ThenReturn(
		dbsession.Str("mycluster", "myreplicaset", "mm", "server1:3306"),
	)

	servers, err := FetchBootstrapServers(r)
	require.NoError(t, err)
	assert.True(t, servers.MultiMaster)
}

func TestFetchBootstrapServersEmpty(t *testing.T) {
	r := &dbsession.Replayer{}
	r.ExpectQuery("SELECT F.cluster_name").ThenReturn()

	_, err := FetchBootstrapServers(r)
	require.Error(t, err)
	var unsupported *UnsupportedError
	assert.ErrorAs(t, err, &unsupported)
}

func TestFetchBootstrapServersMixedTopology(t *testing.T) {
	tests := []struct {
		name       string
		rows       []dbsession.Row
		wantSubstr string
	}{
		{
			name: "two clusters",
			rows: []dbsession.Row{
				dbsession.Str("cluster1", "rs", "pm", "a:3306"),
				dbsession.Str("cluster2", "rs", "pm", "b:3306"),
			},
			wantSubstr: "more than one cluster",
		},
		{
			name: "two replicasets",
			rows: []dbsession.Row{
				dbsession.Str("cluster1", "rs1", "pm", "a:3306"),
				dbsession.Str("cluster1", "rs2", "pm", "b:3306"),
			},
			wantSubstr: "more than one replicaset",
		},
		{
			name: "unknown topology type",
			rows: []dbsession.Row{
				dbsession.Str("cluster1", "rs1", "xx", "a:3306"),
			},
			wantSubstr: "Unknown topology type 'xx'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &dbsession.Replayer{}
			r.ExpectQuery("SELECT F.cluster_name").ThenReturn(tt.rows...)

			_, err := FetchBootstrapServers(r)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantSubstr)
		})
	}
}

func TestFetchBootstrapServersShape(t *testing.T) {
	r := &dbsession.Replayer{}
	r.ExpectQuery("SELECT F.cluster_name").ThenReturn(
		dbsession.Str("cluster1", "rs1", "pm"),
	)

	_, err := FetchBootstrapServers(r)
	require.Error(t, err)
	var shapeErr *ShapeError
	assert.ErrorAs(t, err, &shapeErr)
}
