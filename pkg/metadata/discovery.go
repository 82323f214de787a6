package metadata

import (
	"fmt"
	"strings"

	"github.com/mysqlgear/router-bootstrap/pkg/dbsession"
)

const queryBootstrapServers = "SELECT F.cluster_name, R.replicaset_name, R.topology_type, JSON_UNQUOTE(JSON_EXTRACT(I.addresses, '$.mysqlClassic'))" +
	" FROM mysql_innodb_cluster_metadata.clusters AS F" +
	" JOIN mysql_innodb_cluster_metadata.replicasets AS R ON F.cluster_id = R.cluster_id" +
	" JOIN mysql_innodb_cluster_metadata.instances AS I ON R.replicaset_id = I.replicaset_id"

// BootstrapServers is the discovered identity and member list of the
// cluster the connected server belongs to.
type BootstrapServers struct {
	ClusterName    string
	ReplicasetName string
	MultiMaster    bool

	// Addresses holds one mysql://host:port URI per instance, in the
	// order the metadata returned them.
	Addresses []string
}

// AddressList returns the comma-joined server URI list as written into
// the generated configuration.
func (b *BootstrapServers) AddressList() string {
	return strings.Join(b.Addresses, ",")
}

// FetchBootstrapServers queries the metadata for the cluster identity
// and classic-protocol address of every instance. It refuses metadata
// describing more than one cluster or replicaset.
func FetchBootstrapServers(sess dbsession.Session) (*BootstrapServers, error) {
	rows, err := sess.Query(queryBootstrapServers)
	if err != nil {
		return nil, fmt.Errorf("Error querying metadata for bootstrap servers: %w", err)
	}
	if len(rows) == 0 {
		return nil, &UnsupportedError{msg: "No clusters defined in the metadata. Please bootstrap the InnoDB cluster first"}
	}

	out := &BootstrapServers{}
	for _, row := range rows {
		if len(row) != 4 {
			return nil, shapeErrorf("Invalid number of values returned from query for bootstrap servers: expected 4 got %d", len(row))
		}
		cluster := row.Get(0)
		replicaset := row.Get(1)
		if out.ClusterName == "" {
			out.ClusterName = cluster
			out.ReplicasetName = replicaset
		} else if out.ClusterName != cluster {
			return nil, &UnsupportedError{msg: "Metadata contains more than one cluster, which is not supported"}
		} else if out.ReplicasetName != replicaset {
			return nil, &UnsupportedError{msg: "Metadata contains more than one replicaset, which is not supported"}
		}

		switch row.Get(2) {
		case "pm":
			out.MultiMaster = false
		case "mm":
			out.MultiMaster = true
		default:
			return nil, &UnsupportedError{msg: fmt.Sprintf("Unknown topology type '%s' in metadata", row.Get(2))}
		}

		out.Addresses = append(out.Addresses, "mysql://"+row.Get(3))
	}
	return out, nil
}
