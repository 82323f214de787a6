package bootstrap

import (
	"fmt"
	"strconv"

	"github.com/mysqlgear/router-bootstrap/pkg/dbsession"
)

const errDuplicateEntry = 1062

// registerRouter records this router instance in the metadata and
// returns its assigned router id. The caller must have an open
// transaction; host and router rows become visible to other routers at
// commit.
//
// A refresh of a previous deployment passes its router id in
// previousRouterID; if that id still exists it is reused, otherwise the
// router is registered anew. reregister permits re-claiming an existing
// (host, name) registration instead of failing on the duplicate.
func registerRouter(sess dbsession.Session, hostname, routerName string, previousRouterID int64, reregister bool) (int64, error) {
	if previousRouterID > 0 {
		row, err := sess.QueryOne(fmt.Sprintf(
			"SELECT router_id FROM mysql_innodb_cluster_metadata.routers WHERE router_id = %d",
			previousRouterID))
		if err != nil {
			return 0, fmt.Errorf("Error querying registered routers: %w", err)
		}
		if row != nil && !row.IsNull(0) {
			return previousRouterID, nil
		}
		// the previous registration is gone, register anew
	}

	row, err := sess.QueryOne(fmt.Sprintf(
		"SELECT host_id, host_name FROM mysql_innodb_cluster_metadata.hosts WHERE host_name = '%s' LIMIT 1",
		escapeSQLString(hostname)))
	if err != nil {
		return 0, fmt.Errorf("Error querying registered hosts: %w", err)
	}
	var hostID int64
	if row != nil && !row.IsNull(0) {
		hostID, err = strconv.ParseInt(row.Get(0), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("Invalid host_id '%s' in metadata", row.Get(0))
		}
	} else {
		hostID, err = sess.Execute(fmt.Sprintf(
			"INSERT INTO mysql_innodb_cluster_metadata.hosts (host_name, location, attributes) VALUES ('%s', '', '{}')",
			escapeSQLString(hostname)))
		if err != nil {
			return 0, fmt.Errorf("Error registering host in metadata: %w", err)
		}
	}

	routerID, err := sess.Execute(fmt.Sprintf(
		"INSERT INTO mysql_innodb_cluster_metadata.routers (host_id, router_name) VALUES (%d, '%s')",
		hostID, escapeSQLString(routerName)))
	if err != nil {
		// Re-registering under the same name is allowed when the
		// deployment is being refreshed or overwritten.
		if code, ok := serverErrorCode(err); ok && code == errDuplicateEntry && reregister {
			return lookupRouterID(sess, hostID, routerName)
		}
		return 0, fmt.Errorf("Error registering router in metadata: %w", err)
	}
	return routerID, nil
}

func lookupRouterID(sess dbsession.Session, hostID int64, routerName string) (int64, error) {
	row, err := sess.QueryOne(fmt.Sprintf(
		"SELECT router_id FROM mysql_innodb_cluster_metadata.routers WHERE host_id = %d AND router_name = '%s'",
		hostID, escapeSQLString(routerName)))
	if err != nil {
		return 0, fmt.Errorf("Error querying registered routers: %w", err)
	}
	if row == nil || row.IsNull(0) {
		return 0, fmt.Errorf("Router '%s' is already registered but its id could not be found", routerName)
	}
	id, err := strconv.ParseInt(row.Get(0), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("Invalid router_id '%s' in metadata", row.Get(0))
	}
	return id, nil
}

// updateRouterAttributes publishes the endpoint plan and metadata
// account of a registered router.
func updateRouterAttributes(sess dbsession.Session, routerID int64, username string, options Options) error {
	endpointValue := func(e Endpoint) string {
		if e.Port > 0 {
			return strconv.Itoa(e.Port)
		}
		return ""
	}
	stmt := fmt.Sprintf(
		"UPDATE mysql_innodb_cluster_metadata.routers SET attributes = "+
			"JSON_SET(IF(attributes IS NULL, '{}', attributes), "+
			"'$.RWEndpoint', '%s', '$.ROEndpoint', '%s', "+
			"'$.RWXEndpoint', '%s', '$.ROXEndpoint', '%s', "+
			"'$.MetadataUser', '%s') WHERE router_id = %d",
		endpointValue(options.RWEndpoint), endpointValue(options.ROEndpoint),
		endpointValue(options.RWXEndpoint), endpointValue(options.ROXEndpoint),
		escapeSQLString(username), routerID)
	if _, err := sess.Execute(stmt); err != nil {
		return fmt.Errorf("Error updating router attributes in metadata: %w", err)
	}
	return nil
}
