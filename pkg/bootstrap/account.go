package bootstrap

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/mysqlgear/router-bootstrap/pkg/dbsession"
)

const (
	// Server error codes the provisioning loop dispatches on.
	errPluginNotLoaded  = 1524
	errPasswordRejected = 1819

	passwordRetriesMin     = 1
	passwordRetriesMax     = 10000
	defaultPasswordRetries = 5
)

// ValidatePasswordRetries parses the password-retries option. The range
// check happens here, before any server work, so a typo never burns a
// registered router id.
func ValidatePasswordRetries(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < passwordRetriesMin || n > passwordRetriesMax {
		return 0, configErrorf(
			"Invalid password-retries value '%s'; please pick a value from %d to %d",
			value, passwordRetriesMin, passwordRetriesMax)
	}
	return n, nil
}

// AccountProvisioner creates and removes the database account the
// router uses against the metadata schema and the group replication
// performance tables.
type AccountProvisioner struct {
	Session dbsession.Session
	Random  RandomGenerator

	// Retries bounds how many generated passwords are offered to the
	// server before giving up on a password policy rejection. Zero
	// means the default of 5.
	Retries int

	// ForcePasswordValidation skips the hashed-credential path so the
	// server's validate_password plugin sees the plaintext.
	ForcePasswordValidation bool

	Logger *zap.Logger
}

func (p *AccountProvisioner) retries() int {
	if p.Retries == 0 {
		return defaultPasswordRetries
	}
	return p.Retries
}

func (p *AccountProvisioner) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// CreateRouterAccounts creates username at every host pattern and
// grants it read access to the metadata. It returns the password that
// ended up on the account.
//
// The first creation attempt sends a pre-hashed credential so the
// plaintext never crosses the wire. Two server responses redirect the
// flow: 1524 (mysql_native_password not loaded) falls back to a
// plaintext CREATE USER exactly once, and 1819 (password rejected by
// policy) regenerates the password and retries, bounded by Retries.
// Every failed attempt is followed by a ROLLBACK.
func (p *AccountProvisioner) CreateRouterAccounts(username string, hosts []string) (string, error) {
	password := p.Random.Generate(passwordLength)

	if !p.ForcePasswordValidation {
		err := p.createAll(username, hosts, password, true)
		if err == nil {
			return password, nil
		}
		p.rollback()
		if code, ok := serverErrorCode(err); !ok || code != errPluginNotLoaded {
			return "", err
		}
		p.logger().Debug("mysql_native_password plugin not available, retrying with plaintext credential",
			zap.String("username", username))
	}

	attempts := 0
	operation := func() error {
		attempts++
		err := p.createAll(username, hosts, password, false)
		if err == nil {
			return nil
		}
		p.rollback()
		if code, ok := serverErrorCode(err); ok && code == errPasswordRejected {
			password = p.Random.Generate(passwordLength)
			return err
		}
		return backoff.Permanent(err)
	}
	err := backoff.Retry(operation,
		backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(p.retries()-1)))
	if err != nil {
		if code, ok := serverErrorCode(err); ok && code == errPasswordRejected {
			return "", accountErrorf(
				"Error creating MySQL account for router: generated password was rejected by the server's password policy %d times. "+
					"Try to decrease the validate_password rules and try the operation again.", attempts)
		}
		return "", err
	}
	return password, nil
}

func (p *AccountProvisioner) createAll(username string, hosts []string, password string, hashed bool) error {
	for _, host := range hosts {
		account := fmt.Sprintf("%s@'%s'", username, host)
		var create string
		if hashed {
			create = fmt.Sprintf("CREATE USER %s IDENTIFIED WITH mysql_native_password AS '%s'",
				account, mysqlNativePassword(password))
		} else {
			create = fmt.Sprintf("CREATE USER %s IDENTIFIED BY '%s'", account, escapeSQLString(password))
		}
		statements := []string{
			create,
			"GRANT SELECT ON mysql_innodb_cluster_metadata.* TO " + account,
			"GRANT SELECT ON performance_schema.replication_group_members TO " + account,
			"GRANT SELECT ON performance_schema.replication_group_member_stats TO " + account,
		}
		for _, stmt := range statements {
			if _, err := p.Session.Execute(stmt); err != nil {
				return fmt.Errorf("Error creating MySQL account for router: %w", err)
			}
		}
	}
	return nil
}

// DeleteAccountForAllHosts drops every existing account with the given
// username, regardless of host pattern. Used when --force replaces a
// previous deployment that may have been bootstrapped with different
// account hosts.
func (p *AccountProvisioner) DeleteAccountForAllHosts(username string) error {
	row, err := p.Session.QueryOne(
		fmt.Sprintf("SELECT COUNT(*) FROM mysql.user WHERE user = '%s'", username))
	if err != nil {
		return accountErrorf("Error querying for existing Router accounts: %s", serverErrorMessage(err))
	}
	count := 0
	if row != nil && len(row) > 0 && !row.IsNull(0) {
		count, _ = strconv.Atoi(row.Get(0))
	}
	if count == 0 {
		return nil
	}
	statements := []string{
		fmt.Sprintf("SELECT CONCAT('DROP USER ', GROUP_CONCAT(QUOTE(user), '@', QUOTE(host))) INTO @drop_user_sql FROM mysql.user WHERE user LIKE '%s'", username),
		"PREPARE drop_user_stmt FROM @drop_user_sql",
		"EXECUTE drop_user_stmt",
		"DEALLOCATE PREPARE drop_user_stmt",
	}
	for _, stmt := range statements {
		if _, err := p.Session.Execute(stmt); err != nil {
			return accountErrorf("Error removing old MySQL account for router: %s", serverErrorMessage(err))
		}
	}
	return nil
}

func (p *AccountProvisioner) rollback() {
	if _, err := p.Session.Execute("ROLLBACK"); err != nil {
		p.logger().Warn("rollback after failed account creation failed", zap.Error(err))
	}
}

func serverErrorCode(err error) (uint16, bool) {
	var serverErr *dbsession.Error
	if errors.As(err, &serverErr) {
		return serverErr.Code, true
	}
	return 0, false
}

func serverErrorMessage(err error) string {
	var serverErr *dbsession.Error
	if errors.As(err, &serverErr) {
		return serverErr.Message
	}
	return err.Error()
}

// mysqlNativePassword renders the hash the mysql_native_password plugin
// stores: "*" followed by uppercase hex of SHA1(SHA1(password)).
func mysqlNativePassword(password string) string {
	first := sha1.Sum([]byte(password))
	second := sha1.Sum(first[:])
	return fmt.Sprintf("*%X", second)
}

// escapeSQLString doubles the characters that would terminate a single
// quoted SQL string literal. Generated passwords are alphanumeric, so
// this only matters for values read back from existing deployments.
func escapeSQLString(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `''`)
	return replacer.Replace(s)
}
