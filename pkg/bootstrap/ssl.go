package bootstrap

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mysqlgear/router-bootstrap/pkg/dbsession"
)

const querySSLCipher = "show status like 'ssl_cipher'"

// WarnOnNoSSL checks whether the metadata connection ended up encrypted
// when ssl-mode PREFERRED (the default) was in effect, and logs a
// warning if it did not. Explicit modes never warn: the user either
// demanded encryption (and connecting would have failed without it) or
// explicitly declined it. Returns false when a warning was issued.
func WarnOnNoSSL(sess dbsession.Session, sslMode string, logger *zap.Logger) (bool, error) {
	if sslMode != "" && !strings.EqualFold(sslMode, dbsession.SSLModePreferred) {
		return true, nil
	}
	row, err := sess.QueryOne(querySSLCipher)
	if err != nil {
		return false, fmt.Errorf("Error checking SSL connection status: %w", err)
	}
	if row == nil || len(row) != 2 || row.IsNull(0) || row.Get(0) != "ssl_cipher" {
		return false, fmt.Errorf("Error reading 'ssl_cipher' status variable")
	}
	if row.IsNull(1) || row.Get(1) == "" {
		logger.Warn("SSL connection to the metadata server is not encrypted; " +
			"credentials will be transmitted in cleartext. Use --ssl-mode=REQUIRED to enforce encryption.")
		return false, nil
	}
	return true, nil
}
