package dbsession

import (
	"fmt"
	"strings"
)

// SSL modes accepted by --ssl-mode. Matching is case-insensitive but the
// user's spelling is preserved, because it is copied verbatim into the
// generated configuration.
const (
	SSLModeDisabled       = "DISABLED"
	SSLModePreferred      = "PREFERRED"
	SSLModeRequired       = "REQUIRED"
	SSLModeVerifyCA       = "VERIFY_CA"
	SSLModeVerifyIdentity = "VERIFY_IDENTITY"
)

// SSLOptions carries the TLS-related connection parameters given on the
// command line. Zero value means "driver defaults".
type SSLOptions struct {
	Mode       string
	Cipher     string
	TLSVersion string
	CA         string
	CAPath     string
	CRL        string
	CRLPath    string
	Cert       string
	Key        string
}

// ValidateSSLMode checks mode against the known set, ignoring case. The
// returned value is the canonical (uppercase) spelling.
func ValidateSSLMode(mode string) (string, error) {
	up := strings.ToUpper(mode)
	switch up {
	case SSLModeDisabled, SSLModePreferred, SSLModeRequired, SSLModeVerifyCA, SSLModeVerifyIdentity:
		return up, nil
	}
	return "", fmt.Errorf("Invalid value for --ssl-mode option")
}
