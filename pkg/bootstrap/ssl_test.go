package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mysqlgear/router-bootstrap/pkg/dbsession"
)

func TestWarnOnNoSSLExplicitModes(t *testing.T) {
	// Explicit modes never query the server.
	for _, mode := range []string{"REQUIRED", "DISABLED", "VERIFY_CA", "VERIFY_IDENTITY", "required", "disabled"} {
		t.Run(mode, func(t *testing.T) {
			r := &dbsession.Replayer{}
			secure, err := WarnOnNoSSL(r, mode, zap.NewNop())
			require.NoError(t, err)
			assert.True(t, secure)
			assert.Empty(t, r.Statements)
		})
	}
}

func TestWarnOnNoSSLEncrypted(t *testing.T) {
	for _, mode := range []string{"", "PREFERRED", "preferred"} {
		t.Run("mode "+mode, func(t *testing.T) {
			r := &dbsession.Replayer{}
			r.ExpectQueryOne("show status like 'ssl_cipher'").
				ThenReturn(dbsession.Str("ssl_cipher", "DHE-RSA-AES256-SHA"))
			secure, err := WarnOnNoSSL(r, mode, zap.NewNop())
			require.NoError(t, err)
			assert.True(t, secure)
		})
	}
}

func TestWarnOnNoSSLUnencrypted(t *testing.T) {
	tests := []struct {
		name string
		row  dbsession.Row
	}{
		{"empty cipher", dbsession.Str("ssl_cipher", "")},
		{"null cipher", dbsession.Row{func() *string { s := "ssl_cipher"; return &s }(), dbsession.Null()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logged := observer.New(zap.WarnLevel)
			r := &dbsession.Replayer{}
			r.ExpectQueryOne("show status like 'ssl_cipher'").ThenReturn(tt.row)

			secure, err := WarnOnNoSSL(r, "PREFERRED", zap.New(core))
			require.NoError(t, err)
			assert.False(t, secure)
			require.Equal(t, 1, logged.Len())
			assert.Contains(t, logged.All()[0].Message, "not encrypted")
		})
	}
}

func TestWarnOnNoSSLBadResult(t *testing.T) {
	tests := []struct {
		name string
		rows []dbsession.Row
	}{
		{"no row", nil},
		{"one column", []dbsession.Row{dbsession.Str("ssl_cipher")}},
		{"three columns", []dbsession.Row{dbsession.Str("ssl_cipher", "x", "y")}},
		{"wrong variable", []dbsession.Row{dbsession.Str("Ssl_version", "TLSv1.2")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &dbsession.Replayer{}
			r.ExpectQueryOne("show status like 'ssl_cipher'").ThenReturn(tt.rows...)
			_, err := WarnOnNoSSL(r, "", zap.NewNop())
			require.Error(t, err)
			assert.Equal(t, "Error reading 'ssl_cipher' status variable", err.Error())
		})
	}
}

func TestWarnOnNoSSLQueryError(t *testing.T) {
	r := &dbsession.Replayer{}
	r.ExpectQueryOne("show status like 'ssl_cipher'").ThenError("lost connection", 2013)
	_, err := WarnOnNoSSL(r, "", zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error checking SSL connection status: ")
	assert.Contains(t, err.Error(), "lost connection")
}
