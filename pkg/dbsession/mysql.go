package dbsession

import (
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// ConnectOptions describes how to reach the bootstrap server.
type ConnectOptions struct {
	Host     string
	Port     uint16
	Socket   string // when set, connect over the unix socket instead of TCP
	Username string
	Password string
	SSL      SSLOptions

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// MySQLSession is the production Session implementation on top of
// database/sql and the go-sql-driver.
type MySQLSession struct {
	db *sql.DB
}

const defaultTimeout = 30 * time.Second

// Connect opens a session and verifies the server is reachable.
func Connect(opts ConnectOptions) (*MySQLSession, error) {
	cfg := mysql.NewConfig()
	cfg.User = opts.Username
	cfg.Passwd = opts.Password
	if opts.Socket != "" {
		cfg.Net = "unix"
		cfg.Addr = opts.Socket
	} else {
		cfg.Net = "tcp"
		port := opts.Port
		if port == 0 {
			port = 3306
		}
		cfg.Addr = net.JoinHostPort(opts.Host, strconv.Itoa(int(port)))
	}
	cfg.Timeout = opts.ConnectTimeout
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.ReadTimeout = opts.ReadTimeout
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultTimeout
	}

	tlsName, err := tlsConfigName(opts.SSL)
	if err != nil {
		return nil, err
	}
	cfg.TLSConfig = tlsName

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("connecting to metadata server: %w", err)
	}
	db.SetMaxOpenConns(1) // the bootstrap workflow is a single serialized conversation
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, wrapServerError(err)
	}
	return &MySQLSession{db: db}, nil
}

// tlsConfigName maps SSLOptions to a driver tls parameter, registering a
// custom tls.Config when certificate material is involved.
func tlsConfigName(ssl SSLOptions) (string, error) {
	mode := strings.ToUpper(ssl.Mode)
	needsCustom := ssl.CA != "" || ssl.CAPath != "" || ssl.Cert != "" || ssl.Key != "" ||
		mode == SSLModeVerifyCA || mode == SSLModeVerifyIdentity

	if !needsCustom {
		switch mode {
		case SSLModeDisabled:
			return "false", nil
		case "", SSLModePreferred:
			return "preferred", nil
		case SSLModeRequired:
			return "skip-verify", nil
		}
	}

	tc := &tls.Config{}
	switch mode {
	case SSLModeVerifyIdentity:
		// full verification, nothing to relax
	case SSLModeVerifyCA:
		tc.InsecureSkipVerify = true
		tc.VerifyPeerCertificate = verifyCAOnly(tc)
	default:
		tc.InsecureSkipVerify = true
	}
	if ssl.CA != "" {
		pem, err := os.ReadFile(ssl.CA)
		if err != nil {
			return "", fmt.Errorf("reading --ssl-ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return "", fmt.Errorf("no certificates found in --ssl-ca file '%s'", ssl.CA)
		}
		tc.RootCAs = pool
	}
	if ssl.Cert != "" || ssl.Key != "" {
		cert, err := tls.LoadX509KeyPair(ssl.Cert, ssl.Key)
		if err != nil {
			return "", fmt.Errorf("loading --ssl-cert/--ssl-key pair: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}

	name := "bootstrap-" + uuid.NewString()
	if err := mysql.RegisterTLSConfig(name, tc); err != nil {
		return "", fmt.Errorf("registering TLS configuration: %w", err)
	}
	return name, nil
}

// verifyCAOnly validates the chain against RootCAs without checking the
// server hostname (VERIFY_CA semantics).
func verifyCAOnly(tc *tls.Config) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		certs := make([]*x509.Certificate, 0, len(rawCerts))
		for _, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return err
			}
			certs = append(certs, cert)
		}
		if len(certs) == 0 {
			return errors.New("server presented no certificate")
		}
		pool := tc.RootCAs
		if pool == nil {
			var err error
			pool, err = x509.SystemCertPool()
			if err != nil {
				return err
			}
		}
		inter := x509.NewCertPool()
		for _, cert := range certs[1:] {
			inter.AddCert(cert)
		}
		_, err := certs[0].Verify(x509.VerifyOptions{Roots: pool, Intermediates: inter})
		return err
	}
}

func (s *MySQLSession) Query(stmt string) ([]Row, error) {
	rows, err := s.db.Query(stmt)
	if err != nil {
		return nil, wrapServerError(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, wrapServerError(err)
	}
	var out []Row
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, wrapServerError(err)
		}
		row := make(Row, len(cols))
		for i, v := range vals {
			if v.Valid {
				s := v.String
				row[i] = &s
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapServerError(err)
	}
	return out, nil
}

func (s *MySQLSession) QueryOne(stmt string) (Row, error) {
	rows, err := s.Query(stmt)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *MySQLSession) Execute(stmt string) (int64, error) {
	res, err := s.db.Exec(stmt)
	if err != nil {
		return 0, wrapServerError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, nil
	}
	return id, nil
}

// Close releases the underlying connection.
func (s *MySQLSession) Close() error { return s.db.Close() }

func wrapServerError(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return &Error{Code: me.Number, Message: me.Message}
	}
	return err
}
