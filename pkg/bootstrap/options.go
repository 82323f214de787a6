package bootstrap

import (
	"net"
	"os"
	"strconv"

	"github.com/mysqlgear/router-bootstrap/pkg/dbsession"
)

const (
	defaultRWPort  = 6446
	defaultROPort  = 6447
	defaultRWXPort = 64460
	defaultROXPort = 64470

	basePortMax = 65535 - 3
)

// Endpoint is a single routing listener. A TCP endpoint carries a port,
// a socket endpoint a filename relative to the deployment's socketsdir.
// Both may be set at once.
type Endpoint struct {
	Port   int
	Socket string
}

// Enabled reports whether the endpoint should be emitted at all.
func (e Endpoint) Enabled() bool {
	return e.Port > 0 || e.Socket != ""
}

// Options is the resolved endpoint plan plus the deployment knobs that
// feed straight into the generated configuration.
type Options struct {
	MultiMaster bool
	BindAddress string

	RWEndpoint  Endpoint
	ROEndpoint  Endpoint
	RWXEndpoint Endpoint
	ROXEndpoint Endpoint

	OverrideLogDir  string
	OverrideRunDir  string
	OverrideDataDir string
	SocketsDir      string

	KeyringPath   string
	MasterKeyPath string

	SSL dbsession.SSLOptions
}

// FillOptions turns the raw user-options map into a validated endpoint
// plan. multiMaster disables the read-only endpoints since every member
// accepts writes and no PRIMARY/SECONDARY split exists.
func FillOptions(multiMaster bool, userOptions map[string]string) (Options, error) {
	options := Options{MultiMaster: multiMaster}

	if addr, ok := userOptions["bind-address"]; ok {
		if !validBindAddress(addr) {
			return options, configErrorf("Invalid bind-address value %s", addr)
		}
		options.BindAddress = addr
	}

	basePort := 0
	if value, ok := userOptions["base-port"]; ok {
		port, err := strconv.Atoi(value)
		if err != nil || port < 1 || port > basePortMax {
			return options, configErrorf(
				"Invalid base-port number %s; please pick a value between 1 and %d",
				value, basePortMax)
		}
		basePort = port
	}

	useSockets := userOptions["use-sockets"] == "1"
	skipTCP := userOptions["skip-tcp"] == "1"

	if dir := userOptions["socketsdir"]; useSockets && dir != "" {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return options, configErrorf(
				"Invalid socketsdir value %s; the directory must exist", dir)
		}
	}

	basePortOr := func(fallback int) int {
		if basePort > 0 {
			return basePort
		}
		return fallback
	}
	if !skipTCP {
		options.RWEndpoint.Port = basePortOr(defaultRWPort)
		options.ROEndpoint.Port = basePortOr(defaultROPort-1) + 1
		options.RWXEndpoint.Port = basePortOr(defaultRWXPort-2) + 2
		options.ROXEndpoint.Port = basePortOr(defaultROXPort-3) + 3
	}
	if useSockets {
		options.RWEndpoint.Socket = "mysql.sock"
		options.ROEndpoint.Socket = "mysqlro.sock"
		options.RWXEndpoint.Socket = "mysqlx.sock"
		options.ROXEndpoint.Socket = "mysqlxro.sock"
	}
	if multiMaster {
		options.ROEndpoint = Endpoint{}
		options.ROXEndpoint = Endpoint{}
	}

	options.OverrideLogDir = userOptions["logdir"]
	options.OverrideRunDir = userOptions["rundir"]
	options.OverrideDataDir = userOptions["datadir"]
	options.SocketsDir = userOptions["socketsdir"]

	options.SSL = dbsession.SSLOptions{
		Mode:       userOptions["ssl_mode"],
		Cipher:     userOptions["ssl_cipher"],
		TLSVersion: userOptions["tls_version"],
		CA:         userOptions["ssl_ca"],
		CAPath:     userOptions["ssl_capath"],
		CRL:        userOptions["ssl_crl"],
		CRLPath:    userOptions["ssl_crlpath"],
	}

	return options, nil
}

// validBindAddress accepts an IP literal. Binding is a local-interface
// concern so hostnames ("invalid", "1.2.3.4.5") are rejected up front
// rather than failing at router startup.
func validBindAddress(addr string) bool {
	return net.ParseIP(addr) != nil
}
