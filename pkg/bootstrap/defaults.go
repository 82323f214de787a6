package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Defaults are bootstrap option presets read from a --defaults-file.
// Command line flags given explicitly always win over these.
type Defaults struct {
	Name                    string   `toml:"name" yaml:"name"`
	Directory               string   `toml:"directory" yaml:"directory"`
	User                    string   `toml:"user" yaml:"user"`
	PasswordRetries         string   `toml:"password-retries" yaml:"password-retries"`
	ForcePasswordValidation bool     `toml:"force-password-validation" yaml:"force-password-validation"`
	AccountHosts            []string `toml:"account-hosts" yaml:"account-hosts"`

	BasePort    string `toml:"base-port" yaml:"base-port"`
	BindAddress string `toml:"bind-address" yaml:"bind-address"`
	UseSockets  bool   `toml:"use-sockets" yaml:"use-sockets"`
	SkipTCP     bool   `toml:"skip-tcp" yaml:"skip-tcp"`

	SSLMode    string `toml:"ssl-mode" yaml:"ssl-mode"`
	SSLCipher  string `toml:"ssl-cipher" yaml:"ssl-cipher"`
	TLSVersion string `toml:"tls-version" yaml:"tls-version"`
	SSLCA      string `toml:"ssl-ca" yaml:"ssl-ca"`
	SSLCAPath  string `toml:"ssl-capath" yaml:"ssl-capath"`
	SSLCRL     string `toml:"ssl-crl" yaml:"ssl-crl"`
	SSLCRLPath string `toml:"ssl-crlpath" yaml:"ssl-crlpath"`
	SSLCert    string `toml:"ssl-cert" yaml:"ssl-cert"`
	SSLKey     string `toml:"ssl-key" yaml:"ssl-key"`
}

// LoadDefaults reads a defaults file, dispatching on the extension.
func LoadDefaults(path string) (*Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Error reading defaults file %s: %w", path, err)
	}
	defaults := &Defaults{}
	switch ext := filepath.Ext(path); ext {
	case ".toml":
		if err := toml.Unmarshal(data, defaults); err != nil {
			return nil, fmt.Errorf("Error parsing defaults file %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, defaults); err != nil {
			return nil, fmt.Errorf("Error parsing defaults file %s: %w", path, err)
		}
	default:
		return nil, configErrorf("Unsupported defaults file format '%s'; use .toml, .yaml or .yml", ext)
	}
	return defaults, nil
}
