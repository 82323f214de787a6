package bootstrap

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mysqlgear/router-bootstrap/pkg/dbsession"
	"github.com/mysqlgear/router-bootstrap/pkg/keyring"
	"github.com/mysqlgear/router-bootstrap/pkg/metadata"
	"github.com/mysqlgear/router-bootstrap/pkg/sysuser"
)

const (
	configFilename    = "mysqlrouter.conf"
	defaultKeyring    = "keyring"
	reservedName      = "system"
	maxRouterNameLen  = 255
	usernameSuffixLen = 12
)

// DeployOptions are the per-run inputs of a directory deployment.
type DeployOptions struct {
	Directory string
	Name      string
	Force     bool

	// PasswordRetries is the raw option value; empty means default.
	PasswordRetries         string
	ForcePasswordValidation bool

	// AccountHosts are the host patterns the router account is created
	// for. Empty means just '%'.
	AccountHosts []string

	// SystemUser is the --user value; deployment files are chowned to
	// it and start.sh gains a sudo branch.
	SystemUser string

	// KeyringFilename and MasterKeyFilename are resolved relative to
	// the deployment directory unless absolute. An empty master key
	// filename means the key is requested from PromptKey.
	KeyringFilename   string
	MasterKeyFilename string

	// UserOptions feed the endpoint plan (base-port, bind-address,
	// use-sockets, skip-tcp, socketsdir, ssl_* and directory
	// overrides).
	UserOptions map[string]string
}

// Deployer performs the directory deployment: account provisioning,
// metadata registration, keyring setup and configuration generation.
type Deployer struct {
	Session dbsession.Session
	Random  RandomGenerator
	Logger  *zap.Logger
	SysUser sysuser.Operations

	// PromptKey asks the operator for a master key when no master key
	// file is configured.
	PromptKey func(prompt string) (string, error)

	// RouterBinary is the executable path baked into start.sh.
	RouterBinary string

	lastRouterID int64
}

func (d *Deployer) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// CheckRouterName rejects names that cannot round-trip through the
// configuration file and the metadata.
func CheckRouterName(name string) error {
	if name == reservedName {
		return configErrorf("Router name '%s' is reserved", name)
	}
	if strings.ContainsAny(name, "\n\r") {
		return configErrorf("Router name '%s' contains invalid characters.", name)
	}
	if len(name) > maxRouterNameLen {
		return configErrorf("Router name '%s' too long (max %d).", name, maxRouterNameLen)
	}
	return nil
}

// DeployDirectory bootstraps the router deployment at opts.Directory
// against the cluster described by servers. The directory is created if
// missing and removed again if this run created it and then failed.
func (d *Deployer) DeployDirectory(servers *metadata.BootstrapServers, opts DeployOptions) error {
	if err := CheckRouterName(opts.Name); err != nil {
		return err
	}
	retries := defaultPasswordRetries
	if opts.PasswordRetries != "" {
		var err error
		if retries, err = ValidatePasswordRetries(opts.PasswordRetries); err != nil {
			return err
		}
	}

	created, err := ensureDirectory(opts.Directory)
	if err != nil {
		return err
	}
	if err := d.deploy(servers, opts, retries); err != nil {
		if created {
			if rmErr := os.RemoveAll(opts.Directory); rmErr != nil {
				d.logger().Warn("could not clean up deployment directory",
					zap.String("directory", opts.Directory), zap.Error(rmErr))
			}
		}
		return err
	}
	return nil
}

func (d *Deployer) deploy(servers *metadata.BootstrapServers, opts DeployOptions, retries int) error {
	confPath := filepath.Join(opts.Directory, configFilename)
	existing, err := ReadExistingConfig(confPath)
	if err != nil {
		return err
	}

	// An empty or identity-less previous config is treated as fresh.
	identityKnown := existing != nil && existing.ClusterName != ""
	identityDiffers := identityKnown &&
		(existing.Name != opts.Name || existing.ClusterName != servers.ClusterName)
	refresh := identityKnown && !identityDiffers
	if identityDiffers && !opts.Force {
		return conflictErrorf(
			"The directory %s already contains a router deployment for a different instance"+
				" (name '%s', cluster '%s'). If you'd like to replace it, please use the --force option",
			opts.Directory, existing.Name, existing.ClusterName)
	}

	masterKey, keyringPath, masterKeyPath, err := d.setupMasterKey(opts)
	if err != nil {
		return err
	}

	userOptions := map[string]string{}
	for k, v := range opts.UserOptions {
		userOptions[k] = v
	}
	if userOptions["socketsdir"] == "" {
		userOptions["socketsdir"] = opts.Directory
	}
	options, err := FillOptions(servers.MultiMaster, userOptions)
	if err != nil {
		return err
	}
	options.KeyringPath = keyringPath
	options.MasterKeyPath = masterKeyPath

	hostname, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("Could not determine local hostname: %w", err)
	}

	// A refresh keeps the previously assigned router id as long as the
	// registration still exists.
	var previousRouterID int64
	if refresh {
		previousRouterID = existing.RouterID
	}

	username, password, err := d.provision(hostname, opts, retries, options, previousRouterID, refresh)
	if err != nil {
		return err
	}

	kr := keyring.New()
	kr.Store(username, "password", password)
	if err := kr.Save(keyringPath, masterKey); err != nil {
		return err
	}

	input := ConfigInput{
		RouterID:         d.lastRouterID,
		RouterName:       opts.Name,
		SystemUsername:   opts.SystemUser,
		BootstrapServers: servers.Addresses,
		ClusterName:      servers.ClusterName,
		ReplicasetName:   servers.ReplicasetName,
		Username:         username,
	}
	if err := d.writeConfigFile(confPath, input, options, identityDiffers && opts.Force); err != nil {
		return err
	}

	if err := WriteStartScript(opts.Directory, d.RouterBinary, opts.SystemUser); err != nil {
		return err
	}
	if err := WriteStopScript(opts.Directory); err != nil {
		return err
	}
	if err := d.applyOwnership(opts, confPath, keyringPath, masterKeyPath); err != nil {
		return err
	}

	d.logger().Info("bootstrap complete",
		zap.String("directory", opts.Directory),
		zap.String("cluster", servers.ClusterName),
		zap.Int64("router_id", d.lastRouterID),
		zap.String("username", username))
	return nil
}

// provision runs the metadata transaction: registration, account
// cleanup and creation, attribute publication.
func (d *Deployer) provision(hostname string, opts DeployOptions, retries int, options Options, previousRouterID int64, refresh bool) (string, string, error) {
	if _, err := d.Session.Execute("START TRANSACTION"); err != nil {
		return "", "", err
	}

	routerID, err := registerRouter(d.Session, hostname, opts.Name, previousRouterID, refresh || opts.Force)
	if err != nil {
		d.rollback()
		return "", "", err
	}
	d.lastRouterID = routerID

	username := fmt.Sprintf("mysql_router%d_%s", routerID, d.Random.Generate(usernameSuffixLen))
	hosts := opts.AccountHosts
	if len(hosts) == 0 {
		hosts = []string{"%"}
	}

	provisioner := &AccountProvisioner{
		Session:                 d.Session,
		Random:                  d.Random,
		Retries:                 retries,
		ForcePasswordValidation: opts.ForcePasswordValidation,
		Logger:                  d.Logger,
	}
	if err := provisioner.DeleteAccountForAllHosts(username); err != nil {
		d.rollback()
		return "", "", err
	}
	password, err := provisioner.CreateRouterAccounts(username, hosts)
	if err != nil {
		// The provisioner has already rolled back.
		return "", "", err
	}
	if err := updateRouterAttributes(d.Session, routerID, username, options); err != nil {
		d.rollback()
		return "", "", err
	}
	if _, err := d.Session.Execute("COMMIT"); err != nil {
		d.rollback()
		return "", "", err
	}
	return username, password, nil
}

// setupMasterKey resolves the keyring and master key locations and
// obtains the key, generating a fresh one when a key file is configured
// but absent.
func (d *Deployer) setupMasterKey(opts DeployOptions) (masterKey, keyringPath, masterKeyPath string, err error) {
	keyringName := opts.KeyringFilename
	if keyringName == "" {
		keyringName = defaultKeyring
	}
	keyringPath = resolveInDirectory(opts.Directory, keyringName)

	if opts.MasterKeyFilename == "" {
		key, promptErr := d.PromptKey("Please provide an encryption key for the router keyring: ")
		if promptErr != nil {
			return "", "", "", promptErr
		}
		if len(key) == 0 {
			return "", "", "", configErrorf("Router key must not be empty")
		}
		if len(key) > keyring.MaxKeyLength {
			return "", "", "", configErrorf("Router key is too long (max %d)", keyring.MaxKeyLength)
		}
		return key, keyringPath, "", nil
	}

	masterKeyPath = resolveInDirectory(opts.Directory, opts.MasterKeyFilename)
	info, statErr := os.Stat(masterKeyPath)
	switch {
	case statErr == nil && info.IsDir():
		return "", "", "", fmt.Errorf("Invalid master key file %s", masterKeyPath)
	case statErr == nil:
		masterKey, err = keyring.ReadMasterKeyFile(masterKeyPath)
		if err != nil {
			return "", "", "", err
		}
	default:
		masterKey, err = keyring.GenerateMasterKey()
		if err != nil {
			return "", "", "", err
		}
		if err = keyring.WriteMasterKeyFile(masterKeyPath, masterKey); err != nil {
			return "", "", "", err
		}
	}
	return masterKey, keyringPath, masterKeyPath, nil
}

// writeConfigFile writes the configuration through a uniquely named
// temporary file so a crash never leaves a half-written config, and
// backs up the previous file when an old deployment is being replaced.
func (d *Deployer) writeConfigFile(confPath string, input ConfigInput, options Options, backup bool) error {
	var buf bytes.Buffer
	if err := WriteConfig(&buf, input, options); err != nil {
		return err
	}
	tmpPath := confPath + ".tmp." + uuid.NewString()
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("Could not create configuration file: %w", err)
	}
	if backup {
		if err := os.Rename(confPath, confPath+".bak"); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("Could not back up existing configuration file: %w", err)
		}
	}
	if err := os.Rename(tmpPath, confPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("Could not save configuration file: %w", err)
	}
	return nil
}

func (d *Deployer) applyOwnership(opts DeployOptions, paths ...string) error {
	if opts.SystemUser == "" {
		return nil
	}
	uid, gid, err := d.SysUser.Lookup(opts.SystemUser)
	if err != nil {
		return err
	}
	targets := append([]string{
		opts.Directory,
		filepath.Join(opts.Directory, "start.sh"),
		filepath.Join(opts.Directory, "stop.sh"),
	}, paths...)
	for _, target := range targets {
		if target == "" {
			continue
		}
		if err := d.SysUser.Chown(target, uid, gid); err != nil {
			return fmt.Errorf("Could not change ownership of %s to user '%s': %w",
				target, opts.SystemUser, err)
		}
	}
	return nil
}

func (d *Deployer) rollback() {
	if _, err := d.Session.Execute("ROLLBACK"); err != nil {
		d.logger().Warn("rollback failed", zap.Error(err))
	}
}

func ensureDirectory(directory string) (created bool, err error) {
	info, err := os.Stat(directory)
	if err == nil {
		if !info.IsDir() {
			return false, configErrorf("Expected --directory option value '%s' to be a directory", directory)
		}
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, fmt.Errorf("Could not access directory '%s': %w", directory, err)
	}
	if err := os.MkdirAll(directory, 0700); err != nil {
		return false, fmt.Errorf("Could not create deployment directory '%s': %w", directory, err)
	}
	return true, nil
}

func resolveInDirectory(directory, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(directory, name)
}
