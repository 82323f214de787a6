package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mysqlgear/router-bootstrap/pkg/bootstrap"
	"github.com/mysqlgear/router-bootstrap/pkg/dbsession"
	"github.com/mysqlgear/router-bootstrap/pkg/gr"
	"github.com/mysqlgear/router-bootstrap/pkg/metadata"
	"github.com/mysqlgear/router-bootstrap/pkg/sysuser"
)

func main() {
	logger, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := newRootCmd(logger).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	if os.Getenv("ROUTER_BOOTSTRAP_DEBUG") != "" {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

type bootstrapFlags struct {
	bootstrapURI string
	directory    string
	name         string
	force        bool

	passwordRetries         string
	forcePasswordValidation bool
	accountHosts            []string
	systemUser              string
	defaultsFile            string

	basePort    string
	bindAddress string
	useSockets  bool
	skipTCP     bool

	sslMode    string
	sslCipher  string
	tlsVersion string
	sslCA      string
	sslCAPath  string
	sslCRL     string
	sslCRLPath string
	sslCert    string
	sslKey     string
}

func newRootCmd(logger *zap.Logger) *cobra.Command {
	flags := &bootstrapFlags{}

	cmd := &cobra.Command{
		Use:   "router-bootstrap",
		Short: "Bootstrap a MySQL Router against an InnoDB cluster",
		Long: `router-bootstrap connects to a member of an InnoDB cluster, validates its
metadata and group replication state, provisions a dedicated metadata
account and generates a self-contained router deployment directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBootstrap(cmd, flags, logger)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&flags.bootstrapURI, "bootstrap", "B", "", "URI or host of a cluster member to bootstrap from")
	fs.StringVarP(&flags.directory, "directory", "d", "", "deployment directory to create or refresh")
	fs.StringVar(&flags.name, "name", "", "symbolic name for this router instance")
	fs.BoolVar(&flags.force, "force", false, "replace an existing deployment with a different identity")
	fs.StringVar(&flags.passwordRetries, "password-retries", "", "attempts at generating a policy-compliant account password (1-10000)")
	fs.BoolVar(&flags.forcePasswordValidation, "force-password-validation", false, "always send the plaintext password so the server's policy applies")
	fs.StringArrayVar(&flags.accountHosts, "account-host", nil, "host pattern the router account is created for (repeatable)")
	fs.StringVarP(&flags.systemUser, "user", "u", "", "system user to own the deployment and run the router")
	fs.StringVar(&flags.defaultsFile, "defaults-file", "", "TOML or YAML file with bootstrap option defaults")
	fs.StringVar(&flags.basePort, "base-port", "", "base port for the routing endpoints")
	fs.StringVar(&flags.bindAddress, "bind-address", "", "IP address the routing endpoints bind to")
	fs.BoolVar(&flags.useSockets, "use-sockets", false, "also expose the endpoints on unix sockets")
	fs.BoolVar(&flags.skipTCP, "skip-tcp", false, "do not expose TCP endpoints")
	fs.StringVar(&flags.sslMode, "ssl-mode", "", "SSL mode for the metadata connection (DISABLED|PREFERRED|REQUIRED|VERIFY_CA|VERIFY_IDENTITY)")
	fs.StringVar(&flags.sslCipher, "ssl-cipher", "", "permitted SSL ciphers")
	fs.StringVar(&flags.tlsVersion, "tls-version", "", "permitted TLS versions")
	fs.StringVar(&flags.sslCA, "ssl-ca", "", "CA certificate file")
	fs.StringVar(&flags.sslCAPath, "ssl-capath", "", "CA certificate directory")
	fs.StringVar(&flags.sslCRL, "ssl-crl", "", "certificate revocation list file")
	fs.StringVar(&flags.sslCRLPath, "ssl-crlpath", "", "certificate revocation list directory")
	fs.StringVar(&flags.sslCert, "ssl-cert", "", "client certificate file")
	fs.StringVar(&flags.sslKey, "ssl-key", "", "client key file")

	return cmd
}

// nonEmptyFlags are options that accept a value but must not be blank
// when given.
var nonEmptyFlags = []string{
	"bootstrap", "directory", "user", "defaults-file",
	"ssl-cipher", "tls-version", "ssl-ca", "ssl-capath",
	"ssl-crl", "ssl-crlpath", "ssl-cert", "ssl-key",
}

func runBootstrap(cmd *cobra.Command, flags *bootstrapFlags, logger *zap.Logger) error {
	fs := cmd.Flags()
	for _, name := range nonEmptyFlags {
		if fs.Changed(name) {
			if value, _ := fs.GetString(name); value == "" {
				return fmt.Errorf("Value for option '--%s' can't be empty.", name)
			}
		}
	}
	if flags.defaultsFile != "" {
		defaults, err := bootstrap.LoadDefaults(flags.defaultsFile)
		if err != nil {
			return err
		}
		applyDefaults(fs, flags, defaults)
	}

	if flags.bootstrapURI == "" {
		if fs.Changed("password-retries") {
			return fmt.Errorf("Option --password-retries can only be used together with -B/--bootstrap")
		}
		return fmt.Errorf("Option -B/--bootstrap is required")
	}
	if flags.directory == "" {
		return fmt.Errorf("Option -d/--directory is required")
	}

	// reject bad names and retry budgets before the password prompt and
	// before any connection is opened
	if err := bootstrap.CheckRouterName(flags.name); err != nil {
		return err
	}
	if flags.passwordRetries != "" {
		if _, err := bootstrap.ValidatePasswordRetries(flags.passwordRetries); err != nil {
			return err
		}
	}

	if flags.sslMode != "" || fs.Changed("ssl-mode") {
		canonical, err := dbsession.ValidateSSLMode(flags.sslMode)
		if err != nil {
			return err
		}
		_ = canonical // user spelling is preserved in the generated config
	}

	connectOpts, err := bootstrap.ParseBootstrapURI(flags.bootstrapURI)
	if err != nil {
		return err
	}
	if connectOpts.Username == "" {
		connectOpts.Username = "root"
	}
	if connectOpts.Password == "" {
		password, err := bootstrap.PromptPassword(
			fmt.Sprintf("Please enter MySQL password for %s: ", connectOpts.Username))
		if err != nil {
			return err
		}
		connectOpts.Password = password
	}
	connectOpts.SSL = dbsession.SSLOptions{
		Mode:       flags.sslMode,
		Cipher:     flags.sslCipher,
		TLSVersion: flags.tlsVersion,
		CA:         flags.sslCA,
		CAPath:     flags.sslCAPath,
		CRL:        flags.sslCRL,
		CRLPath:    flags.sslCRLPath,
		Cert:       flags.sslCert,
		Key:        flags.sslKey,
	}

	sess, err := dbsession.Connect(connectOpts)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := metadata.CheckMetadataSession(sess); err != nil {
		return err
	}
	if _, err := bootstrap.WarnOnNoSSL(sess, flags.sslMode, logger); err != nil {
		return err
	}

	topology, err := gr.FetchTopology(sess, logger)
	if err != nil {
		return err
	}
	logger.Info("group replication topology discovered",
		zap.Int("members", len(topology.Members)),
		zap.Bool("single_primary", topology.SinglePrimary))

	servers, err := metadata.FetchBootstrapServers(sess)
	if err != nil {
		return err
	}

	routerBinary, err := os.Executable()
	if err != nil {
		routerBinary = os.Args[0]
	}
	deployer := &bootstrap.Deployer{
		Session:      sess,
		Random:       bootstrap.CryptoRandomGenerator{},
		Logger:       logger,
		SysUser:      sysuser.System{},
		PromptKey:    bootstrap.PromptPassword,
		RouterBinary: routerBinary,
	}
	opts := bootstrap.DeployOptions{
		Directory:               flags.directory,
		Name:                    flags.name,
		Force:                   flags.force,
		PasswordRetries:         flags.passwordRetries,
		ForcePasswordValidation: flags.forcePasswordValidation,
		AccountHosts:            flags.accountHosts,
		SystemUser:              flags.systemUser,
		KeyringFilename:         "keyring",
		MasterKeyFilename:       "mysqlrouter.key",
		UserOptions:             userOptions(flags),
	}
	return deployer.DeployDirectory(servers, opts)
}

func userOptions(flags *bootstrapFlags) map[string]string {
	options := map[string]string{}
	set := func(key, value string) {
		if value != "" {
			options[key] = value
		}
	}
	set("base-port", flags.basePort)
	set("bind-address", flags.bindAddress)
	if flags.useSockets {
		options["use-sockets"] = "1"
	}
	if flags.skipTCP {
		options["skip-tcp"] = "1"
	}
	set("ssl_mode", flags.sslMode)
	set("ssl_cipher", flags.sslCipher)
	set("tls_version", flags.tlsVersion)
	set("ssl_ca", flags.sslCA)
	set("ssl_capath", flags.sslCAPath)
	set("ssl_crl", flags.sslCRL)
	set("ssl_crlpath", flags.sslCRLPath)
	return options
}

// applyDefaults fills in flag values from the defaults file for every
// option the user did not set explicitly.
func applyDefaults(fs interface{ Changed(string) bool }, flags *bootstrapFlags, defaults *bootstrap.Defaults) {
	setString := func(flag string, target *string, value string) {
		if value != "" && !fs.Changed(flag) {
			*target = value
		}
	}
	setBool := func(flag string, target *bool, value bool) {
		if value && !fs.Changed(flag) {
			*target = true
		}
	}
	setString("name", &flags.name, defaults.Name)
	setString("directory", &flags.directory, defaults.Directory)
	setString("user", &flags.systemUser, defaults.User)
	setString("password-retries", &flags.passwordRetries, defaults.PasswordRetries)
	setBool("force-password-validation", &flags.forcePasswordValidation, defaults.ForcePasswordValidation)
	if len(defaults.AccountHosts) > 0 && !fs.Changed("account-host") {
		flags.accountHosts = defaults.AccountHosts
	}
	setString("base-port", &flags.basePort, defaults.BasePort)
	setString("bind-address", &flags.bindAddress, defaults.BindAddress)
	setBool("use-sockets", &flags.useSockets, defaults.UseSockets)
	setBool("skip-tcp", &flags.skipTCP, defaults.SkipTCP)
	setString("ssl-mode", &flags.sslMode, defaults.SSLMode)
	setString("ssl-cipher", &flags.sslCipher, defaults.SSLCipher)
	setString("tls-version", &flags.tlsVersion, defaults.TLSVersion)
	setString("ssl-ca", &flags.sslCA, defaults.SSLCA)
	setString("ssl-capath", &flags.sslCAPath, defaults.SSLCAPath)
	setString("ssl-crl", &flags.sslCRL, defaults.SSLCRL)
	setString("ssl-crlpath", &flags.sslCRLPath, defaults.SSLCRLPath)
	setString("ssl-cert", &flags.sslCert, defaults.SSLCert)
	setString("ssl-key", &flags.sslKey, defaults.SSLKey)
}
