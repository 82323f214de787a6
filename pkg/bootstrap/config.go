package bootstrap

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ConfigInput carries everything the configuration writer needs beyond
// the endpoint plan.
type ConfigInput struct {
	RouterID         int64
	RouterName       string
	SystemUsername   string
	BootstrapServers []string
	ClusterName      string
	ReplicasetName   string
	Username         string
}

const defaultBindAddress = "0.0.0.0"

// WriteConfig renders the router configuration. The output is consumed
// by an INI parser on the router side, and existing deployments are
// re-read by ExistingConfig, so the key order and spacing are part of
// the contract.
func WriteConfig(w io.Writer, input ConfigInput, options Options) error {
	var b strings.Builder

	b.WriteString("# File automatically generated during MySQL Router bootstrap\n")
	b.WriteString("[DEFAULT]\n")
	if input.RouterName != "" {
		fmt.Fprintf(&b, "name=%s\n", input.RouterName)
	}
	if input.SystemUsername != "" {
		fmt.Fprintf(&b, "user=%s\n", input.SystemUsername)
	}
	if options.OverrideLogDir != "" {
		fmt.Fprintf(&b, "logging_folder=%s\n", options.OverrideLogDir)
	}
	if options.OverrideRunDir != "" {
		fmt.Fprintf(&b, "runtime_folder=%s\n", options.OverrideRunDir)
	}
	if options.OverrideDataDir != "" {
		fmt.Fprintf(&b, "data_folder=%s\n", options.OverrideDataDir)
	}
	if options.KeyringPath != "" {
		fmt.Fprintf(&b, "keyring_path=%s\n", options.KeyringPath)
	}
	if options.MasterKeyPath != "" {
		fmt.Fprintf(&b, "master_key_path=%s\n", options.MasterKeyPath)
	}
	b.WriteString("connect_timeout=30\n")
	b.WriteString("read_timeout=30\n")
	b.WriteString("\n")

	b.WriteString("[logger]\n")
	b.WriteString("level = INFO\n")
	b.WriteString("\n")

	fmt.Fprintf(&b, "[metadata_cache:%s]\n", input.ClusterName)
	fmt.Fprintf(&b, "router_id=%d\n", input.RouterID)
	fmt.Fprintf(&b, "bootstrap_server_addresses=%s\n", strings.Join(input.BootstrapServers, ","))
	fmt.Fprintf(&b, "user=%s\n", input.Username)
	fmt.Fprintf(&b, "metadata_cluster=%s\n", input.ClusterName)
	b.WriteString("ttl=5\n")
	writeSSLOptions(&b, options)
	b.WriteString("\n")

	writeEndpoint(&b, input, options, options.RWEndpoint, "rw", "PRIMARY", "classic")
	writeEndpoint(&b, input, options, options.ROEndpoint, "ro", "SECONDARY", "classic")
	writeEndpoint(&b, input, options, options.RWXEndpoint, "x_rw", "PRIMARY", "x")
	writeEndpoint(&b, input, options, options.ROXEndpoint, "x_ro", "SECONDARY", "x")

	_, err := io.WriteString(w, b.String())
	return err
}

func writeSSLOptions(b *strings.Builder, options Options) {
	pairs := []struct{ key, value string }{
		{"ssl_mode", options.SSL.Mode},
		{"ssl_cipher", options.SSL.Cipher},
		{"tls_version", options.SSL.TLSVersion},
		{"ssl_ca", options.SSL.CA},
		{"ssl_capath", options.SSL.CAPath},
		{"ssl_crl", options.SSL.CRL},
		{"ssl_crlpath", options.SSL.CRLPath},
	}
	for _, pair := range pairs {
		if pair.value != "" {
			fmt.Fprintf(b, "%s=%s\n", pair.key, pair.value)
		}
	}
}

func writeEndpoint(b *strings.Builder, input ConfigInput, options Options, endpoint Endpoint, suffix, role, protocol string) {
	if !endpoint.Enabled() {
		return
	}
	fmt.Fprintf(b, "[routing:%s_%s_%s]\n", input.ClusterName, input.ReplicasetName, suffix)
	if endpoint.Port > 0 {
		bindAddress := options.BindAddress
		if bindAddress == "" {
			bindAddress = defaultBindAddress
		}
		fmt.Fprintf(b, "bind_address=%s\n", bindAddress)
		fmt.Fprintf(b, "bind_port=%d\n", endpoint.Port)
	}
	if endpoint.Socket != "" {
		fmt.Fprintf(b, "socket=%s\n", filepath.Join(options.SocketsDir, endpoint.Socket))
	}
	fmt.Fprintf(b, "destinations=metadata-cache://%s/%s?role=%s\n",
		input.ClusterName, input.ReplicasetName, role)
	b.WriteString("routing_strategy=round-robin\n")
	fmt.Fprintf(b, "protocol=%s\n", protocol)
	b.WriteString("\n")
}
