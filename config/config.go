/*
Package config implements the automation tool's configuration parsers:
a TOML run configuration, and the line-oriented desired-state mapping
files describing tunnels, clients and the host inventory.

The run configuration is TOML.  All tables and keys are optional; the
defaults reproduce a standalone invocation from the working directory.

	# The L2TP server whose tunnels are to be configured.
	# May be overridden with the L2TP_SERVER_HOST environment variable.
	[server]
	host = "192.0.2.1"

	# Desired-state input files.
	[files]
	tunnel_map = "tunnel_mapping.txt"
	client_map = "client_ipv6_mapping.txt"
	hosts = "hosts_clients_l2tp.txt"

	# Connectivity verification probes run after each client pass.
	[probe]
	targets = ["2001:4860:4860::8888", "2001:4860:4860::8844"]
	count = 4 # echo requests per probe

	# Transport timeouts.
	[timeouts]
	connect = 30000 # milliseconds
	command = 30000 # milliseconds
*/
package config

import (
	"fmt"
	"time"

	"github.com/pelletier/go-toml"
)

// Defaults matching a bare invocation with no configuration file keys.
const (
	DefaultTunnelMapPath = "tunnel_mapping.txt"
	DefaultClientMapPath = "client_ipv6_mapping.txt"
	DefaultHostsPath     = "hosts_clients_l2tp.txt"
	DefaultPingCount     = 4
	DefaultTimeout       = 30 * time.Second
)

// Config holds the run configuration for the automation tool.
type Config struct {
	// The entire tree as a map as parsed from the TOML representation.
	Map map[string]interface{}

	ServerHost     string
	TunnelMapPath  string
	ClientMapPath  string
	HostsPath      string
	ProbeTargets   []string
	PingCount      int
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
}

func toString(v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("supplied value could not be parsed as a string")
}

func toStringList(v interface{}) ([]string, error) {
	// TOML arrays can be mixed type, so check value by value.
	list, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected array value")
	}
	var out []string
	for _, item := range list {
		s, err := toString(item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// go-toml's ToMap function represents numbers as either uint64 or int64,
// so number conversion has to account for both.
func toInt(v interface{}) (int, error) {
	if b, ok := v.(int64); ok {
		return int(b), nil
	}
	if b, ok := v.(uint64); ok {
		return int(b), nil
	}
	return 0, fmt.Errorf("unexpected %T value %v", v, v)
}

func toDurationMs(v interface{}) (time.Duration, error) {
	u, err := toInt(v)
	if err != nil {
		return 0, err
	}
	if u < 0 {
		return 0, fmt.Errorf("timeout value %v out of range", u)
	}
	return time.Duration(u) * time.Millisecond, nil
}

func (cfg *Config) loadServer(table map[string]interface{}) error {
	for k, v := range table {
		var err error
		switch k {
		case "host":
			cfg.ServerHost, err = toString(v)
		default:
			return fmt.Errorf("unrecognised parameter '%v'", k)
		}
		if err != nil {
			return fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	return nil
}

func (cfg *Config) loadFiles(table map[string]interface{}) error {
	for k, v := range table {
		var err error
		switch k {
		case "tunnel_map":
			cfg.TunnelMapPath, err = toString(v)
		case "client_map":
			cfg.ClientMapPath, err = toString(v)
		case "hosts":
			cfg.HostsPath, err = toString(v)
		default:
			return fmt.Errorf("unrecognised parameter '%v'", k)
		}
		if err != nil {
			return fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	return nil
}

func (cfg *Config) loadProbe(table map[string]interface{}) error {
	for k, v := range table {
		var err error
		switch k {
		case "targets":
			cfg.ProbeTargets, err = toStringList(v)
		case "count":
			cfg.PingCount, err = toInt(v)
		default:
			return fmt.Errorf("unrecognised parameter '%v'", k)
		}
		if err != nil {
			return fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	return nil
}

func (cfg *Config) loadTimeouts(table map[string]interface{}) error {
	for k, v := range table {
		var err error
		switch k {
		case "connect":
			cfg.ConnectTimeout, err = toDurationMs(v)
		case "command":
			cfg.CommandTimeout, err = toDurationMs(v)
		default:
			return fmt.Errorf("unrecognised parameter '%v'", k)
		}
		if err != nil {
			return fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	return nil
}

func (cfg *Config) loadTables() error {
	for k, got := range cfg.Map {
		table, ok := got.(map[string]interface{})
		if !ok {
			return fmt.Errorf("'%v' must be a table, e.g. '[%v]'", k, k)
		}
		var err error
		switch k {
		case "server":
			err = cfg.loadServer(table)
		case "files":
			err = cfg.loadFiles(table)
		case "probe":
			err = cfg.loadProbe(table)
		case "timeouts":
			err = cfg.loadTimeouts(table)
		default:
			return fmt.Errorf("unrecognised table '%v'", k)
		}
		if err != nil {
			return fmt.Errorf("table %v: %v", k, err)
		}
	}
	return nil
}

func newConfig(tree *toml.Tree) (*Config, error) {
	cfg := &Config{
		Map:            tree.ToMap(),
		TunnelMapPath:  DefaultTunnelMapPath,
		ClientMapPath:  DefaultClientMapPath,
		HostsPath:      DefaultHostsPath,
		PingCount:      DefaultPingCount,
		ConnectTimeout: DefaultTimeout,
		CommandTimeout: DefaultTimeout,
	}
	if err := cfg.loadTables(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads configuration from the specified file.
func LoadFile(path string) (*Config, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %v", err)
	}
	return newConfig(tree)
}

// LoadString loads configuration from the specified string.
func LoadString(content string) (*Config, error) {
	tree, err := toml.Load(content)
	if err != nil {
		return nil, fmt.Errorf("failed to load config string: %v", err)
	}
	return newConfig(tree)
}
