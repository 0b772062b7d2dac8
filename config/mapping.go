package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// The desired-state files are line oriented: one comma-separated record
// per line, '#' starts a comment, blank lines are ignored.  A line with
// the wrong field count is skipped with a warning rather than failing the
// whole file: one operator typo must not block every other device.

// TunnelMapping declares the desired state of one L2TP server tunnel.
//
//	tunnel_name, client_hostname, server_ip, client_ip, route_network, gateway
type TunnelMapping struct {
	Name           string
	ClientHostname string
	ServerIP       string
	ClientIP       string
	RouteNetwork   string
	Gateway        string
}

// ClientMapping declares the desired state of one client device.
//
//	hostname, bridge_interface, bridge_ip, gateway
type ClientMapping struct {
	Bridge   string
	BridgeIP string
	Gateway  string
}

// Host is one entry of the client host inventory.
//
//	ip, hostname, transport_method
type Host struct {
	Addr     string
	Hostname string
	Method   string
}

// forEachRecord streams the well-formed records of a mapping file to fn.
// fn receives the trimmed fields of each line with exactly wantFields
// fields; other lines are warned about and skipped.
func forEachRecord(path string, wantFields int, logger log.Logger, fn func(fields []string)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) != wantFields {
			level.Warn(logger).Log("message", "skipping malformed line",
				"file", path, "line", lineNum,
				"fields", len(parts), "want", wantFields)
			continue
		}

		fields := make([]string, len(parts))
		for i, p := range parts {
			fields[i] = strings.TrimSpace(p)
		}
		fn(fields)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %v", path, err)
	}
	return nil
}

// LoadTunnelMappings loads the tunnel mapping file, preserving declaration
// order.
func LoadTunnelMappings(path string, logger log.Logger) ([]TunnelMapping, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	var out []TunnelMapping
	err := forEachRecord(path, 6, logger, func(f []string) {
		out = append(out, TunnelMapping{
			Name:           f[0],
			ClientHostname: f[1],
			ServerIP:       f[2],
			ClientIP:       f[3],
			RouteNetwork:   f[4],
			Gateway:        f[5],
		})
	})
	if err != nil {
		return nil, err
	}
	level.Info(logger).Log("message", "tunnel mappings loaded", "file", path, "count", len(out))
	return out, nil
}

// LoadClientMappings loads the client mapping file, keyed by hostname.
func LoadClientMappings(path string, logger log.Logger) (map[string]ClientMapping, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	out := make(map[string]ClientMapping)
	err := forEachRecord(path, 4, logger, func(f []string) {
		out[f[0]] = ClientMapping{
			Bridge:   f[1],
			BridgeIP: f[2],
			Gateway:  f[3],
		}
	})
	if err != nil {
		return nil, err
	}
	level.Info(logger).Log("message", "client mappings loaded", "file", path, "count", len(out))
	return out, nil
}

// LoadHosts loads the client host inventory, preserving order.
func LoadHosts(path string, logger log.Logger) ([]Host, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	var out []Host
	err := forEachRecord(path, 3, logger, func(f []string) {
		out = append(out, Host{
			Addr:     f[0],
			Hostname: f[1],
			Method:   f[2],
		})
	})
	if err != nil {
		return nil, err
	}
	level.Info(logger).Log("message", "host inventory loaded", "file", path, "count", len(out))
	return out, nil
}
