package routeros

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// DefaultCommandTimeout bounds a single command when the caller does not
// provide its own limit.
const DefaultCommandTimeout = 30 * time.Second

// Device answers state queries about a single RouterOS device.  Each query
// issues exactly one CLI command through the underlying session and parses
// the reply; an empty result means the queried table has no matching
// entries, which is never an error.
type Device struct {
	session Session
	logger  log.Logger
	timeout time.Duration
}

// NewDevice wraps an open session.  The timeout applies per command.
func NewDevice(session Session, logger log.Logger, timeout time.Duration) *Device {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &Device{session: session, logger: logger, timeout: timeout}
}

// Run executes a single command and returns the raw reply.  A transport
// failure is logged and collapses to an empty reply: the device answering
// nothing and the device being unreachable are handled identically by the
// callers, which re-query when they need certainty.
func (d *Device) Run(cmd string) string {
	out, err := d.session.Exec(cmd, d.timeout)
	if err != nil {
		level.Warn(d.logger).Log("message", "command failed", "command", cmd, "error", err)
		return ""
	}
	level.Debug(d.logger).Log("message", "command executed", "command", cmd, "reply_bytes", len(out))
	return out
}

// ListServerTunnels lists running L2TP server interfaces.
func (d *Device) ListServerTunnels() []InterfaceRecord {
	out := d.Run("/interface l2tp-server print")
	recs := ParseServerInterfaces(out)
	if len(recs) == 0 && strings.TrimSpace(out) != "" {
		level.Warn(d.logger).Log("message", "no tunnel table found in l2tp-server reply")
	}
	return recs
}

// TunnelSessions lists live tunnel sessions using the free-form fallback
// parser, which tolerates replies without a well-formed table header.
func (d *Device) TunnelSessions() []TunnelSession {
	return ParseTunnelSessions(d.Run("/interface l2tp-server print"))
}

// ListClientTunnels lists the names of L2TP client interfaces present on
// the device.
func (d *Device) ListClientTunnels() []string {
	return ParseClientInterfaceNames(d.Run("/interface l2tp-client print"))
}

// ListAddresses lists IPv6 addresses, optionally restricted to one
// interface.
func (d *Device) ListAddresses(iface string) []AddressRecord {
	cmd := "/ipv6 address print"
	if iface != "" {
		cmd += " where interface=" + iface
	}
	return ParseAddresses(d.Run(cmd))
}

// ListRoutes lists IPv6 routes, optionally restricted to one destination
// prefix.
func (d *Device) ListRoutes(dst string) []RouteRecord {
	cmd := "/ipv6 route print"
	if dst != "" {
		cmd += " where dst-address=" + dst
	}
	return ParseRoutes(d.Run(cmd))
}

// FindTunnelInterface locates the live L2TP interface backing the tunnel
// known by name.  Matching is a case-insensitive substring search over each
// candidate line, with the interface taken from the angle-bracket token.
// The first matching line wins; when two tunnel names share a substring the
// earlier table row is selected.
func (d *Device) FindTunnelInterface(name string) (string, bool) {
	out := d.Run("/interface l2tp-server print")
	if strings.TrimSpace(out) == "" {
		level.Warn(d.logger).Log("message", "no reply from l2tp-server listing", "tunnel", name)
		return "", false
	}

	want := strings.ToLower(name)
	for _, line := range strings.Split(out, "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, want) || !strings.Contains(lower, "l2tp-") {
			continue
		}
		if m := bracketL2TPRe.FindStringSubmatch(line); m != nil {
			level.Debug(d.logger).Log("message", "tunnel interface located",
				"tunnel", name, "interface", m[1])
			return m[1], true
		}
	}
	return "", false
}

// InterfaceExists reports whether the named interface is present on the
// device.
func (d *Device) InterfaceExists(name string) bool {
	out := d.Run(fmt.Sprintf("/interface print where name=%s", name))
	return strings.Contains(out, name)
}

// ListBridges lists the names of running bridge interfaces.
func (d *Device) ListBridges() []string {
	return ParseBridgeNames(d.Run("/interface bridge print"))
}

// Ping issues a fixed-count IPv6 echo probe against target.
func (d *Device) Ping(target string, count int) PingResult {
	if count <= 0 {
		count = 4
	}
	out := d.Run(fmt.Sprintf("/ping address=%s count=%d ipv6=yes", target, count))
	return ParsePing(out, target, count)
}

// PingSized sends one non-fragmenting echo request of the given payload
// size and reports whether the target responded.
func (d *Device) PingSized(target string, size int) bool {
	out := d.Run(fmt.Sprintf("/ping address=%s count=1 size=%d do-not-fragment=yes ipv6=yes", target, size))
	return ParsePing(out, target, 1).Received > 0
}
