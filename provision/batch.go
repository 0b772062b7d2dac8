package provision

import (
	"time"

	"github.com/Br10Consultoria/automacao-mikrotik/config"
	"github.com/Br10Consultoria/automacao-mikrotik/routeros"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// ConfigureServer applies every tunnel mapping on the server device in
// declaration order, continuing past per-tunnel failures.  It returns how
// many mappings converged out of the total.
func ConfigureServer(dev *routeros.Device, mappings []config.TunnelMapping, logger log.Logger) (succeeded, total int) {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	sessions := dev.TunnelSessions()
	level.Info(logger).Log("message", "active tunnel sessions on server", "count", len(sessions))

	r := NewReconciler(dev, logger)
	for _, m := range mappings {
		total++
		level.Info(logger).Log("message", "configuring tunnel", "tunnel", m.Name)
		if r.ConfigureServerTunnel(m) {
			succeeded++
			level.Info(logger).Log("message", "tunnel configured", "tunnel", m.Name)
		} else {
			level.Error(logger).Log("message", "tunnel configuration failed", "tunnel", m.Name)
		}
	}

	level.Info(logger).Log("message", "server pass complete",
		"configured", succeeded, "total", total)
	return succeeded, total
}

// ClientBatch configures a set of client devices one after another.  Each
// device gets its own exclusive session, released before the next device
// is dialled; there is no shared state between devices.
type ClientBatch struct {
	Dialer         *routeros.Dialer
	Mappings       map[string]config.ClientMapping
	ProbeTargets   []string
	PingCount      int
	CommandTimeout time.Duration
	Logger         log.Logger
	// Abort, when closed, stops the batch between devices.  The device
	// currently being configured always runs to completion.
	Abort <-chan struct{}

	// dial overrides the dialer in tests.
	dial func(method, host string) (routeros.Session, error)
}

func (b *ClientBatch) dialHost(method, host string) (routeros.Session, error) {
	if b.dial != nil {
		return b.dial(method, host)
	}
	return b.Dialer.Dial(method, host)
}

// Run processes every host in order.  A host without a client mapping, a
// failed connection or a failed configuration pass counts against the
// total but never stops the batch.
func (b *ClientBatch) Run(hosts []config.Host) (succeeded, total int) {
	logger := b.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	total = len(hosts)
	for _, h := range hosts {
		if b.aborted() {
			level.Info(logger).Log("message", "batch aborted, remaining clients skipped")
			return succeeded, total
		}

		hostLogger := log.With(logger, "client", h.Hostname, "address", h.Addr)

		m, ok := b.Mappings[h.Hostname]
		if !ok {
			level.Warn(hostLogger).Log("message", "no client mapping for host")
			continue
		}

		level.Info(hostLogger).Log("message", "configuring client", "transport", h.Method)
		if b.configureOne(h, m, hostLogger) {
			succeeded++
			level.Info(hostLogger).Log("message", "client configured")
		} else {
			level.Error(hostLogger).Log("message", "client configuration failed")
		}
	}

	level.Info(logger).Log("message", "client pass complete",
		"configured", succeeded, "total", total)
	return succeeded, total
}

// configureOne owns the session for exactly one device.
func (b *ClientBatch) configureOne(h config.Host, m config.ClientMapping, logger log.Logger) bool {
	session, err := b.dialHost(h.Method, h.Addr)
	if err != nil {
		level.Error(logger).Log("message", "connection failed", "error", err)
		return false
	}
	defer session.Close()

	dev := routeros.NewDevice(session, logger, b.CommandTimeout)
	r := NewReconciler(dev, logger)
	v := NewVerifier(dev, logger, b.PingCount)
	return r.ConfigureClient(m, v, b.ProbeTargets)
}

func (b *ClientBatch) aborted() bool {
	if b.Abort == nil {
		return false
	}
	select {
	case <-b.Abort:
		return true
	default:
		return false
	}
}
