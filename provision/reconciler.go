package provision

import (
	"fmt"
	"strings"

	"github.com/Br10Consultoria/automacao-mikrotik/config"
	"github.com/Br10Consultoria/automacao-mikrotik/routeros"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// serverTunnelPrefixLen is the mask applied to the server-side tunnel
// address: each tunnel is a point-to-point /126.
const serverTunnelPrefixLen = "/126"

// Reconciler converges one device on desired address, route and tunnel
// facts.  It holds no state between steps: every decision re-queries the
// device, which is the sole source of truth.
type Reconciler struct {
	dev    *routeros.Device
	logger log.Logger
}

func NewReconciler(dev *routeros.Device, logger log.Logger) *Reconciler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Reconciler{dev: dev, logger: logger}
}

// EnsureAddress makes sure the IPv6 address is configured on iface.
// Address identity ignores the prefix length: if an address with the same
// host part is already present the step is skipped.  When a command is
// issued, the reply is classified and an applied address is re-queried to
// confirm it took effect; a confirmation miss is a warning, not a failure.
func (r *Reconciler) EnsureAddress(iface, address, comment string) Outcome {
	host := routeros.HostPart(address)
	if r.addressPresent(iface, host) {
		level.Info(r.logger).Log("message", "address already present",
			"address", address, "interface", iface)
		return OutcomeSkipped
	}

	cmd := fmt.Sprintf("/ipv6 address add address=%s interface=%s advertise=no", address, iface)
	if comment != "" {
		cmd += fmt.Sprintf(" comment=%q", comment)
	}
	reply := r.dev.Run(cmd)

	switch class, reason := classifyReply(reply, addressConflictMarker); class {
	case replyRejected:
		level.Error(r.logger).Log("message", "address add rejected",
			"address", address, "interface", iface, "reason", reason)
		return OutcomeFailed
	case replyAlreadySatisfied:
		level.Info(r.logger).Log("message", "device reports address already exists",
			"address", address, "interface", iface)
		return OutcomeSkipped
	}

	if r.addressPresent(iface, host) {
		level.Info(r.logger).Log("message", "address added",
			"address", address, "interface", iface)
	} else {
		level.Warn(r.logger).Log("message", "could not confirm address after add",
			"address", address, "interface", iface)
	}
	return OutcomeApplied
}

func (r *Reconciler) addressPresent(iface, host string) bool {
	for _, rec := range r.dev.ListAddresses(iface) {
		if rec.Host() == host {
			return true
		}
	}
	return false
}

// RemoveAddress removes the address from iface.  An address that is not
// present counts as success.
func (r *Reconciler) RemoveAddress(iface, address string) bool {
	host := routeros.HostPart(address)
	for _, rec := range r.dev.ListAddresses(iface) {
		if rec.Host() != host {
			continue
		}
		reply := r.dev.Run(fmt.Sprintf("/ipv6 address remove %d", rec.ID))
		if class, reason := classifyReply(reply, ""); class == replyRejected {
			level.Error(r.logger).Log("message", "address remove rejected",
				"address", address, "interface", iface, "reason", reason)
			return false
		}
		level.Info(r.logger).Log("message", "address removed",
			"address", address, "interface", iface)
		return true
	}
	level.Info(r.logger).Log("message", "address not present, nothing to remove",
		"address", address, "interface", iface)
	return true
}

// EnsureRoute makes sure a route to dst exists.  Route identity is the
// destination prefix, narrowed by the gateway when one is given.  When
// checkGateway is set the route is added with ping gateway liveness
// checking.
func (r *Reconciler) EnsureRoute(dst, gateway, comment string, checkGateway bool) Outcome {
	if r.routePresent(dst, gateway) {
		level.Info(r.logger).Log("message", "route already present",
			"dst", dst, "gateway", gateway)
		return OutcomeSkipped
	}

	cmd := fmt.Sprintf("/ipv6 route add dst-address=%s gateway=%s distance=1", dst, gateway)
	if checkGateway {
		cmd += " check-gateway=ping"
	}
	if comment != "" {
		cmd += fmt.Sprintf(" comment=%q", comment)
	}
	reply := r.dev.Run(cmd)

	switch class, reason := classifyReply(reply, routeConflictMarker); class {
	case replyRejected:
		level.Error(r.logger).Log("message", "route add rejected",
			"dst", dst, "gateway", gateway, "reason", reason)
		return OutcomeFailed
	case replyAlreadySatisfied:
		level.Info(r.logger).Log("message", "device reports route already exists",
			"dst", dst, "gateway", gateway)
		return OutcomeSkipped
	}

	if r.routePresent(dst, gateway) {
		level.Info(r.logger).Log("message", "route added", "dst", dst, "gateway", gateway)
	} else {
		level.Warn(r.logger).Log("message", "could not confirm route after add",
			"dst", dst, "gateway", gateway)
	}
	return OutcomeApplied
}

func (r *Reconciler) routePresent(dst, gateway string) bool {
	for _, rec := range r.dev.ListRoutes(dst) {
		if rec.DstAddress != dst {
			continue
		}
		if gateway == "" || rec.Gateway == gateway {
			return true
		}
	}
	return false
}

// RemoveRoute removes the route to dst, narrowed by gateway when given.
// A route that is not present counts as success.
func (r *Reconciler) RemoveRoute(dst, gateway string) bool {
	for _, rec := range r.dev.ListRoutes(dst) {
		if rec.DstAddress != dst {
			continue
		}
		if gateway != "" && rec.Gateway != gateway {
			continue
		}
		reply := r.dev.Run(fmt.Sprintf("/ipv6 route remove %d", rec.ID))
		if class, reason := classifyReply(reply, ""); class == replyRejected {
			level.Error(r.logger).Log("message", "route remove rejected",
				"dst", dst, "reason", reason)
			return false
		}
		level.Info(r.logger).Log("message", "route removed", "dst", dst)
		return true
	}
	level.Info(r.logger).Log("message", "route not present, nothing to remove", "dst", dst)
	return true
}

// ConfigureServerTunnel applies one tunnel mapping on the server: the
// tunnel's live interface is located by name, the server-side /126 address
// is ensured on it, and the route toward the client's network is ensured.
// The first failing step aborts the remaining steps for this tunnel only.
func (r *Reconciler) ConfigureServerTunnel(m config.TunnelMapping) bool {
	iface, ok := r.dev.FindTunnelInterface(m.Name)
	if !ok {
		level.Error(r.logger).Log("message", "tunnel not found on server", "tunnel", m.Name)
		return false
	}
	level.Info(r.logger).Log("message", "tunnel located", "tunnel", m.Name, "interface", iface)

	if r.EnsureAddress(iface, m.ServerIP+serverTunnelPrefixLen, "") == OutcomeFailed {
		return false
	}
	routeComment := "Route-" + strings.ToUpper(m.Name)
	return r.EnsureRoute(m.RouteNetwork, m.Gateway, routeComment, true) != OutcomeFailed
}

// ConfigureClient applies one client mapping: the target bridge must
// exist, the bridge address and the default route are ensured, and the
// verifier runs as a post-condition check.  Verification failures are
// logged but never flip the outcome: the configuration itself converged.
func (r *Reconciler) ConfigureClient(m config.ClientMapping, verifier *Verifier, targets []string) bool {
	if !r.dev.InterfaceExists(m.Bridge) {
		bridges := r.dev.ListBridges()
		level.Error(r.logger).Log("message", "bridge interface not found",
			"interface", m.Bridge,
			"available_bridges", strings.Join(bridges, ","))
		return false
	}

	if r.EnsureAddress(m.Bridge, m.BridgeIP, "") == OutcomeFailed {
		return false
	}
	if r.EnsureRoute("::/0", m.Gateway, "Default-via-L2TP", false) == OutcomeFailed {
		return false
	}

	if verifier != nil {
		report := verifier.Verify(m.Gateway, targets)
		if !report.Overall() {
			level.Warn(r.logger).Log("message", "connectivity verification reported problems",
				"gateway_ok", report.GatewayOK(),
				"external_ok", report.ExternalOK(),
				"mtu_adequate", report.MTUAdequate())
		}
	}
	return true
}
