package provision

import (
	"fmt"

	"github.com/Br10Consultoria/automacao-mikrotik/routeros"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// DefaultProbeTargets are pinged when no external targets are configured.
// Google public DNS answers IPv6 echo requests reliably.
var DefaultProbeTargets = []string{"2001:4860:4860::8888", "2001:4860:4860::8844"}

// mtuProbeSizes is the fixed ascending candidate list for the path-MTU
// scan.  The list is small, so a linear scan is preferred over a binary
// search: every size below the ceiling gets probed exactly once.
var mtuProbeSizes = []int{1280, 1300, 1400, 1500, 1600, 1700, 1800, 1900, 2000}

// mtuSafetyMargin is subtracted from the highest working size to leave
// room for tunnel encapsulation overhead.
const mtuSafetyMargin = 20

// ConnectivityReport combines a gateway probe, external target probes and
// a path-MTU probe for one device.
type ConnectivityReport struct {
	Gateway  routeros.PingResult
	External map[string]routeros.PingResult
	MTU      routeros.MTUProbeResult
}

func (r *ConnectivityReport) GatewayOK() bool { return r.Gateway.Success }

// ExternalOK reports whether at least one external target answered.
func (r *ConnectivityReport) ExternalOK() bool {
	for _, res := range r.External {
		if res.Success {
			return true
		}
	}
	return false
}

func (r *ConnectivityReport) MTUAdequate() bool { return r.MTU.Adequate() }

// Overall reports whether the device has working IPv6 connectivity: the
// gateway answers, some external target answers and the path carries
// minimum-size IPv6 packets.
func (r *ConnectivityReport) Overall() bool {
	return r.GatewayOK() && r.ExternalOK() && r.MTUAdequate()
}

// Verifier runs connectivity probes on a configured device.
type Verifier struct {
	dev    *routeros.Device
	logger log.Logger
	count  int
}

// NewVerifier creates a verifier sending count echo requests per probe.
func NewVerifier(dev *routeros.Device, logger log.Logger, count int) *Verifier {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if count <= 0 {
		count = 4
	}
	return &Verifier{dev: dev, logger: logger, count: count}
}

// Verify probes the gateway, each external target and the path MTU toward
// the gateway, and logs a summary of the results.
func (v *Verifier) Verify(gateway string, targets []string) *ConnectivityReport {
	if len(targets) == 0 {
		targets = DefaultProbeTargets
	}

	report := &ConnectivityReport{
		External: make(map[string]routeros.PingResult, len(targets)),
	}

	level.Info(v.logger).Log("message", "probing gateway", "gateway", gateway)
	report.Gateway = v.dev.Ping(gateway, v.count)

	for _, target := range targets {
		level.Info(v.logger).Log("message", "probing external target", "target", target)
		report.External[target] = v.dev.Ping(target, v.count)
	}

	report.MTU = v.probeMTU(gateway)

	v.logReport(report)
	return report
}

// probeMTU scans the candidate sizes in ascending order and stops at the
// first size that draws no response.  The failing size still counts as
// tested.
func (v *Verifier) probeMTU(target string) routeros.MTUProbeResult {
	var res routeros.MTUProbeResult
	for _, size := range mtuProbeSizes {
		res.TestedSizes = append(res.TestedSizes, size)
		if !v.dev.PingSized(target, size) {
			level.Info(v.logger).Log("message", "mtu probe failed", "size", size)
			break
		}
		level.Debug(v.logger).Log("message", "mtu probe ok", "size", size)
		res.MaxMTU = size
	}

	res.RecommendedMTU = res.MaxMTU
	if res.MaxMTU > mtuSafetyMargin {
		res.RecommendedMTU = res.MaxMTU - mtuSafetyMargin
	}
	return res
}

func (v *Verifier) logReport(report *ConnectivityReport) {
	level.Info(v.logger).Log("message", "gateway probe",
		"target", report.Gateway.Target,
		"success", report.Gateway.Success,
		"loss_percent", report.Gateway.LossPercent,
		"avg_ms", fmt.Sprintf("%.1f", report.Gateway.Avg))

	for target, res := range report.External {
		level.Info(v.logger).Log("message", "external probe",
			"target", target,
			"success", res.Success,
			"loss_percent", res.LossPercent,
			"avg_ms", fmt.Sprintf("%.1f", res.Avg))
	}

	level.Info(v.logger).Log("message", "mtu probe",
		"max_mtu", report.MTU.MaxMTU,
		"recommended_mtu", report.MTU.RecommendedMTU,
		"adequate", report.MTUAdequate())

	level.Info(v.logger).Log("message", "connectivity summary",
		"gateway_reachable", report.GatewayOK(),
		"external_reachable", report.ExternalOK(),
		"mtu_adequate", report.MTUAdequate(),
		"overall", report.Overall())
}
