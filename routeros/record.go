package routeros

import "strings"

// MinIPv6MTU is the minimum MTU IPv6 requires of every link (RFC8200).
const MinIPv6MTU = 1280

// InterfaceRecord is one row of a RouterOS interface table.
// For L2TP server interfaces the user and client address columns identify
// the tunnel session terminating on the interface.
type InterfaceRecord struct {
	ID            int
	Flags         string
	Name          string
	User          string
	MTU           int
	ClientAddress string
}

// Running reports whether the interface carries the R flag.
func (r InterfaceRecord) Running() bool { return strings.ContainsRune(r.Flags, 'R') }

// Disabled reports whether the interface carries the X flag.
func (r InterfaceRecord) Disabled() bool { return strings.ContainsRune(r.Flags, 'X') }

// Dynamic reports whether the interface carries the D flag.
func (r InterfaceRecord) Dynamic() bool { return strings.ContainsRune(r.Flags, 'D') }

// AddressRecord is one row of the RouterOS IPv6 address table.
type AddressRecord struct {
	ID        int
	Flags     string
	Address   string
	Interface string
	Advertise bool
	Comment   string
}

// Host returns the address with any prefix length stripped.  Address
// identity on an interface ignores the prefix length: a /126 and a /64 of
// the same host address are the same address for reconciliation purposes.
func (r AddressRecord) Host() string { return HostPart(r.Address) }

// HostPart strips a trailing /prefix-length from address, if present.
func HostPart(address string) string {
	if i := strings.IndexByte(address, '/'); i >= 0 {
		return address[:i]
	}
	return address
}

// RouteRecord is one row of the RouterOS IPv6 route table.
type RouteRecord struct {
	ID         int
	Flags      string
	DstAddress string
	Gateway    string
	Distance   int
	Comment    string
}

// TunnelSession is a live tunnel session recovered from the free-form
// l2tp-server listing: the backing interface, the authenticated user and
// the IPv4 address the client connected from.
type TunnelSession struct {
	Interface     string
	User          string
	ClientAddress string
}

// PingResult aggregates one echo-request probe against a single target.
type PingResult struct {
	Target      string
	Sent        int
	Received    int
	LossPercent int
	Min         float64
	Avg         float64
	Max         float64
	// Times holds per-packet latencies when the reply carried no summary
	// line and the result was derived from individual samples.
	Times   []float64
	Success bool
}

// MTUProbeResult is the outcome of an ascending path-MTU scan.
type MTUProbeResult struct {
	// TestedSizes lists every size attempted, including the first size
	// that failed to draw a response.
	TestedSizes []int
	// MaxMTU is the highest size that produced a response, 0 when none did.
	MaxMTU int
	// RecommendedMTU leaves headroom below MaxMTU for encapsulation
	// overhead.
	RecommendedMTU int
}

// Adequate reports whether the probed path can carry minimum-size IPv6.
func (r MTUProbeResult) Adequate() bool { return r.MaxMTU >= MinIPv6MTU }
