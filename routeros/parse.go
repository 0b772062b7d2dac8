package routeros

import (
	"regexp"
	"strconv"
	"strings"
)

// The parse functions are total: they never fail on malformed input.
// Lines that match no known shape are dropped, and an output with no
// recognisable table yields an empty result.

var (
	// id, flag column, <interface>, user, mtu, client IPv4
	serverRowRe = regexp.MustCompile(`^\s*(\d+)\s+([DRX ]+?)\s*<([^>]+)>\s+(\S+)\s+(\d+)\s+(\d{1,3}(?:\.\d{1,3}){3})`)

	bracketL2TPRe = regexp.MustCompile(`(?i)<([^>]*l2tp[^>]*)>`)
	ipv4Re        = regexp.MustCompile(`^\d{1,3}(?:\.\d{1,3}){3}$`)
	keyValueRe    = regexp.MustCompile(`([\w-]+)=("[^"]*"|\S+)`)
	quotedRe      = regexp.MustCompile(`"([^"]*)"`)
	bridgeNameRe  = regexp.MustCompile(`name="([^"]+)"`)
	flagColumnRe  = regexp.MustCompile(`^[A-Z]{1,4}$`)

	pingSummaryRe = regexp.MustCompile(`(\d+) packets transmitted, (\d+) received, (\d+)% packet loss`)
	pingRTTRe     = regexp.MustCompile(`min/avg/max = (\d+(?:\.\d+)?)/(\d+(?:\.\d+)?)/(\d+(?:\.\d+)?) ms`)
	pingTimeRe    = regexp.MustCompile(`time=(\d+(?:\.\d+)?)\s*ms`)
)

// ParseServerInterfaces parses "/interface l2tp-server print" output.
// The table header is located by its column names; without a header the
// reply is treated as empty.  Only running interfaces are returned.
func ParseServerInterfaces(output string) []InterfaceRecord {
	lines := strings.Split(output, "\n")

	header := -1
	for i, line := range lines {
		if strings.Contains(line, "NAME") &&
			strings.Contains(line, "USER") &&
			strings.Contains(line, "CLIENT-ADDRESS") {
			header = i
			break
		}
	}
	if header < 0 {
		return nil
	}

	var out []InterfaceRecord
	for _, line := range lines[header+1:] {
		m := serverRowRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id, _ := strconv.Atoi(m[1])
		mtu, _ := strconv.Atoi(m[5])
		rec := InterfaceRecord{
			ID:            id,
			Flags:         strings.TrimSpace(m[2]),
			Name:          m[3],
			User:          m[4],
			MTU:           mtu,
			ClientAddress: m[6],
		}
		if rec.Running() {
			out = append(out, rec)
		}
	}
	return out
}

// ParseAddresses parses "/ipv6 address print" output, in both the columnar
// and the key=value detail forms.  A line whose first token is numeric
// starts a new record; non-numeric lines contribute tokens to the record
// in progress.
func ParseAddresses(output string) []AddressRecord {
	var out []AddressRecord
	var cur *AddressRecord

	flush := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}

	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "Flags:") || isAddressHeader(line) {
			continue
		}

		fields := strings.Fields(line)
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			if cur != nil {
				applyAddressTokens(cur, line)
			}
			continue
		}

		flush()
		cur = &AddressRecord{ID: id}
		rest := fields[1:]
		if len(rest) > 0 && flagColumnRe.MatchString(rest[0]) {
			cur.Flags = rest[0]
			rest = rest[1:]
		}
		restLine := strings.Join(rest, " ")
		if keyValueRe.MatchString(restLine) {
			applyAddressTokens(cur, restLine)
		} else {
			// Columnar form: address, interface, advertise.
			if len(rest) > 0 {
				cur.Address = rest[0]
			}
			if len(rest) > 1 {
				cur.Interface = rest[1]
			}
			if len(rest) > 2 {
				cur.Advertise = rest[2] == "yes"
			}
		}
	}
	flush()
	return out
}

func isAddressHeader(line string) bool {
	return strings.Contains(line, "#") && strings.Contains(line, "ADDRESS")
}

func applyAddressTokens(rec *AddressRecord, line string) {
	for _, m := range keyValueRe.FindAllStringSubmatch(line, -1) {
		value := strings.Trim(m[2], `"`)
		switch m[1] {
		case "address":
			rec.Address = value
		case "interface":
			rec.Interface = value
		case "advertise":
			rec.Advertise = value == "yes"
		case "comment":
			rec.Comment = value
		}
	}
	rest := keyValueRe.ReplaceAllString(line, "")
	if rec.Comment == "" {
		if m := quotedRe.FindStringSubmatch(rest); m != nil {
			rec.Comment = m[1]
		}
	}
	if rec.Address == "" {
		for _, tok := range strings.Fields(rest) {
			if looksLikeIPv6(tok) {
				rec.Address = tok
				break
			}
		}
	}
}

// ParseRoutes parses "/ipv6 route print" output, in both the columnar and
// the key=value detail forms, with the same record-start and continuation
// rules as ParseAddresses.
func ParseRoutes(output string) []RouteRecord {
	var out []RouteRecord
	var cur *RouteRecord

	flush := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}

	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "Flags:") || isRouteHeader(line) {
			continue
		}

		fields := strings.Fields(line)
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			if cur != nil {
				applyRouteTokens(cur, line)
			}
			continue
		}

		flush()
		cur = &RouteRecord{ID: id}
		rest := fields[1:]
		var flags []string
		for len(rest) > 0 && flagColumnRe.MatchString(rest[0]) {
			flags = append(flags, rest[0])
			rest = rest[1:]
		}
		cur.Flags = strings.Join(flags, "")
		applyRouteTokens(cur, strings.Join(rest, " "))
		if cur.DstAddress == "" && len(rest) > 0 && looksLikeIPv6(rest[0]) {
			// Columnar form: dst-address, gateway, distance.
			cur.DstAddress = rest[0]
			if len(rest) > 1 {
				cur.Gateway = rest[1]
			}
			if len(rest) > 2 {
				cur.Distance, _ = strconv.Atoi(rest[2])
			}
		}
	}
	flush()
	return out
}

func isRouteHeader(line string) bool {
	return strings.Contains(line, "#") && strings.Contains(line, "DST-ADDRESS")
}

func applyRouteTokens(rec *RouteRecord, line string) {
	for _, m := range keyValueRe.FindAllStringSubmatch(line, -1) {
		value := strings.Trim(m[2], `"`)
		switch m[1] {
		case "dst-address":
			rec.DstAddress = value
		case "gateway":
			rec.Gateway = value
		case "distance":
			rec.Distance, _ = strconv.Atoi(value)
		case "comment":
			rec.Comment = value
		}
	}
}

// looksLikeIPv6 reports whether tok reads as an IPv6 address or prefix.
func looksLikeIPv6(tok string) bool {
	return strings.Contains(tok, ":")
}

// ParseTunnelSessions recovers live tunnel sessions from the free-form
// l2tp-server listing.  There is no reliable header for this reply, so it
// falls back to line-level matching: the interface comes from the
// angle-bracket token, the client address is the first IPv4-looking token
// and the token before it is taken as the session's user.
func ParseTunnelSessions(output string) []TunnelSession {
	var out []TunnelSession
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(strings.ToLower(line), "l2tp-") {
			continue
		}
		if !strings.Contains(line, "R") && !strings.Contains(strings.ToLower(line), "running") {
			continue
		}
		m := bracketL2TPRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		ts := TunnelSession{Interface: m[1]}
		fields := strings.Fields(line)
		for i, f := range fields {
			if ipv4Re.MatchString(f) {
				ts.ClientAddress = f
				if i > 0 {
					ts.User = fields[i-1]
				}
				break
			}
		}
		out = append(out, ts)
	}
	return out
}

// ParseClientInterfaceNames extracts L2TP client interface names from the
// "/interface l2tp-client print" reply.  Client listings have no stable
// column layout, so any token carrying the l2tp- prefix counts, with the
// angle brackets of a running interface stripped.
func ParseClientInterfaceNames(output string) []string {
	var out []string
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(strings.ToLower(line), "l2tp-") {
			continue
		}
		for _, tok := range strings.Fields(line) {
			if !strings.Contains(tok, "l2tp-") {
				continue
			}
			out = append(out, strings.Trim(tok, "<>"))
			break
		}
	}
	return out
}

// ParseBridgeNames extracts the names of running bridges from
// "/interface bridge print" output.
func ParseBridgeNames(output string) []string {
	var out []string
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "R") {
			continue
		}
		if m := bridgeNameRe.FindStringSubmatch(line); m != nil {
			out = append(out, m[1])
		}
	}
	return out
}

// ParsePing reduces ping output to a PingResult.  The trailing summary
// lines are authoritative when present; otherwise the result is aggregated
// from individual per-packet latency lines, with sent giving the number of
// requests that were issued.
func ParsePing(output, target string, sent int) PingResult {
	res := PingResult{Target: target, Sent: sent, LossPercent: 100}

	var times []float64
	summary := false
	for _, line := range strings.Split(output, "\n") {
		if m := pingSummaryRe.FindStringSubmatch(line); m != nil {
			res.Sent, _ = strconv.Atoi(m[1])
			res.Received, _ = strconv.Atoi(m[2])
			res.LossPercent, _ = strconv.Atoi(m[3])
			res.Success = res.LossPercent < 100
			summary = true
			continue
		}
		if m := pingRTTRe.FindStringSubmatch(line); m != nil {
			res.Min, _ = strconv.ParseFloat(m[1], 64)
			res.Avg, _ = strconv.ParseFloat(m[2], 64)
			res.Max, _ = strconv.ParseFloat(m[3], 64)
			continue
		}
		if m := pingTimeRe.FindStringSubmatch(line); m != nil {
			t, _ := strconv.ParseFloat(m[1], 64)
			times = append(times, t)
		}
	}

	if summary || len(times) == 0 {
		return res
	}

	res.Times = times
	res.Received = len(times)
	if res.Sent <= 0 {
		res.Sent = len(times)
	}
	loss := 100 - (100*res.Received)/res.Sent
	if loss < 0 {
		loss = 0
	}
	res.LossPercent = loss

	res.Min, res.Max = times[0], times[0]
	var sum float64
	for _, t := range times {
		if t < res.Min {
			res.Min = t
		}
		if t > res.Max {
			res.Max = t
		}
		sum += t
	}
	res.Avg = sum / float64(len(times))
	res.Success = true
	return res
}
