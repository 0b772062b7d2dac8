package provision

import (
	"strings"
	"testing"
	"time"

	"github.com/Br10Consultoria/automacao-mikrotik/config"
	"github.com/Br10Consultoria/automacao-mikrotik/routeros"
)

// scriptedSession fabricates device replies from a handler function.
type scriptedSession struct {
	handler  func(cmd string) string
	commands []string
}

func (s *scriptedSession) Exec(cmd string, _ time.Duration) (string, error) {
	s.commands = append(s.commands, cmd)
	if s.handler == nil {
		return "", nil
	}
	return s.handler(cmd), nil
}

func (s *scriptedSession) Close() error    { return nil }
func (s *scriptedSession) Connected() bool { return true }

func (s *scriptedSession) countCommands(substr string) int {
	n := 0
	for _, cmd := range s.commands {
		if strings.Contains(cmd, substr) {
			n++
		}
	}
	return n
}

func newTestReconciler(handler func(string) string) (*Reconciler, *scriptedSession) {
	session := &scriptedSession{handler: handler}
	dev := routeros.NewDevice(session, nil, 0)
	return NewReconciler(dev, nil), session
}

func TestClassifyReply(t *testing.T) {
	cases := []struct {
		reply  string
		marker string
		want   replyClass
	}{
		{"", addressConflictMarker, replyIndeterminate},
		{"   \n", addressConflictMarker, replyIndeterminate},
		{"failure: already have such address", addressConflictMarker, replyAlreadySatisfied},
		{"failure: already have such route", routeConflictMarker, replyAlreadySatisfied},
		{"syntax error (line 1 column 7)", addressConflictMarker, replyRejected},
		{"Failure: unreachable gateway", routeConflictMarker, replyRejected},
		{"anything else the device prints", addressConflictMarker, replyApplied},
	}
	for _, c := range cases {
		if got, _ := classifyReply(c.reply, c.marker); got != c.want {
			t.Fatalf("classifyReply(%q): got %v, want %v", c.reply, got, c.want)
		}
	}
}

func TestEnsureAddressSkipsExistingIgnoringPrefix(t *testing.T) {
	// The desired /126 already exists as a /64: same host part, so the
	// fact holds and no add command may be issued.
	r, session := newTestReconciler(func(cmd string) string {
		if strings.HasPrefix(cmd, "/ipv6 address print") {
			return " 0  G 2804:385c:8700::15/64 bridge no\n"
		}
		return ""
	})

	if got := r.EnsureAddress("bridge", "2804:385c:8700::15/126", ""); got != OutcomeSkipped {
		t.Fatalf("EnsureAddress(): got %v, want skipped", got)
	}
	if n := session.countCommands("/ipv6 address add"); n != 0 {
		t.Fatalf("EnsureAddress() issued %d add commands, want 0", n)
	}
}

func TestEnsureAddressAppliedThenConfirmed(t *testing.T) {
	added := false
	r, session := newTestReconciler(func(cmd string) string {
		switch {
		case strings.HasPrefix(cmd, "/ipv6 address print"):
			if added {
				return " 0  G 2804:385c:8700::15/126 bridge no\n"
			}
			return ""
		case strings.HasPrefix(cmd, "/ipv6 address add"):
			added = true
			return ""
		}
		return ""
	})

	if got := r.EnsureAddress("bridge", "2804:385c:8700::15/126", ""); got != OutcomeApplied {
		t.Fatalf("EnsureAddress(): got %v, want applied", got)
	}
	if n := session.countCommands("/ipv6 address add"); n != 1 {
		t.Fatalf("EnsureAddress() issued %d add commands, want 1", n)
	}
}

func TestEnsureAddressConflictReplyIsSkipped(t *testing.T) {
	r, _ := newTestReconciler(func(cmd string) string {
		if strings.HasPrefix(cmd, "/ipv6 address add") {
			return "failure: already have such address"
		}
		return ""
	})
	if got := r.EnsureAddress("bridge", "2804:385c:8700::15/126", ""); got != OutcomeSkipped {
		t.Fatalf("EnsureAddress(): got %v, want skipped", got)
	}
}

func TestEnsureAddressRejected(t *testing.T) {
	r, _ := newTestReconciler(func(cmd string) string {
		if strings.HasPrefix(cmd, "/ipv6 address add") {
			return "syntax error (line 1 column 19)"
		}
		return ""
	})
	if got := r.EnsureAddress("bridge", "not-an-address", ""); got != OutcomeFailed {
		t.Fatalf("EnsureAddress(): got %v, want failed", got)
	}
}

func TestEnsureRouteReflexive(t *testing.T) {
	// Adding the same route twice in a row yields applied then skipped.
	added := false
	r, session := newTestReconciler(func(cmd string) string {
		switch {
		case strings.HasPrefix(cmd, "/ipv6 route print"):
			if added {
				return " 0 A S 2804:385c:8700::14/126 2804:385c:8700::12 1\n"
			}
			return ""
		case strings.HasPrefix(cmd, "/ipv6 route add"):
			added = true
			return ""
		}
		return ""
	})

	if got := r.EnsureRoute("2804:385c:8700::14/126", "2804:385c:8700::12", "", true); got != OutcomeApplied {
		t.Fatalf("first EnsureRoute(): got %v, want applied", got)
	}
	if got := r.EnsureRoute("2804:385c:8700::14/126", "2804:385c:8700::12", "", true); got != OutcomeSkipped {
		t.Fatalf("second EnsureRoute(): got %v, want skipped", got)
	}
	if n := session.countCommands("/ipv6 route add"); n != 1 {
		t.Fatalf("EnsureRoute() issued %d add commands, want 1", n)
	}
}

func TestEnsureRouteGatewayNarrowsIdentity(t *testing.T) {
	// A route to the same prefix via a different gateway does not satisfy
	// the desired fact.
	r, session := newTestReconciler(func(cmd string) string {
		if strings.HasPrefix(cmd, "/ipv6 route print") {
			return " 0 A S ::/0 2804:385c:8700::99 1\n"
		}
		return ""
	})

	if got := r.EnsureRoute("::/0", "2804:385c:8700::12", "", false); got != OutcomeApplied {
		t.Fatalf("EnsureRoute(): got %v, want applied", got)
	}
	if n := session.countCommands("/ipv6 route add"); n != 1 {
		t.Fatalf("EnsureRoute() issued %d add commands, want 1", n)
	}
}

const testServerListing = `Flags: X - disabled, D - dynamic, R - running
 #     NAME                                USER         MTU   CLIENT-ADDRESS
 0  DR <l2tp-caetite>                      caetite      1450  177.200.10.2
 1  DR <l2tp-guanambi>                     guanambi     1450  177.200.11.7
`

func TestConfigureServerTunnel(t *testing.T) {
	r, session := newTestReconciler(func(cmd string) string {
		if strings.HasPrefix(cmd, "/interface l2tp-server print") {
			return testServerListing
		}
		return ""
	})

	m := config.TunnelMapping{
		Name:         "Caetite",
		ServerIP:     "2804:385c:8700::11",
		ClientIP:     "2804:385c:8700::12",
		RouteNetwork: "2804:385c:8700::14/126",
		Gateway:      "2804:385c:8700::12",
	}
	if !r.ConfigureServerTunnel(m) {
		t.Fatalf("ConfigureServerTunnel(): got failure, want success")
	}

	var addCmd, routeCmd string
	for _, cmd := range session.commands {
		if strings.HasPrefix(cmd, "/ipv6 address add") {
			addCmd = cmd
		}
		if strings.HasPrefix(cmd, "/ipv6 route add") {
			routeCmd = cmd
		}
	}
	if !strings.Contains(addCmd, "address=2804:385c:8700::11/126") ||
		!strings.Contains(addCmd, "interface=l2tp-caetite") {
		t.Fatalf("unexpected address add command: %q", addCmd)
	}
	if !strings.Contains(routeCmd, "dst-address=2804:385c:8700::14/126") ||
		!strings.Contains(routeCmd, "check-gateway=ping") ||
		!strings.Contains(routeCmd, `comment="Route-CAETITE"`) {
		t.Fatalf("unexpected route add command: %q", routeCmd)
	}
}

func TestConfigureServerTunnelLookupMiss(t *testing.T) {
	r, session := newTestReconciler(func(cmd string) string {
		if strings.HasPrefix(cmd, "/interface l2tp-server print") {
			return testServerListing
		}
		return ""
	})

	if r.ConfigureServerTunnel(config.TunnelMapping{Name: "jacaraci"}) {
		t.Fatalf("ConfigureServerTunnel(): got success for unknown tunnel")
	}
	// A lookup miss must abort before any configuration command runs.
	if n := session.countCommands("add"); n != 0 {
		t.Fatalf("ConfigureServerTunnel() issued %d add commands after lookup miss", n)
	}
}

func TestConfigureClient(t *testing.T) {
	r, session := newTestReconciler(func(cmd string) string {
		if strings.HasPrefix(cmd, "/interface print where name=bridge") {
			return ` 0  R name="bridge" type="bridge"` + "\n"
		}
		return ""
	})

	m := config.ClientMapping{
		Bridge:   "bridge",
		BridgeIP: "2804:385c:8700::15/126",
		Gateway:  "2804:385c:8700::12",
	}
	if !r.ConfigureClient(m, nil, nil) {
		t.Fatalf("ConfigureClient(): got failure, want success")
	}

	var routeCmd string
	for _, cmd := range session.commands {
		if strings.HasPrefix(cmd, "/ipv6 route add") {
			routeCmd = cmd
		}
	}
	if !strings.Contains(routeCmd, "dst-address=::/0") ||
		!strings.Contains(routeCmd, `comment="Default-via-L2TP"`) {
		t.Fatalf("unexpected default route command: %q", routeCmd)
	}
	// The default route is added without gateway liveness checking.
	if strings.Contains(routeCmd, "check-gateway") {
		t.Fatalf("default route command unexpectedly checks gateway: %q", routeCmd)
	}
}

func TestConfigureClientBridgeMissing(t *testing.T) {
	r, session := newTestReconciler(func(cmd string) string {
		if strings.HasPrefix(cmd, "/interface bridge print") {
			return ` 0   R name="bridge-lan"` + "\n"
		}
		return ""
	})

	m := config.ClientMapping{Bridge: "bridge", BridgeIP: "2804:385c:8700::15/126", Gateway: "2804:385c:8700::12"}
	if r.ConfigureClient(m, nil, nil) {
		t.Fatalf("ConfigureClient(): got success with missing bridge")
	}
	// The available bridges are enumerated for diagnostics.
	if n := session.countCommands("/interface bridge print"); n != 1 {
		t.Fatalf("ConfigureClient() listed bridges %d times, want 1", n)
	}
	if n := session.countCommands("/ipv6 address add"); n != 0 {
		t.Fatalf("ConfigureClient() issued %d address adds after bridge miss", n)
	}
}

func TestRemoveRouteAbsentIsSuccess(t *testing.T) {
	r, session := newTestReconciler(nil)
	if !r.RemoveRoute("::/0", "") {
		t.Fatalf("RemoveRoute(): got failure for absent route")
	}
	if n := session.countCommands("remove"); n != 0 {
		t.Fatalf("RemoveRoute() issued %d remove commands, want 0", n)
	}
}

func TestRemoveAddress(t *testing.T) {
	r, session := newTestReconciler(func(cmd string) string {
		if strings.HasPrefix(cmd, "/ipv6 address print") {
			return " 3  G 2804:385c:8700::15/126 bridge no\n"
		}
		return ""
	})
	if !r.RemoveAddress("bridge", "2804:385c:8700::15") {
		t.Fatalf("RemoveAddress(): got failure, want success")
	}
	if n := session.countCommands("/ipv6 address remove 3"); n != 1 {
		t.Fatalf("RemoveAddress() did not remove by entry id: %v", session.commands)
	}
}
