package routeros

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
)

// Session is an interactive command session on a RouterOS device.
//
// RouterOS has no command multiplexing: a session must never have more
// than one command in flight, and implementations are not safe for
// concurrent use.  Callers own a session exclusively for the duration of
// a device's configuration pass and close it before moving on.
type Session interface {
	// Exec runs a single CLI command and returns the raw textual reply.
	// An empty reply is not an error: RouterOS prints nothing for many
	// successful configuration commands.
	Exec(cmd string, timeout time.Duration) (string, error)
	Close() error
	Connected() bool
}

// Dialer opens sessions on RouterOS devices using password authentication.
type Dialer struct {
	Username       string
	Password       string
	ConnectTimeout time.Duration
	Logger         log.Logger
}

// Dial opens a session on host using the named transport method.
// Supported methods are "ssh" (the default when method is empty) and
// "telnet", matching the transport column of the host inventory file.
func (d *Dialer) Dial(method, host string) (Session, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "", "ssh":
		return d.DialSSH(host)
	case "telnet":
		return d.DialTelnet(host)
	}
	return nil, fmt.Errorf("unsupported transport method %q for host %s", method, host)
}

func (d *Dialer) logger() log.Logger {
	if d.Logger == nil {
		return log.NewNopLogger()
	}
	return d.Logger
}

// withDefaultPort appends port to host unless host already carries one.
func withDefaultPort(host, port string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, port)
}
