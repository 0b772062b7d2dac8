package routeros

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/ziutek/telnet"
)

// promptMarker terminates every RouterOS CLI reply on an interactive
// terminal session.
const promptMarker = ">"

type telnetSession struct {
	conn   *telnet.Conn
	host   string
	logger log.Logger
}

// DialTelnet opens a Telnet session on host, using port 23 unless the host
// string carries an explicit port, and drives the RouterOS login prompt.
func (d *Dialer) DialTelnet(host string) (Session, error) {
	conn, err := telnet.DialTimeout("tcp", withDefaultPort(host, "23"), d.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("telnet connect to %s failed: %v", host, err)
	}
	conn.SetUnixWriteMode(true)

	if err = conn.SetReadDeadline(time.Now().Add(d.ConnectTimeout)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("telnet connect to %s failed: %v", host, err)
	}

	if err = login(conn, d.Username, d.Password); err != nil {
		conn.Close()
		return nil, fmt.Errorf("telnet login to %s failed: %v", host, err)
	}

	logger := log.With(d.logger(), "transport", "telnet", "host", host)
	level.Debug(logger).Log("message", "connected")

	return &telnetSession{conn: conn, host: host, logger: logger}, nil
}

func login(conn *telnet.Conn, username, password string) error {
	if err := conn.SkipUntil("Login: "); err != nil {
		return fmt.Errorf("no login prompt: %v", err)
	}
	if _, err := conn.Write([]byte(username + "\n")); err != nil {
		return err
	}
	if err := conn.SkipUntil("Password: "); err != nil {
		return fmt.Errorf("no password prompt: %v", err)
	}
	if _, err := conn.Write([]byte(password + "\n")); err != nil {
		return err
	}

	// A rejected login re-issues the login prompt rather than the CLI
	// prompt, so a prompt read doubles as the authentication check.
	banner, err := conn.ReadUntil(promptMarker, "]")
	if err != nil {
		return fmt.Errorf("authentication rejected: %v", err)
	}
	if strings.Contains(string(banner), "Login:") {
		return fmt.Errorf("authentication rejected")
	}
	return nil
}

func (s *telnetSession) Exec(cmd string, timeout time.Duration) (string, error) {
	if s.conn == nil {
		return "", fmt.Errorf("session to %s is closed", s.host)
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", fmt.Errorf("command %q on %s failed: %v", cmd, s.host, err)
	}
	if _, err := s.conn.Write([]byte(cmd + "\n")); err != nil {
		return "", fmt.Errorf("command %q on %s failed: %v", cmd, s.host, err)
	}

	raw, err := s.conn.ReadUntil(promptMarker)
	if err != nil {
		return "", fmt.Errorf("command %q on %s timed out after %v: %v", cmd, s.host, timeout, err)
	}

	// The terminal echoes the command itself back on the first line.
	reply := string(raw)
	if i := strings.IndexByte(reply, '\n'); i >= 0 {
		reply = reply[i+1:]
	}
	return reply, nil
}

func (s *telnetSession) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	level.Debug(s.logger).Log("message", "disconnected")
	return err
}

func (s *telnetSession) Connected() bool {
	return s.conn != nil
}
