package routeros

import (
	"fmt"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/crypto/ssh"
)

type sshSession struct {
	client *ssh.Client
	host   string
	logger log.Logger
}

// DialSSH opens an SSH session on host, using port 22 unless the host
// string carries an explicit port.
func (d *Dialer) DialSSH(host string) (Session, error) {
	cfg := &ssh.ClientConfig{
		User: d.Username,
		Auth: []ssh.AuthMethod{ssh.Password(d.Password)},
		// Host keys on customer-site RouterOS boxes are not tracked.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         d.ConnectTimeout,
	}

	client, err := ssh.Dial("tcp", withDefaultPort(host, "22"), cfg)
	if err != nil {
		return nil, fmt.Errorf("ssh connect to %s failed: %v", host, err)
	}

	logger := log.With(d.logger(), "transport", "ssh", "host", host)
	level.Debug(logger).Log("message", "connected")

	return &sshSession{client: client, host: host, logger: logger}, nil
}

func (s *sshSession) Exec(cmd string, timeout time.Duration) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("session to %s is closed", s.host)
	}

	sess, err := s.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open channel to %s: %v", s.host, err)
	}
	defer sess.Close()

	type execResult struct {
		out []byte
		err error
	}
	done := make(chan execResult, 1)
	go func() {
		out, err := sess.CombinedOutput(cmd)
		done <- execResult{out, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if _, ok := r.err.(*ssh.ExitError); ok {
				// RouterOS exits non-zero for some commands that still
				// produce a usable reply.  Pass the text through.
				level.Debug(s.logger).Log("message", "command exited non-zero",
					"command", cmd, "error", r.err)
				return string(r.out), nil
			}
			return "", fmt.Errorf("command %q on %s failed: %v", cmd, s.host, r.err)
		}
		return string(r.out), nil
	case <-time.After(timeout):
		sess.Close()
		return "", fmt.Errorf("command %q on %s timed out after %v", cmd, s.host, timeout)
	}
}

func (s *sshSession) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	level.Debug(s.logger).Log("message", "disconnected")
	return err
}

func (s *sshSession) Connected() bool {
	return s.client != nil
}
