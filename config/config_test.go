package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadString(t *testing.T) {
	in := `[server]
host = "192.0.2.1"

[files]
tunnel_map = "tunnels.txt"
client_map = "clients.txt"
hosts = "inventory.txt"

[probe]
targets = ["2001:4860:4860::8888", "2606:4700:4700::1111"]
count = 2

[timeouts]
connect = 5000
command = 15000
`
	cfg, err := LoadString(in)
	if err != nil {
		t.Fatalf("LoadString(): %v", err)
	}
	if cfg.ServerHost != "192.0.2.1" {
		t.Fatalf("got server host %q, want 192.0.2.1", cfg.ServerHost)
	}
	if cfg.TunnelMapPath != "tunnels.txt" ||
		cfg.ClientMapPath != "clients.txt" ||
		cfg.HostsPath != "inventory.txt" {
		t.Fatalf("unexpected file paths: %+v", cfg)
	}
	wantTargets := []string{"2001:4860:4860::8888", "2606:4700:4700::1111"}
	if !reflect.DeepEqual(cfg.ProbeTargets, wantTargets) {
		t.Fatalf("got probe targets %v, want %v", cfg.ProbeTargets, wantTargets)
	}
	if cfg.PingCount != 2 {
		t.Fatalf("got ping count %d, want 2", cfg.PingCount)
	}
	if cfg.ConnectTimeout != 5*time.Second || cfg.CommandTimeout != 15*time.Second {
		t.Fatalf("got timeouts %v/%v, want 5s/15s", cfg.ConnectTimeout, cfg.CommandTimeout)
	}
}

func TestLoadStringDefaults(t *testing.T) {
	cfg, err := LoadString("")
	if err != nil {
		t.Fatalf("LoadString(): %v", err)
	}
	if cfg.ServerHost != "" {
		t.Fatalf("got server host %q, want unset", cfg.ServerHost)
	}
	if cfg.TunnelMapPath != DefaultTunnelMapPath ||
		cfg.ClientMapPath != DefaultClientMapPath ||
		cfg.HostsPath != DefaultHostsPath {
		t.Fatalf("unexpected default paths: %+v", cfg)
	}
	if cfg.PingCount != DefaultPingCount {
		t.Fatalf("got ping count %d, want %d", cfg.PingCount, DefaultPingCount)
	}
	if cfg.ConnectTimeout != DefaultTimeout || cfg.CommandTimeout != DefaultTimeout {
		t.Fatalf("unexpected default timeouts: %+v", cfg)
	}
}

func TestLoadStringRejectsUnknown(t *testing.T) {
	cases := []string{
		"[nosuchtable]\nkey = 42\n",
		"[server]\nhostname = \"192.0.2.1\"\n",
		"[probe]\ncount = \"four\"\n",
		"[timeouts]\nconnect = -1\n",
	}
	for _, in := range cases {
		if _, err := LoadString(in); err == nil {
			t.Fatalf("LoadString(%q): expected error", in)
		}
	}
}
