package main

import (
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"

	"github.com/Br10Consultoria/automacao-mikrotik/config"
	"github.com/Br10Consultoria/automacao-mikrotik/provision"
	"github.com/Br10Consultoria/automacao-mikrotik/routeros"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/joho/godotenv"
	"golang.org/x/sys/unix"
)

type application struct {
	config    *config.Config
	logger    log.Logger
	dialer    *routeros.Dialer
	tunnels   []config.TunnelMapping
	clients   map[string]config.ClientMapping
	hosts     []config.Host
	sigChan   chan os.Signal
	abortChan chan struct{}
}

func loadCredentials(envPath string) (username, password string, err error) {
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return "", "", fmt.Errorf("failed to load environment file %s: %v", envPath, err)
	}
	username = os.Getenv("MIKROTIK_USERNAME")
	password = os.Getenv("MIKROTIK_PASSWORD")
	if username == "" || password == "" {
		return "", "", fmt.Errorf("MIKROTIK_USERNAME and MIKROTIK_PASSWORD must be set")
	}
	return username, password, nil
}

func newApplication(cfgPath, envPath string, verbose bool) (*application, error) {

	logger := log.NewLogfmtLogger(os.Stderr)
	if verbose {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	username, password, err := loadCredentials(envPath)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %v", err)
	}
	if host := os.Getenv("L2TP_SERVER_HOST"); host != "" {
		cfg.ServerHost = host
	}
	if cfg.ServerHost == "" {
		return nil, fmt.Errorf("no L2TP server host configured")
	}

	tunnels, err := config.LoadTunnelMappings(cfg.TunnelMapPath, logger)
	if err != nil {
		return nil, err
	}
	if len(tunnels) == 0 {
		return nil, fmt.Errorf("no tunnel mappings loaded from %s", cfg.TunnelMapPath)
	}

	clients, err := config.LoadClientMappings(cfg.ClientMapPath, logger)
	if err != nil {
		return nil, err
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("no client mappings loaded from %s", cfg.ClientMapPath)
	}

	hosts, err := config.LoadHosts(cfg.HostsPath, logger)
	if err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("no client hosts loaded from %s", cfg.HostsPath)
	}

	app := &application{
		config: cfg,
		logger: logger,
		dialer: &routeros.Dialer{
			Username:       username,
			Password:       password,
			ConnectTimeout: cfg.ConnectTimeout,
			Logger:         logger,
		},
		tunnels:   tunnels,
		clients:   clients,
		hosts:     hosts,
		sigChan:   make(chan os.Signal, 1),
		abortChan: make(chan struct{}),
	}

	signal.Notify(app.sigChan, unix.SIGINT, unix.SIGTERM)
	go func() {
		<-app.sigChan
		level.Info(app.logger).Log("message", "received signal, aborting after current device")
		close(app.abortChan)
	}()

	return app, nil
}

// configureServer owns the server session for the duration of the pass.
func (app *application) configureServer() bool {
	logger := log.With(app.logger, "host", app.config.ServerHost)
	level.Info(logger).Log("message", "configuring L2TP server")

	session, err := app.dialer.DialSSH(app.config.ServerHost)
	if err != nil {
		level.Error(logger).Log("message", "server connection failed", "error", err)
		return false
	}
	defer session.Close()

	dev := routeros.NewDevice(session, logger, app.config.CommandTimeout)
	succeeded, total := provision.ConfigureServer(dev, app.tunnels, logger)
	return succeeded == total
}

func (app *application) configureClients() (succeeded, total int) {
	batch := &provision.ClientBatch{
		Dialer:         app.dialer,
		Mappings:       app.clients,
		ProbeTargets:   app.config.ProbeTargets,
		PingCount:      app.config.PingCount,
		CommandTimeout: app.config.CommandTimeout,
		Logger:         app.logger,
		Abort:          app.abortChan,
	}
	return batch.Run(app.hosts)
}

func (app *application) run() int {
	serverOK := app.configureServer()

	clientsOK, clientsTotal := app.configureClients()

	level.Info(app.logger).Log("message", "final report",
		"server_ok", serverOK,
		"clients_configured", clientsOK,
		"clients_total", clientsTotal)

	if serverOK && clientsOK == clientsTotal {
		return 0
	}
	return 1
}

func main() {
	cfgPathPtr := flag.String("config", "l2tp6cfg.toml", "specify configuration file path")
	envPathPtr := flag.String("env", ".env", "specify credentials environment file path")
	verbosePtr := flag.Bool("verbose", false, "toggle verbose log output")
	flag.Parse()

	app, err := newApplication(*cfgPathPtr, *envPathPtr, *verbosePtr)
	if err != nil {
		stdlog.Fatalf("failed to instantiate application: %v", err)
	}

	os.Exit(app.run())
}
