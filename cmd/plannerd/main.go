// Command plannerd is the study planner daemon. It restores the saved
// session, keeps the signed-in identity's task list in memory and serves the
// HTTP API used by the planner CLI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/GoCodeAlone/planner/auth"
	"github.com/GoCodeAlone/planner/comms"
	"github.com/GoCodeAlone/planner/config"
	"github.com/GoCodeAlone/planner/internal/version"
	"github.com/GoCodeAlone/planner/planner"
	"github.com/GoCodeAlone/planner/server"
	"github.com/GoCodeAlone/planner/task"
)

var configPath = flag.String("config", "planner.yaml", "path to YAML config file")

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", *configPath, err)
	}
	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	logger.Info("starting plannerd",
		"version", version.Version,
		"commit", version.Commit,
	)

	app, err := build(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer app.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.start(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- app.srv.Start() }()

	fmt.Printf("Planner daemon running on %s\n", cfg.Server.Addr)
	fmt.Printf("Version: %s\n", version.String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	}

	fmt.Println("Shutting down...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := app.srv.Stop(shutdownCtx); err != nil {
		logger.Error("server stop error", "error", err)
	}
	fmt.Println("Shutdown complete")
}

// loadConfig reads path, falling back to defaults when the default config
// file does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	explicit := false
	flag.Visit(func(f *flag.Flag) { explicit = explicit || f.Name == "config" })
	if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	cfg = config.DefaultConfig()
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// daemon holds the wired components and what must be released on exit.
type daemon struct {
	provider *auth.Provider
	ctl      *planner.Controller
	srv      *server.Server
	closers  []io.Closer
	logger   *slog.Logger
}

func build(cfg *config.Config, logger *slog.Logger) (*daemon, error) {
	d := &daemon{logger: logger}

	var (
		store    task.Store
		dirPath  = ":memory:"
		tokenTTL time.Duration
	)
	switch cfg.Store.Driver {
	case config.DriverMemory:
		store = task.NewMemoryStore()
	default:
		path := cfg.StorePath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		sqliteStore, err := task.NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, sqliteStore)
		store = sqliteStore
		dirPath = filepath.Join(filepath.Dir(path), "accounts.db")
	}

	directory, err := auth.NewSQLiteDirectory(dirPath)
	if err != nil {
		d.close()
		return nil, err
	}
	d.closers = append(d.closers, directory)

	tokenTTL, _ = cfg.SessionTTL()
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("no jwt_secret configured; sessions will not survive a restart")
	}
	var tokenFile *auth.TokenFile
	if p := cfg.SessionPath(); p != "" {
		tokenFile = auth.NewTokenFile(p)
	}

	bus := comms.NewInMemoryBus()
	d.provider = auth.NewProvider(directory, auth.NewTokens(cfg.Auth.JWTSecret, tokenTTL), tokenFile, bus, logger)
	d.ctl = planner.New(d.provider, task.NewAdapter(store, logger), logger,
		planner.WithBus(bus), planner.WithSettings(cfg.Settings))

	d.srv = server.New(cfg.Server, version.Version, logger)
	d.srv.SetSessions(d.provider)
	d.srv.SetPlanner(d.ctl)
	d.srv.SetBus(bus)
	return d, nil
}

// start subscribes the controller and begins restoring the saved session.
func (d *daemon) start(ctx context.Context) {
	d.ctl.Start(ctx)
	d.provider.Start(ctx)
}

func (d *daemon) close() {
	if d.ctl != nil {
		d.ctl.Close()
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			d.logger.Warn("close", "error", err)
		}
	}
}
