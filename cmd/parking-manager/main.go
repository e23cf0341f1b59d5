package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"parking-manager/internal/auth"
	"parking-manager/internal/config"
	"parking-manager/internal/logging"
	"parking-manager/internal/parking"
	"parking-manager/internal/server"
	"parking-manager/internal/shell"
	"parking-manager/internal/store"
)

var (
	mode = flag.String("mode", "", "Mode to run: cli, server, or both (overrides APP_MODE)")
	port = flag.String("port", "", "Port for HTTP server (overrides APP_PORT)")
)

type app struct {
	cfg       *config.Config
	telemetry *parking.TelemetryProvider
	directory *parking.Directory
	manager   *parking.InstrumentedManager
	auth      *auth.Service
	db        *sqlx.DB
}

func main() {
	flag.Parse()

	cfg := config.Load()
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *port != "" {
		cfg.Port = *port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryProvider, err := parking.NewTelemetryProvider(ctx, parking.TelemetryConfig{
		ServiceName:  cfg.OTelServiceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTelEndpoint,
	})
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	logging.Init(cfg.OTelServiceName, cfg.Environment)

	a, err := newApp(ctx, cfg, telemetryProvider)
	if err != nil {
		logging.Error(ctx, "startup failed", "error", err)
		shutdownTelemetry(telemetryProvider)
		os.Exit(1)
	}
	defer a.close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	switch cfg.Mode {
	case "cli":
		a.runCLI(ctx, cancel, sigChan)
	case "server":
		a.runServer(ctx, cancel, sigChan)
	case "both":
		a.runBoth(ctx, cancel, sigChan)
	default:
		logging.Error(ctx, "invalid mode, must be cli, server, or both", "mode", cfg.Mode)
	}

	shutdownTelemetry(telemetryProvider)
}

func newApp(ctx context.Context, cfg *config.Config, telemetryProvider *parking.TelemetryProvider) (*app, error) {
	a := &app{cfg: cfg, telemetry: telemetryProvider}

	rate, err := parking.ParseMoney(cfg.HourlyRate)
	if err != nil || rate <= 0 {
		return nil, fmt.Errorf("invalid HOURLY_RATE %q", cfg.HourlyRate)
	}
	plates, err := parking.NewPlateFormat(cfg.PlatePattern)
	if err != nil {
		return nil, err
	}

	a.directory, err = parking.NewDirectory(parking.DefaultPeople())
	if err != nil {
		return nil, err
	}

	opts := []parking.Option{
		parking.WithTariff(parking.Tariff{HourlyRate: rate}),
		parking.WithPlateFormat(plates),
	}
	if cfg.Persistent() {
		a.db, err = store.Connect(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := store.RunMigrations(ctx, a.db); err != nil {
			a.close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		opts = append(opts, parking.WithStore(store.NewSQLStore(a.db)))
	}

	manager := parking.NewManager(a.directory, opts...)
	if cfg.Persistent() {
		if err := manager.Restore(ctx); err != nil {
			a.close()
			return nil, err
		}
	}

	a.manager, err = parking.NewInstrumentedManager(manager, telemetryProvider)
	if err != nil {
		a.close()
		return nil, err
	}

	if cfg.SeedDemoData && len(manager.ListSpaces(parking.SpaceFilter{})) == 0 {
		added, err := a.manager.Provision(ctx, parking.DefaultSpaces())
		if err != nil {
			a.close()
			return nil, fmt.Errorf("provision spaces: %w", err)
		}
		logging.Info(ctx, "provisioned default spaces", "count", added)
	}

	operators, err := auth.DefaultOperators(cfg.OperatorPassword, bcrypt.DefaultCost)
	if err != nil {
		a.close()
		return nil, err
	}
	a.auth = auth.NewService(operators, cfg.JWTSecret, time.Duration(cfg.JWTExpirationHours)*time.Hour)

	logging.Info(ctx, "parking manager ready",
		"mode", cfg.Mode,
		"persistent", cfg.Persistent(),
		"hourly_rate", a.manager.Tariff().HourlyRate.String(),
		"plate_pattern", plates.String(),
	)
	return a, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
}

func (a *app) newShell(in io.Reader, out io.Writer) *shell.InstrumentedShell {
	return shell.NewInstrumentedShell(a.manager, a.directory, a.telemetry, in, out)
}

func (a *app) newServer() *server.Server {
	return server.NewServer(a.cfg.Port, a.cfg.OTelServiceName, a.manager, a.directory, a.auth)
}

func (a *app) runCLI(ctx context.Context, cancel context.CancelFunc, sigChan chan os.Signal) {
	go func() {
		<-sigChan
		logging.Info(ctx, "shutting down")
		cancel()
	}()

	a.newShell(os.Stdin, os.Stdout).Run(ctx)
}

func (a *app) runServer(ctx context.Context, cancel context.CancelFunc, sigChan chan os.Signal) {
	srv := a.newServer()

	go func() {
		<-sigChan
		logging.Info(ctx, "received shutdown signal")
		shutdownServer(srv)
		cancel()
	}()

	logging.Info(ctx, "starting server mode", "port", a.cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error(ctx, "server error", "error", err)
	}
}

func (a *app) runBoth(ctx context.Context, cancel context.CancelFunc, sigChan chan os.Signal) {
	srv := a.newServer()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start()
	}()

	cliDone := make(chan struct{})
	go func() {
		a.newShell(os.Stdin, os.Stdout).Run(ctx)
		close(cliDone)
	}()

	go func() {
		<-sigChan
		logging.Info(ctx, "received shutdown signal")
		cancel()
	}()

	select {
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(ctx, "server error", "error", err)
		}
	case <-cliDone:
		logging.Info(ctx, "CLI exited")
	case <-ctx.Done():
		logging.Info(ctx, "context cancelled")
	}

	shutdownServer(srv)
}

func shutdownServer(srv *server.Server) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(shutdownCtx, "server shutdown error", "error", err)
	}
}

func shutdownTelemetry(telemetryProvider *parking.TelemetryProvider) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := telemetryProvider.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down telemetry: %v", err)
	}
}
