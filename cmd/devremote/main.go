// devremote is the device remote-control service.
//
// It serves the HTTP API for registering devices, pairing agents,
// running device actions through local executor programs and keeping
// each device's desired display state.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/onur02004/MainRoadmap-sub000/migrations"

	"github.com/onur02004/MainRoadmap-sub000/internal/api"
	"github.com/onur02004/MainRoadmap-sub000/internal/audit"
	"github.com/onur02004/MainRoadmap-sub000/internal/control"
	"github.com/onur02004/MainRoadmap-sub000/internal/device"
	"github.com/onur02004/MainRoadmap-sub000/internal/executor"
	"github.com/onur02004/MainRoadmap-sub000/internal/infrastructure/config"
	"github.com/onur02004/MainRoadmap-sub000/internal/infrastructure/database"
	"github.com/onur02004/MainRoadmap-sub000/internal/infrastructure/influxdb"
	"github.com/onur02004/MainRoadmap-sub000/internal/infrastructure/logging"
	"github.com/onur02004/MainRoadmap-sub000/internal/infrastructure/metrics"
	"github.com/onur02004/MainRoadmap-sub000/internal/infrastructure/mqtt"
	"github.com/onur02004/MainRoadmap-sub000/internal/process"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting devremote",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	db, err := database.Open(database.Config{
		Driver:       cfg.Database.Driver,
		Path:         cfg.Database.Path,
		DSN:          cfg.Database.DSN,
		WALMode:      cfg.Database.WALMode,
		BusyTimeout:  cfg.Database.BusyTimeout,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "driver", db.Driver())

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	m := metrics.New()
	svc := buildServices(cfg, db, m, log)

	// The audit queue drains after the API stops and before the database closes.
	auditCtx, stopAudit := context.WithCancel(context.Background())
	auditDone := make(chan struct{})
	go func() {
		svc.auditRecorder.Run(auditCtx)
		close(auditDone)
	}()
	defer func() {
		stopAudit()
		<-auditDone
	}()

	// Optional sinks. Each one failing to connect is logged and skipped.
	notifiers := device.Notifiers{
		device.StateNotifierFunc(func(context.Context, string, string, device.State) error {
			m.IncStateChanges()
			return nil
		}),
	}
	recorders := control.Recorders{
		control.ExecutionRecorderFunc(func(_ context.Context, e control.Execution) {
			m.ObserveExecution(e.Action, e.Outcome(), e.Duration)
		}),
		svc.auditRecorder,
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			log.Warn("InfluxDB unavailable, continuing without it", "error", influxErr)
		} else {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			notifiers = append(notifiers, influxClient)
			recorders = append(recorders, influxRecorder(influxClient))
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			log.Warn("MQTT unavailable, continuing without it", "error", mqttErr)
		} else {
			defer func() {
				log.Info("disconnecting from MQTT")
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
			mqttClient.SetLogger(log.Component("mqtt"))
			notifiers = append(notifiers, mqtt.NewStatePublisher(mqttClient))

			listener := mqtt.NewAgentStatusListener(mqttClient, svc.registry)
			listener.SetLogger(log.Component("agent_status"))
			if startErr := listener.Start(ctx); startErr != nil {
				log.Warn("agent status listener not started", "error", startErr)
			}
			log.Info("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"client_id", cfg.MQTT.Broker.ClientID,
			)
		}
	}

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log.Component("api"),
		Registry:   svc.registry,
		States:     svc.states,
		Dispatcher: svc.dispatcher,
		Reconciler: svc.reconciler,
		Metrics:    m,
		Audit:      svc.audit,
		DB:         db,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	svc.states.SetNotifier(append(notifiers, server.Hub()))
	svc.dispatcher.SetRecorder(recorders)

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal",
		"handlers", svc.handlers.Prefixes(),
		"executor_timeout", svc.exec.Timeout(),
	)

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred cleanup runs in reverse order: API, MQTT, InfluxDB, audit queue, database.
	return nil
}

// services holds the domain components shared by every surface.
type services struct {
	registry   *device.Registry
	states     *device.StateStore
	handlers   *executor.Handlers
	exec       *process.Exec
	dispatcher *control.Dispatcher
	reconciler *control.Reconciler

	audit         *audit.SQLRepository
	auditRecorder *audit.Recorder
}

// buildServices wires the device registry, state store and action
// pipeline onto db.
func buildServices(cfg *config.Config, db *database.DB, m *metrics.Metrics, log *logging.Logger) *services {
	repo := device.NewSQLRepository(db.DB, db.Driver())

	registry := device.NewRegistry(repo, repo, device.PairingSettings{
		CodeDigits: cfg.Pairing.CodeDigits,
		DefaultTTL: time.Duration(cfg.Pairing.DefaultTTLSeconds) * time.Second,
		MaxTTL:     time.Duration(cfg.Pairing.MaxTTLSeconds) * time.Second,
	})
	registry.SetLogger(log.Component("registry"))

	states := device.NewStateStore(repo, device.NewSQLStateHistoryRepository(db.DB, db.Driver()))
	states.SetLogger(log.Component("state_store"))

	handlers := executor.HandlersFromConfig(cfg.Executor.Handlers)

	exec := process.NewExec(process.ExecConfig{
		Timeout:        cfg.GetExecutorTimeout(),
		MaxOutputBytes: cfg.Executor.MaxOutputBytes,
	})
	exec.SetLogger(log.Component("process"))

	dispatcher := control.NewDispatcher(repo, handlers, exec, registry, states)
	dispatcher.SetLogger(log.Component("dispatcher"))

	reconciler := control.NewReconciler(states, dispatcher)
	reconciler.SetLogger(log.Component("reconciler"))

	auditRepo := audit.NewSQLRepository(db.DB, db.Driver())
	auditRecorder := audit.NewRecorder(auditRepo, 0)
	auditRecorder.SetLogger(log.Component("audit"))

	m.RegisterGaugeFunc("database", "open_connections", "Open database connections.", func() float64 {
		return float64(db.Stats().OpenConnections)
	})

	return &services{
		registry:   registry,
		states:     states,
		handlers:   handlers,
		exec:       exec,
		dispatcher: dispatcher,
		reconciler: reconciler,

		audit:         auditRepo,
		auditRecorder: auditRecorder,
	}
}

// influxRecorder writes every executor run as a device_actions point.
func influxRecorder(c *influxdb.Client) control.ExecutionRecorder {
	return control.ExecutionRecorderFunc(func(_ context.Context, e control.Execution) {
		c.WriteDeviceAction(influxdb.ActionPoint{
			DeviceID:   e.DeviceID,
			Action:     e.Action,
			HandlerKey: e.HandlerKey,
			Outcome:    e.Outcome(),
			ExitCode:   e.ExitCode,
			Duration:   e.Duration,
			At:         e.At,
		})
	})
}

// getConfigPath returns DEVREMOTE_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("DEVREMOTE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
