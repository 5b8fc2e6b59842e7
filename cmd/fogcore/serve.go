package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/fog-access-core/internal/access"
	"github.com/nerrad567/fog-access-core/internal/api"
	"github.com/nerrad567/fog-access-core/internal/audit"
	"github.com/nerrad567/fog-access-core/internal/auth"
	"github.com/nerrad567/fog-access-core/internal/backend"
	"github.com/nerrad567/fog-access-core/internal/credential"
	"github.com/nerrad567/fog-access-core/internal/device"
	"github.com/nerrad567/fog-access-core/internal/events"
	"github.com/nerrad567/fog-access-core/internal/infrastructure/config"
	"github.com/nerrad567/fog-access-core/internal/infrastructure/database"
	"github.com/nerrad567/fog-access-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/fog-access-core/internal/infrastructure/logging"
	"github.com/nerrad567/fog-access-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/fog-access-core/migrations"
)

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML config file to load
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting fogcore",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
		"site", cfg.Site.ID,
	)

	db, err := database.Open(ctx, database.Config{
		Path:         cfg.Database.Path,
		WALMode:      cfg.Database.WALMode,
		BusyTimeout:  cfg.Database.BusyTimeout,
		QueryTimeout: cfg.Database.QueryTimeout(),
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
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	hasher, err := credential.NewHasher(cfg.Security.CredentialPepper)
	if err != nil {
		return fmt.Errorf("creating credential hasher: %w", err)
	}

	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB, db.QueryTimeout()), hasher)
	registry.SetLogger(log)
	if count, countErr := registry.Count(ctx); countErr != nil {
		log.Warn("could not count registered devices", "error", countErr)
	} else {
		log.Info("device registry initialised", "devices", count)
	}

	gateway := auth.NewGateway(registry)
	gateway.SetLogger(log)

	validator := access.NewValidator(access.NewSQLiteRepository(db.DB, db.QueryTimeout()))
	validator.SetLogger(log)

	auditRepo := audit.NewSQLiteRepository(db.DB, db.QueryTimeout())
	recorder := audit.NewRecorder(auditRepo, audit.DefaultBufferSize)
	recorder.SetLogger(log)

	// The recorder outlives the errgroup below so that entries queued by the
	// last requests are still written before the database closes.
	auditCtx, stopAudit := context.WithCancel(context.WithoutCancel(ctx))
	auditDone := make(chan struct{})
	go func() {
		recorder.Run(auditCtx)
		close(auditDone)
	}()
	defer func() {
		stopAudit()
		<-auditDone
		log.Info("audit trail flushed", "dropped", recorder.Dropped())
	}()

	mqttClient := connectMQTT(cfg, log)
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	}

	influxClient := connectInfluxDB(cfg, log)
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := events.NewMetrics(promReg)

	hub := api.NewHub(cfg.WebSocket, log)

	sinks := events.Sinks{Hub: hub, Metrics: metrics, Audit: recorder}
	// Typed nils would defeat the publisher's nil checks.
	if mqttClient != nil {
		sinks.Bus = mqttClient
	}
	if influxClient != nil {
		sinks.Points = influxClient
	}
	publisher := events.NewPublisher(cfg.Site.ID, sinks)
	publisher.SetLogger(log)

	validator.OnDecision(publisher)
	validator.OnGrant(publisher)
	gateway.AddObserver(publisher)

	syncer, err := newSyncer(cfg.Backend, validator, log)
	if err != nil {
		return fmt.Errorf("creating backend syncer: %w", err)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	deps := api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		DB:       db,
		Gateway:  gateway,
		Devices:  registry,
		Access:   validator,
		Events:   publisher,
		Metrics:  metrics,
		Gatherer: promReg,
		Audit:    auditRepo,
		Recorder: recorder,
		Hub:      hub,
		Version:  version,
	}
	if syncer != nil {
		deps.Syncer = syncer
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if influxClient != nil {
		deps.Influx = influxClient
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		publisher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	if syncer != nil {
		interval := cfg.Backend.GetSyncInterval()
		if interval > 0 {
			g.Go(func() error {
				syncer.Run(gctx, interval, func(r backend.Result) {
					publisher.PublishSync(gctx, "", r)
				})
				return nil
			})
			log.Info("periodic backend sync enabled", "interval", interval)
		}

		if mqttClient != nil {
			commands := newSyncCommandHandler(gctx, syncer, publisher, log)
			topic := mqttClient.Topics().SyncCommand()
			if subErr := mqttClient.Subscribe(topic, byte(cfg.MQTT.QoS), commands.Handle); subErr != nil {
				log.Warn("sync command subscription failed", "topic", topic, "error", subErr)
			} else {
				log.Info("listening for sync commands", "topic", topic)
			}
			g.Go(func() error {
				<-gctx.Done()
				commands.Wait()
				return nil
			})
		}
	}

	if err := server.Start(gctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	g.Go(func() error {
		<-gctx.Done()
		return server.Close()
	})

	log.Info("initialisation complete, waiting for shutdown signal")

	err = g.Wait()

	// Deferred Close() calls run in reverse order:
	// 1. InfluxDB (if enabled)
	// 2. MQTT (if enabled)
	// 3. Audit recorder drain
	// 4. Database
	log.Info("shutdown signal received, cleaning up")
	if err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	log.Info("fogcore stopped")
	return nil
}

// connectMQTT connects to the broker when MQTT is enabled. A broker that
// cannot be reached is logged and skipped: door checks never depend on it.
func connectMQTT(cfg *config.Config, log *logging.Logger) *mqtt.Client {
	if !cfg.MQTT.Enabled {
		log.Info("MQTT disabled")
		return nil
	}

	client, err := mqtt.Connect(cfg.MQTT, cfg.Site.ID)
	if err != nil {
		log.Warn("MQTT unavailable, events will not be published", "error", err)
		return nil
	}
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return client
}

// connectInfluxDB connects to InfluxDB when it is enabled. Like MQTT it is
// optional at runtime.
func connectInfluxDB(cfg *config.Config, log *logging.Logger) *influxdb.Client {
	if !cfg.InfluxDB.Enabled {
		log.Info("InfluxDB disabled")
		return nil
	}

	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Site.ID)
	if err != nil {
		log.Warn("InfluxDB unavailable, time series will not be recorded", "error", err)
		return nil
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client
}

// newSyncer returns nil when the hotel backend is disabled.
func newSyncer(cfg config.BackendConfig, cache backend.GrantCache, log *logging.Logger) (*backend.Syncer, error) {
	if !cfg.Enabled {
		log.Info("hotel backend sync disabled")
		return nil, nil
	}

	client, err := backend.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	syncer := backend.NewSyncer(client, cache)
	syncer.SetLogger(log)
	log.Info("hotel backend sync enabled", "base_url", cfg.BaseURL, "hotel_id", cfg.HotelID)
	return syncer, nil
}

// healthCheck verifies the connections the node starts with.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (nil if disabled or unreachable)
//   - influxClient: InfluxDB client to check (nil if disabled or unreachable)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// roomSyncer is the part of *backend.Syncer the command handler drives.
type roomSyncer interface {
	SyncAll(ctx context.Context) (backend.Result, error)
	SyncRoom(ctx context.Context, roomID string) (backend.Result, error)
}

type syncPublisher interface {
	PublishSync(ctx context.Context, deviceID string, r backend.Result)
}

// syncCommand is the payload of fog/{site}/command/sync. An empty payload
// or a missing room_id refreshes the whole hotel.
type syncCommand struct {
	RoomID access.FlexString `json:"room_id"`
}

// syncCommandHandler runs backend syncs requested over MQTT.
//
// paho delivers messages on its router goroutine, so Handle only decodes
// the command and runs the sync in the background.
type syncCommandHandler struct {
	ctx    context.Context
	syncer roomSyncer
	events syncPublisher
	log    *logging.Logger
	wg     sync.WaitGroup
}

func newSyncCommandHandler(ctx context.Context, syncer roomSyncer, events syncPublisher, log *logging.Logger) *syncCommandHandler {
	return &syncCommandHandler{ctx: ctx, syncer: syncer, events: events, log: log}
}

// Handle implements mqtt.MessageHandler.
func (h *syncCommandHandler) Handle(_ string, payload []byte) error {
	if err := h.ctx.Err(); err != nil {
		return fmt.Errorf("sync command ignored: %w", err)
	}

	var cmd syncCommand
	if len(bytes.TrimSpace(payload)) > 0 {
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return fmt.Errorf("decoding sync command: %w", err)
		}
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.sync(cmd.RoomID.String())
	}()
	return nil
}

func (h *syncCommandHandler) sync(roomID string) {
	var (
		result backend.Result
		err    error
	)
	if roomID == "" {
		result, err = h.syncer.SyncAll(h.ctx)
	} else {
		result, err = h.syncer.SyncRoom(h.ctx, roomID)
	}
	if err != nil {
		h.log.Warn("sync command failed", "room_id", roomID, "error", err)
		return
	}

	h.events.PublishSync(h.ctx, "", result)
	h.log.Info("sync command completed",
		"room_id", roomID,
		"fetched", result.Fetched,
		"inserted", result.Inserted,
	)
}

// Wait blocks until every sync started by Handle has finished.
func (h *syncCommandHandler) Wait() {
	h.wg.Wait()
}
