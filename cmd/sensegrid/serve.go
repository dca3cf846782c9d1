package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tronix365/sensegrid/internal/api"
	"github.com/tronix365/sensegrid/internal/audit"
	"github.com/tronix365/sensegrid/internal/auth"
	"github.com/tronix365/sensegrid/internal/device"
	"github.com/tronix365/sensegrid/internal/events"
	"github.com/tronix365/sensegrid/internal/infrastructure/amqp"
	"github.com/tronix365/sensegrid/internal/infrastructure/config"
	"github.com/tronix365/sensegrid/internal/infrastructure/influxdb"
	"github.com/tronix365/sensegrid/internal/infrastructure/logging"
	"github.com/tronix365/sensegrid/internal/infrastructure/mqtt"
	"github.com/tronix365/sensegrid/internal/infrastructure/redis"
	"github.com/tronix365/sensegrid/internal/ownership"
	"github.com/tronix365/sensegrid/internal/telemetry"
)

// startupHealthTimeout bounds the post-start health checks.
const startupHealthTimeout = 5 * time.Second

// run is the serve logic, separated from main for testability. Only config,
// database and migration failures are fatal; optional brokers that cannot
// be reached are logged and left out.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting SenseGrid Core",
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
	)

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "dialect", db.Dialect())

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	infra := connectInfrastructure(ctx, cfg, log)
	defer infra.Close(log)

	// Repositories and services.
	users := auth.NewUserRepository(db)
	devices := device.NewRepository(db)
	outputs := device.NewOutputRepository(db)
	readings := telemetry.NewRepository(db)

	tokens := auth.NewTokenService(cfg.Security.JWT.Secret, cfg.GetAccessTokenTTL(),
		auth.WithIssuer(cfg.Security.JWT.Issuer))
	authSvc := auth.NewService(users, auth.NewPasswordHasher(cfg.Security.BcryptCost), tokens, log)

	var pipelineOpts []telemetry.PipelineOption
	ownerOpts := []ownership.Option{
		ownership.WithMaxReadingsLimit(cfg.API.MaxReadingsLimit),
		ownership.WithAuditLog(audit.NewRepository(db)),
	}
	if fanout := infra.Fanout(cfg); fanout.Len() > 0 {
		pipelineOpts = append(pipelineOpts, telemetry.WithPublisher(fanout))
		ownerOpts = append(ownerOpts, ownership.WithPublisher(fanout))
		log.Info("event fan-out enabled", "sinks", fanout.Len())
	}

	pipeline := telemetry.NewPipeline(device.NewAuthenticator(devices), readings, outputs, log, pipelineOpts...)
	ownerSvc := ownership.NewService(users, devices, outputs, readings, log, ownerOpts...)

	parser, err := telemetry.NewPayloadParser()
	if err != nil {
		return fmt.Errorf("compiling payload schemas: %w", err)
	}

	if cfg.MQTT.Ingest.Enabled && infra.mqtt != nil {
		listener := telemetry.NewListener(infra.mqtt, parser, pipeline, log, byte(cfg.MQTT.QoS)) //nolint:gosec // qos validated 0..2
		if startErr := listener.Start(ctx); startErr != nil {
			log.Warn("mqtt ingestion unavailable", "error", startErr)
		}
	}

	deps := api.Deps{
		Config:   cfg.API,
		Logger:   log,
		Auth:     authSvc,
		Owner:    ownerSvc,
		Pipeline: pipeline,
		Parser:   parser,
		Database: db,
		Version:  version,
	}
	if infra.mqtt != nil {
		deps.MQTT = infra.mqtt
	}
	if cfg.Security.RateLimit.Enabled && infra.redis != nil {
		deps.RateLimiter = redis.NewRateLimiter(infra.redis, cfg.Security.RateLimit.RequestsPerMinute)
		log.Info("rate limiting enabled", "requests_per_minute", cfg.Security.RateLimit.RequestsPerMinute)
	}

	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	healthCtx, cancel := context.WithTimeout(ctx, startupHealthTimeout)
	if err := db.HealthCheck(healthCtx); err != nil {
		cancel()
		return fmt.Errorf("health check failed: database: %w", err)
	}
	infra.HealthCheck(healthCtx, log)
	cancel()

	log.Info("initialisation complete, waiting for shutdown signal",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// infrastructure holds the optional broker clients. Nil fields are
// disabled or unreachable.
type infrastructure struct {
	mqtt   *mqtt.Client
	influx *influxdb.Client
	amqp   *amqp.Publisher
	redis  *redis.Client
}

// connectInfrastructure connects every enabled client. Failures are logged
// and the client is left nil.
func connectInfrastructure(ctx context.Context, cfg *config.Config, log *logging.Logger) *infrastructure {
	infra := &infrastructure{}

	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			log.Warn("MQTT unavailable", "error", err)
		} else {
			client.SetLogger(log.With("component", "mqtt"))
			client.SetOnConnect(func() { log.Info("MQTT reconnected") })
			client.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
			infra.mqtt = client
			log.Info("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"client_id", cfg.MQTT.Broker.ClientID,
			)
		}
	} else {
		log.Info("MQTT disabled")
	}

	if client, err := influxdb.Connect(cfg.InfluxDB); err == nil {
		client.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		infra.influx = client
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		logOptional(log, "InfluxDB", err, influxdb.ErrDisabled)
	}

	if pub, err := amqp.Connect(cfg.AMQP); err == nil {
		infra.amqp = pub
		log.Info("AMQP connected", "exchange", pub.Exchange())
	} else {
		logOptional(log, "AMQP", err, amqp.ErrDisabled)
	}

	if client, err := redis.Connect(ctx, cfg.Redis); err == nil {
		infra.redis = client
		log.Info("Redis connected", "addr", cfg.Redis.Addr)
	} else {
		logOptional(log, "Redis", err, redis.ErrDisabled)
	}

	return infra
}

func logOptional(log *logging.Logger, name string, err, disabled error) {
	if errors.Is(err, disabled) {
		log.Info(name + " disabled")
		return
	}
	log.Warn(name+" unavailable", "error", err)
}

// Fanout builds the event fan-out over the connected sinks.
func (i *infrastructure) Fanout(cfg *config.Config) *events.Fanout {
	f := events.NewFanout()
	if i.mqtt != nil {
		f.Add(events.NewMQTTSink(i.mqtt, i.mqtt.Topics(), byte(cfg.MQTT.QoS))) //nolint:gosec // qos validated 0..2
	}
	if i.amqp != nil {
		f.Add(events.NewAMQPSink(i.amqp))
	}
	if i.influx != nil {
		f.Add(events.NewInfluxSink(i.influx))
	}
	return f
}

// HealthCheck logs the state of each connected client.
func (i *infrastructure) HealthCheck(ctx context.Context, log *logging.Logger) {
	checks := map[string]interface{ HealthCheck(context.Context) error }{}
	if i.mqtt != nil {
		checks["mqtt"] = i.mqtt
	}
	if i.influx != nil {
		checks["influxdb"] = i.influx
	}
	if i.amqp != nil {
		checks["amqp"] = i.amqp
	}
	if i.redis != nil {
		checks["redis"] = i.redis
	}
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			log.Warn("health check failed", "component", name, "error", err)
		}
	}
}

// Close shuts clients down in reverse order of connection.
func (i *infrastructure) Close(log *logging.Logger) {
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Error("error closing Redis", "error", err)
		}
	}
	if i.amqp != nil {
		if err := i.amqp.Close(); err != nil {
			log.Error("error closing AMQP", "error", err)
		}
	}
	if i.influx != nil {
		log.Info("closing InfluxDB connection")
		if err := i.influx.Close(); err != nil {
			log.Error("error closing InfluxDB", "error", err)
		}
	}
	if i.mqtt != nil {
		log.Info("disconnecting from MQTT")
		if err := i.mqtt.Close(); err != nil {
			log.Error("error closing MQTT", "error", err)
		}
	}
}
