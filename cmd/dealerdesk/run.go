package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/dealerdesk-core/internal/api"
	"github.com/nerrad567/dealerdesk-core/internal/cardroom"
	"github.com/nerrad567/dealerdesk-core/internal/hubauth"
	"github.com/nerrad567/dealerdesk-core/internal/infrastructure/config"
	"github.com/nerrad567/dealerdesk-core/internal/infrastructure/database"
	"github.com/nerrad567/dealerdesk-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/dealerdesk-core/internal/infrastructure/logging"
	"github.com/nerrad567/dealerdesk-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/dealerdesk-core/internal/outbox"
	"github.com/nerrad567/dealerdesk-core/internal/relay"
	"github.com/nerrad567/dealerdesk-core/internal/vault"
	"github.com/nerrad567/dealerdesk-core/migrations"
)

// run is the serve command, separated from cobra for testability.
// It blocks until ctx is cancelled or a background task fails.
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Dealer Desk Core",
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
	defer log.Close() //nolint:errcheck // best effort on exit
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	creds, err := vault.Open(cfg.Storage.DataDir, log)
	if err != nil {
		return fmt.Errorf("opening credential vault: %w", err)
	}
	queue, err := outbox.Open(cfg.Storage.QueueDir(), log)
	if err != nil {
		return fmt.Errorf("opening message queue: %w", err)
	}

	hub := newHubClient(cfg, creds)
	hub.SetLogger(log)
	if cfg.Hub.Host == "" {
		log.Warn("hub not configured, running offline only")
	}

	g, gctx := errgroup.WithContext(ctx)

	var observers relay.Observers

	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			log.Warn("MQTT unavailable, relay mirror disabled", "error", mqttErr)
		} else {
			defer func() {
				log.Info("disconnecting from MQTT")
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
			mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
			mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })

			mirror := mqtt.NewMirror(mqttClient, mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix}, byte(cfg.MQTT.QoS), log) //nolint:gosec // qos validated 0..2
			g.Go(func() error {
				mirror.Run(gctx)
				return nil
			})
			observers = append(observers, mirror)
			log.Info("MQTT mirror started",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"prefix", cfg.MQTT.TopicPrefix,
			)
		}
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			log.Warn("InfluxDB unavailable, relay telemetry disabled", "error", influxErr)
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
			observers = append(observers, influxdb.NewTelemetry(influxClient))
			log.Info("InfluxDB telemetry enabled", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	rly, err := relay.New(relay.Options{
		Auth:   hub,
		Queue:  queue,
		Dialer: relay.WebsocketDialer{InsecureSkipVerify: cfg.Hub.InsecureSkipVerify},
		Store:  cardroom.NewRepository(db.DB),
		Logger: log,

		Observer:         observers,
		SocketURL:        cfg.Hub.SocketURL(),
		ChannelPrefix:    cfg.Hub.ChannelPrefix,
		EventName:        cfg.Relay.EventName,
		SubscribeTimeout: cfg.GetSubscribeTimeout(),
		AuthTimeout:      cfg.GetHubRequestTimeout(),
		WriteTimeout:     cfg.GetRelayWriteTimeout(),
		MaxAttempts:      cfg.Relay.MaxReconnectAttempts,
		Backoff: relay.Backoff{
			Unit: cfg.GetBackoffUnit(),
			Max:  cfg.GetMaxBackoff(),
		},
	})
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}
	defer func() {
		log.Info("closing relay")
		rly.Close()
	}()

	srv, err := api.New(api.Deps{
		Config:   cfg.API,
		Security: cfg.Security,
		Logger:   log,
		Relay:    rly,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := srv.Start(gctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	log.Info("API server listening", "addr", srv.Addr())

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, cleaning up")
		return srv.Close()
	})

	if waitErr := g.Wait(); waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return fmt.Errorf("shutting down: %w", waitErr)
	}

	log.Info("Dealer Desk Core stopped")
	return nil
}

func newHubClient(cfg *config.Config, cache hubauth.CredentialCache) *hubauth.Client {
	return hubauth.New(hubauth.Config{
		BaseURL:            cfg.Hub.HTTPBaseURL(),
		TokenPath:          cfg.Storage.TokenPath(),
		InsecureSkipVerify: cfg.Hub.InsecureSkipVerify,
		RequestTimeout:     cfg.GetHubRequestTimeout(),
		HealthTimeout:      cfg.GetHubHealthTimeout(),
	}, cache)
}

// resetCredentials removes the cached operator credentials and the stored
// hub token so the next login must reach the hub.
func resetCredentials(out io.Writer, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // best effort on exit

	creds, err := vault.Open(cfg.Storage.DataDir, log)
	if err != nil {
		return fmt.Errorf("opening credential vault: %w", err)
	}
	if err := creds.Reset(); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	if err := newHubClient(cfg, nil).ForgetToken(); err != nil {
		return fmt.Errorf("removing hub token: %w", err)
	}

	fmt.Fprintln(out, "credentials cleared")
	return nil
}

// listQueues prints the number of undelivered events held for each tenant.
func listQueues(out io.Writer, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // best effort on exit

	queue, err := outbox.Open(cfg.Storage.QueueDir(), log)
	if err != nil {
		return fmt.Errorf("opening message queue: %w", err)
	}
	tenants, err := queue.Tenants()
	if err != nil {
		return fmt.Errorf("listing queues: %w", err)
	}
	if len(tenants) == 0 {
		fmt.Fprintln(out, "no queued events")
		return nil
	}
	for _, tenant := range tenants {
		n, lenErr := queue.Len(tenant)
		if lenErr != nil {
			return fmt.Errorf("reading queue %s: %w", tenant, lenErr)
		}
		fmt.Fprintf(out, "%s\t%d\n", tenant, n)
	}
	return nil
}
