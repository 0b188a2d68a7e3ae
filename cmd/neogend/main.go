// Neogend Core - session and privilege authority for role-play game servers.
//
// This is the main entry point. It loads configuration, opens the account
// store, wires the credential pipeline and serves the HTTP API until a
// shutdown signal arrives.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	_ "github.com/nerrad567/neogend-core/migrations"

	"github.com/nerrad567/neogend-core/internal/api"
	"github.com/nerrad567/neogend-core/internal/audit"
	"github.com/nerrad567/neogend-core/internal/auth"
	"github.com/nerrad567/neogend-core/internal/infrastructure/config"
	"github.com/nerrad567/neogend-core/internal/infrastructure/database"
	"github.com/nerrad567/neogend-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/neogend-core/internal/infrastructure/logging"
	"github.com/nerrad567/neogend-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/neogend-core/internal/notify"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	flags := pflag.NewFlagSet("neogend", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to the YAML configuration file (default: $NEOGEND_CONFIG or "+defaultConfigPath+")")
	showVersion := flags.Bool("version", false, "print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if *showVersion {
		fmt.Printf("neogend %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, resolveConfigPath(*configPath)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application proper, separated from main for testability.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting Neogend Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "site", cfg.Site.ID)

	db, err := database.Open(database.Config{
		Driver:      cfg.Database.Driver,
		Path:        cfg.Database.Path,
		DSN:         cfg.Database.DSN,
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
	log.Info("database connected", "driver", db.Driver())

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	store := accountStore(db)
	if _, seedErr := auth.SeedOwner(ctx, store, cfg.Security.SeedOwner.Nipol, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding owner: %w", seedErr)
	}

	codec, err := auth.NewCodec(cfg.Security.JWT.Secret, nil)
	if err != nil {
		return fmt.Errorf("creating credential codec: %w", err)
	}
	issuer, err := auth.NewIssuer(codec, cfg.Security.JWT.AccessTTL(), cfg.Security.JWT.RenewalTTL())
	if err != nil {
		return fmt.Errorf("creating credential issuer: %w", err)
	}

	recorder := audit.NewRecorder(audit.NewRepository(db, db.Driver()), log.Logger)
	hub := api.NewHub(log)
	ledger := auth.NewLedger(store, log.Logger, recorder, hub)

	deps := api.Deps{
		Config:        cfg.API,
		WS:            cfg.WebSocket,
		Security:      cfg.Security,
		Logger:        log,
		DB:            db,
		Store:         store,
		Issuer:        issuer,
		Verifier:      auth.NewVerifier(codec, store, log.Logger),
		Renewer:       auth.NewRenewer(codec, store, issuer, log.Logger),
		Authenticator: auth.NewAuthenticator(store, issuer, log.Logger),
		Ledger:        ledger,
		Guard:         auth.NewGuard(cfg.Security.ProtectedAccounts),
		Audit:         recorder,
		Hub:           hub,
		Version:       version,
	}

	if cfg.MQTT.Enabled {
		mqttClient, stopRelay, connErr := connectMQTT(cfg, log, ledger, hub)
		if connErr != nil {
			return connErr
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		defer func() {
			if stopErr := stopRelay(); stopErr != nil {
				log.Warn("error dropping revocation subscription", "error", stopErr)
			}
		}()
		deps.MQTT = mqttClient
	} else {
		log.Info("MQTT disabled, revocations stay local")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(cfg.InfluxDB, cfg.Site.ID)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		ledger.AddSink(notify.NewMetricsSink(influxClient))
		deps.Influx = influxClient
		deps.Metrics = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// connectMQTT dials the broker and wires revocation fan-out in both
// directions: local bumps are published, remote ones close local channels.
func connectMQTT(cfg *config.Config, log *logging.Logger, ledger *auth.Ledger, hub *api.Hub) (*mqtt.Client, func() error, error) {
	client, err := mqtt.Connect(cfg.MQTT, cfg.Site.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	origin := cfg.MQTT.Broker.ClientID + "-" + uuid.NewString()
	ledger.AddSink(notify.NewMQTTSink(client, client.Topics(), origin))
	stop, err := notify.Relay(client, client.Topics(), origin, hub, log.Logger)
	if err != nil {
		client.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("subscribing to remote revocations: %w", err)
	}

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"origin", origin,
	)
	return client, stop, nil
}

func accountStore(db *database.DB) auth.AccountStore {
	if db.Driver() == database.DriverPostgres {
		return auth.NewPostgresAccountStore(db)
	}
	return auth.NewAccountStore(db.DB)
}

// resolveConfigPath prefers the flag, then NEOGEND_CONFIG, then the default.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("NEOGEND_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
