// Command server runs the sync server: machine registry, sync/command
// API, device authorization, and the bridge WebSocket channel.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"specsync/internal/audit"
	auditrepo "specsync/internal/audit/repository"
	"specsync/internal/config"
	"specsync/internal/db"
	"specsync/internal/db/migrate"
	"specsync/internal/deviceauth"
	deviceauthhandler "specsync/internal/deviceauth/handler"
	deviceauthrepo "specsync/internal/deviceauth/repository"
	"specsync/internal/registry"
	registryrepo "specsync/internal/registry/repository"
	"specsync/internal/security"
	"specsync/internal/server"
	synchandler "specsync/internal/sync/handler"
	"specsync/internal/sync/hub"
	"specsync/internal/telemetry"
	otelsetup "specsync/internal/telemetry/otel"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "specsync-server", cfg.OTLPInsecure)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	// Postgres when configured, in-memory otherwise.
	var (
		sqlDB      *sql.DB
		regStore   registryrepo.Store
		auditRepo  auditrepo.Repository
		tokenStore deviceauthrepo.TokenStore
		pinger     server.Pinger
	)
	if cfg.DatabaseURL != "" {
		if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		sqlDB, err = db.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer sqlDB.Close()
		regStore = registryrepo.NewPostgresStore(sqlDB)
		auditRepo = auditrepo.NewPostgresRepository(sqlDB)
		tokenStore = deviceauthrepo.NewPostgresTokenStore(sqlDB)
		pinger = sqlDB
	} else {
		log.Println("no DATABASE_URL set, using in-memory stores")
		regStore = registryrepo.NewMemoryStore()
		auditRepo = auditrepo.NewMemoryRepository()
		tokenStore = deviceauthrepo.NewMemoryTokenStore()
	}

	var emitters []audit.Emitter
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		kafka := audit.NewKafkaEmitter(brokers, cfg.AuditKafkaTopic)
		defer kafka.Close()
		emitters = append(emitters, kafka)
		log.Printf("audit stream enabled: topic %s on %v", cfg.AuditKafkaTopic, brokers)
	}
	if cfg.OTLPEndpoint != "" {
		emitters = append(emitters, audit.NewOTelEmitter(providers.LoggerProvider))
	}
	recorder := audit.NewRecorder(auditRepo, emitters...)

	reg := registry.New(regStore, recorder)
	if err := reg.Load(ctx); err != nil {
		return err
	}

	h := hub.New(reg)
	reg.SetPusher(h)

	deviceSvc := deviceauth.NewService(tokenStore, cfg.CodeTTL(), cfg.PollInterval(), cfg.BearerTTL(), cfg.VerificationURI)

	router := server.NewRouter(server.Deps{
		Sync:         synchandler.New(reg, auditRepo, h.Connected),
		Device:       deviceauthhandler.New(deviceSvc),
		ServeWS:      h.ServeWS,
		APIKeys:      security.NewAPIKeyVerifier(cfg.SyncAPIKey, cfg.SyncAPIKeyHash),
		Tokens:       deviceSvc,
		HealthPinger: pinger,
		Metrics:      telemetry.HTTPMetrics(providers.MeterProvider),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
