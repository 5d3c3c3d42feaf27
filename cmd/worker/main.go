// Command worker consumes the audit Kafka stream and forwards entries to
// Loki. It is the only consumer of the stream shipped with the server;
// other consumers attach with their own group ids.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"specsync/internal/config"
	"specsync/internal/telemetry/loki"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("worker: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		return errors.New("KAFKA_BROKERS must be set")
	}
	if cfg.LokiURL == "" {
		return errors.New("LOKI_URL must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.AuditKafkaTopic,
		MaxBytes: 1 << 20,
	})
	defer reader.Close()

	log.Printf("consuming %s as %s, pushing to %s", cfg.AuditKafkaTopic, cfg.KafkaGroupID, cfg.LokiURL)
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		pushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = loki.PushAuditJSON(pushCtx, cfg.LokiURL, msg.Value)
		cancel()
		if err != nil {
			// Leave the offset uncommitted so the entry is retried.
			log.Printf("push audit entry: %v", err)
			continue
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}
