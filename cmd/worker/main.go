package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/l4ndm1nes/taskflow-micro-saas/internal/blob"
	"github.com/l4ndm1nes/taskflow-micro-saas/internal/config"
	"github.com/l4ndm1nes/taskflow-micro-saas/internal/queue"
	"github.com/l4ndm1nes/taskflow-micro-saas/internal/store"
	"github.com/l4ndm1nes/taskflow-micro-saas/internal/worker"
)

func main() {
	_ = godotenv.Load()
	ctx := context.Background()
	cfg := config.Load()

	// Dynamo store (source of truth)
	st, err := store.NewDynamoStore(ctx, cfg)
	if err != nil {
		log.Fatal("worker: init dynamo:", err)
	}

	// S3 (file bytes in, result objects out)
	blobs, err := blob.NewS3Store(ctx, cfg)
	if err != nil {
		log.Fatal("worker: init s3:", err)
	}

	consumer := queue.NewConsumer(splitCSV(cfg.KafkaBrokers), cfg.KafkaTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	proc := worker.NewProcessor(st, blobs)

	log.Println("worker: started",
		"topic=", cfg.KafkaTopic,
		"group=", cfg.KafkaGroupID,
		"brokers=", cfg.KafkaBrokers,
	)

	for {
		body, commit, err := consumer.ReadNotification(ctx)
		if err != nil {
			log.Println("worker: read error:", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		// HandleRecord resolves the delivery either way: success, no-op
		// for duplicates/phantoms, or a best-effort FAILED marking. Only
		// a failed commit leads to redelivery.
		proc.HandleRecord(ctx, body)

		if err := commit(ctx); err != nil {
			log.Println("worker: commit error:", err)
			// not fatal; redelivery is safe, the terminal guard absorbs it
		}
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
