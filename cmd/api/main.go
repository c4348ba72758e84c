package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/l4ndm1nes/taskflow-micro-saas/internal/blob"
	"github.com/l4ndm1nes/taskflow-micro-saas/internal/config"
	httpapi "github.com/l4ndm1nes/taskflow-micro-saas/internal/http"
	"github.com/l4ndm1nes/taskflow-micro-saas/internal/queue"
	"github.com/l4ndm1nes/taskflow-micro-saas/internal/store"
)

func main() {
	_ = godotenv.Load()
	ctx := context.Background()
	cfg := config.Load()

	st, err := store.NewDynamoStore(ctx, cfg)
	if err != nil {
		log.Fatal("api: init dynamo store:", err)
	}

	blobs, err := blob.NewS3Store(ctx, cfg)
	if err != nil {
		log.Fatal("api: init s3 store:", err)
	}

	prod, err := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		log.Fatal("api: init kafka producer:", err)
	}
	defer prod.Close()

	app := &httpapi.App{
		Store:         st,
		TasksProducer: prod,
		Blobs:         blobs,
		Stage:         cfg.Stage,
		Region:        cfg.AWSRegion,
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-User-Sub", "X-User-Email"},
	}))

	httpapi.RegisterRoutes(r, app)

	log.Println("API listening on :8080 stage=", cfg.Stage)
	log.Fatal(http.ListenAndServe(":8080", r))
}
