package httpapi

import (
	"context"
	"time"

	"github.com/l4ndm1nes/taskflow-micro-saas/internal/models"
	"github.com/l4ndm1nes/taskflow-micro-saas/internal/queue"
)

// TaskStore is what the handlers need from the durable store.
type TaskStore interface {
	CreateTask(ctx context.Context, t models.Task) error
	GetTask(ctx context.Context, pk, taskID string) (*models.Task, error)
	ListTasks(ctx context.Context, pk string, limit int32, cursor string) ([]models.Task, string, error)
}

// Notifier publishes processing hints. Publish failures are logged and
// swallowed by the caller: the task row is the durable source of truth.
type Notifier interface {
	PublishNotification(ctx context.Context, n queue.ProcessingNotification) error
}

// Presigner issues time-limited access URLs for uploads and downloads.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// App is the dependency container handed to the route table. Built once
// per process; every collaborator can be swapped for a test double.
type App struct {
	Store         TaskStore
	TasksProducer Notifier
	Blobs         Presigner
	Stage         string
	Region        string
}
