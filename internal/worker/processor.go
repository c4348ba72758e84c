package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/l4ndm1nes/taskflow-micro-saas/internal/models"
	"github.com/l4ndm1nes/taskflow-micro-saas/internal/queue"
	"github.com/l4ndm1nes/taskflow-micro-saas/internal/store"
)

// TaskStore is the slice of the durable store the processor needs.
type TaskStore interface {
	GetTask(ctx context.Context, pk, taskID string) (*models.Task, error)
	MarkDone(ctx context.Context, pk, taskID, resultKey string, stats models.Stats, processedAt string) error
	MarkFailed(ctx context.Context, pk, taskID, errMsg, processedAt string) error
}

// BlobStore is the slice of object storage the processor needs.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// ResultDocument is the object written to results/<sub>/<task_id>.json.
type ResultDocument struct {
	TaskID      string       `json:"task_id"`
	FileKey     string       `json:"file_key"`
	Stats       models.Stats `json:"stats"`
	GeneratedAt string       `json:"generated_at"`
}

// Processor drives a task from PENDING to a terminal state. The task
// row is the source of truth; the notification only says which row to
// look at, so duplicate and out-of-order deliveries resolve as no-ops.
type Processor struct {
	store TaskStore
	blobs BlobStore
	now   func() time.Time
}

func NewProcessor(st TaskStore, blobs BlobStore) *Processor {
	return &Processor{
		store: st,
		blobs: blobs,
		now:   time.Now,
	}
}

// HandleRecord resolves one raw delivery body. Processing failures are
// recorded on the task (best-effort) rather than returned: one bad
// record must not poison the rest of the delivery, so the caller always
// commits after this returns.
func (p *Processor) HandleRecord(ctx context.Context, body []byte) {
	var n queue.ProcessingNotification
	if err := json.Unmarshal(body, &n); err != nil {
		log.Println("worker: bad notification body:", err)
		return
	}

	if err := p.Process(ctx, n); err != nil {
		log.Println("worker: processing failed:", err)
		if n.TaskID != "" && n.UserPK != "" {
			now := p.now().UTC().Format(time.RFC3339)
			if ferr := p.store.MarkFailed(ctx, n.UserPK, n.TaskID, err.Error(), now); ferr != nil {
				log.Println("worker: failed to mark task failed:", ferr)
			}
		}
	}
}

// Process runs the state machine for one notification. A nil return
// means the delivery is resolved, which includes the no-op cases:
// phantom task, already-terminal task, or a lost terminal-update race.
func (p *Processor) Process(ctx context.Context, n queue.ProcessingNotification) error {
	if n.TaskID == "" || n.UserPK == "" || n.FileKey == "" {
		return fmt.Errorf("invalid notification: missing required fields")
	}

	task, err := p.store.GetTask(ctx, n.UserPK, n.TaskID)
	if err != nil {
		return err
	}
	if task == nil {
		log.Printf("worker: task not found pk=%s task_id=%s, skipping", n.UserPK, n.TaskID)
		return nil
	}
	if task.Terminal() {
		log.Printf("worker: task %s already processed status=%s, skipping", n.TaskID, task.Status)
		return nil
	}

	data, err := p.blobs.Get(ctx, n.FileKey)
	if err != nil {
		return fmt.Errorf("download %s: %w", n.FileKey, err)
	}

	stats := ComputeStats(data)
	sub := subjectFromPK(n.UserPK)
	resultKey := fmt.Sprintf("results/%s/%s.json", sub, n.TaskID)

	doc, err := json.Marshal(ResultDocument{
		TaskID:      n.TaskID,
		FileKey:     n.FileKey,
		Stats:       stats,
		GeneratedAt: p.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if err := p.blobs.Put(ctx, resultKey, doc, "application/json"); err != nil {
		return fmt.Errorf("write result %s: %w", resultKey, err)
	}

	now := p.now().UTC().Format(time.RFC3339)
	if err := p.store.MarkDone(ctx, n.UserPK, n.TaskID, resultKey, stats, now); err != nil {
		if errors.Is(err, store.ErrNotPending) {
			// A concurrent delivery finished first. Its result object is
			// identical, so losing the update race is a clean no-op.
			log.Printf("worker: task %s completed concurrently, skipping", n.TaskID)
			return nil
		}
		return fmt.Errorf("mark done: %w", err)
	}

	log.Printf("worker: task %s completed -> %s", n.TaskID, resultKey)
	return nil
}

func subjectFromPK(pk string) string {
	if i := strings.Index(pk, "#"); i >= 0 {
		return pk[i+1:]
	}
	return "unknown"
}
