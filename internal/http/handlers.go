package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/l4ndm1nes/taskflow-micro-saas/internal/blob"
	"github.com/l4ndm1nes/taskflow-micro-saas/internal/models"
	"github.com/l4ndm1nes/taskflow-micro-saas/internal/queue"
	"github.com/l4ndm1nes/taskflow-micro-saas/internal/store"
)

const maxClientTokenLen = 64

type CreateTaskRequest struct {
	TaskID      string `json:"task_id"`
	FileKey     string `json:"file_key"`
	ClientToken string `json:"client_token"`
}

type CreateTaskResponse struct {
	Task models.TaskView `json:"task"`
}

type ExistingTaskResponse struct {
	Task models.Task `json:"task"`
	Idem bool        `json:"idem"`
}

type ListTasksResponse struct {
	Items      []models.Task `json:"items"`
	NextCursor *string       `json:"next_cursor"`
}

type PresignUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type PresignUploadResponse struct {
	UploadURL   string `json:"upload_url"`
	ObjectKey   string `json:"object_key"`
	ContentType string `json:"content_type"`
}

type PresignDownloadRequest struct {
	FileKey string `json:"file_key"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"stage":  a.Stage,
		"region": a.Region,
	})
}

func (a *App) meHandler(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"sub":   id.Sub,
		"email": id.Email,
		"stage": a.Stage,
	})
}

// createTask durably records the task, then triggers processing. The
// conditional insert carries all the idempotency: a retry with the same
// task_id observes the original record, never a conflict.
func (a *App) createTask(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	pk := userPK(id.Sub)

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	taskID := req.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}
	clientToken := req.ClientToken
	if clientToken == "" {
		clientToken = uuid.NewString()
	}
	if len(clientToken) > maxClientTokenLen {
		clientToken = clientToken[:maxClientTokenLen]
	}

	now := time.Now().UTC()
	task := models.Task{
		PK:          pk,
		SK:          taskID,
		TaskID:      taskID,
		FileKey:     req.FileKey,
		ClientToken: clientToken,
		Status:      models.StatusPending,
		CreatedAt:   now.Format(time.RFC3339),
		TTL:         now.Add(models.RetentionPeriod).Unix(),
	}

	if err := a.Store.CreateTask(r.Context(), task); err != nil {
		if errors.Is(err, store.ErrTaskExists) {
			existing, gerr := a.Store.GetTask(r.Context(), pk, taskID)
			if gerr != nil {
				writeError(w, http.StatusInternalServerError, "failed to load task")
				return
			}
			if existing == nil {
				// Lost the insert race and the winner is already gone.
				writeError(w, http.StatusConflict, "Task conflict")
				return
			}
			writeJSON(w, http.StatusOK, ExistingTaskResponse{Task: *existing, Idem: true})
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to store task")
		return
	}

	// Best-effort trigger. A lost notification strands the task in
	// PENDING until redelivery from elsewhere; there is no sweep.
	notif := queue.ProcessingNotification{
		TaskID:  task.TaskID,
		UserPK:  task.PK,
		FileKey: task.FileKey,
	}
	if err := a.TasksProducer.PublishNotification(r.Context(), notif); err != nil {
		log.Printf("api: failed to enqueue task %s: %v", task.TaskID, err)
	}

	writeJSON(w, http.StatusCreated, CreateTaskResponse{Task: task.View()})
}

func (a *App) listTasks(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	pk := userPK(id.Sub)

	limit := parseLimit(r.URL.Query().Get("limit"))
	cursor := r.URL.Query().Get("cursor")

	items, next, err := a.Store.ListTasks(r.Context(), pk, limit, cursor)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load tasks")
		return
	}
	if items == nil {
		items = []models.Task{}
	}

	resp := ListTasksResponse{Items: items}
	if next != "" {
		resp.NextCursor = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) getTask(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	pk := userPK(id.Sub)

	taskID := chi.URLParam(r, "id")
	task, err := a.Store.GetTask(r.Context(), pk, taskID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": task})
}

func (a *App) presignUpload(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())

	var req PresignUploadRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Filename == "" {
		req.Filename = "file.bin"
	}
	if req.ContentType == "" {
		req.ContentType = "application/octet-stream"
	}

	key := "uploads/" + id.Sub + "/" + uuid.NewString() + "-" + req.Filename

	url, err := a.Blobs.PresignPut(r.Context(), key, req.ContentType, blob.PresignTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to presign upload")
		return
	}

	writeJSON(w, http.StatusOK, PresignUploadResponse{
		UploadURL:   url,
		ObjectKey:   key,
		ContentType: req.ContentType,
	})
}

func (a *App) presignDownload(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())

	var req PresignDownloadRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	fileKey := strings.TrimSpace(req.FileKey)
	if fileKey == "" {
		writeError(w, http.StatusBadRequest, "file_key required")
		return
	}
	if err := blob.CheckAccess(id.Sub, fileKey); err != nil {
		writeError(w, http.StatusBadRequest, "Access denied to file")
		return
	}

	url, err := a.Blobs.PresignGet(r.Context(), fileKey, blob.PresignTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to presign download")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"download_url": url})
}

// parseLimit clamps to [1, 50]; anything unparseable falls back to 10.
func parseLimit(raw string) int32 {
	if raw == "" {
		return 10
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 10
	}
	if n < 1 {
		return 1
	}
	if n > 50 {
		return 50
	}
	return int32(n)
}
