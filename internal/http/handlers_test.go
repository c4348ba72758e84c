package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/l4ndm1nes/taskflow-micro-saas/internal/models"
	"github.com/l4ndm1nes/taskflow-micro-saas/internal/queue"
	"github.com/l4ndm1nes/taskflow-micro-saas/internal/store"
)

type fakeStore struct {
	tasks     map[string]models.Task
	lastLimit int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: make(map[string]models.Task)}
}

func storeKey(pk, id string) string { return pk + "|" + id }

func (f *fakeStore) CreateTask(ctx context.Context, t models.Task) error {
	k := storeKey(t.PK, t.SK)
	if _, ok := f.tasks[k]; ok {
		return store.ErrTaskExists
	}
	f.tasks[k] = t
	return nil
}

func (f *fakeStore) GetTask(ctx context.Context, pk, taskID string) (*models.Task, error) {
	t, ok := f.tasks[storeKey(pk, taskID)]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeStore) ListTasks(ctx context.Context, pk string, limit int32, cursor string) ([]models.Task, string, error) {
	f.lastLimit = limit

	var all []models.Task
	for _, t := range f.tasks {
		if t.PK == pk {
			all = append(all, t)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt != all[j].CreatedAt {
			return all[i].CreatedAt > all[j].CreatedAt
		}
		return all[i].SK > all[j].SK
	})

	start := 0
	if c := store.DecodeCursor(cursor, pk); c != nil {
		for i, t := range all {
			if t.SK == c.SK {
				start = i + 1
				break
			}
		}
	}

	end := start + int(limit)
	if end > len(all) {
		end = len(all)
	}
	page := all[start:end]

	next := ""
	if end < len(all) && len(page) > 0 {
		last := page[len(page)-1]
		next = store.EncodeCursor(store.Cursor{PK: last.PK, SK: last.SK, CreatedAt: last.CreatedAt})
	}
	return page, next, nil
}

type fakeNotifier struct {
	calls int
	last  queue.ProcessingNotification
	err   error
}

func (f *fakeNotifier) PublishNotification(ctx context.Context, n queue.ProcessingNotification) error {
	f.calls++
	f.last = n
	return f.err
}

type fakePresigner struct{}

func (fakePresigner) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	return "https://signed.example/put/" + key, nil
}

func (fakePresigner) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://signed.example/get/" + key, nil
}

func newTestApp() (*App, *fakeStore, *fakeNotifier) {
	st := newFakeStore()
	notif := &fakeNotifier{}
	app := &App{
		Store:         st,
		TasksProducer: notif,
		Blobs:         fakePresigner{},
		Stage:         "test",
		Region:        "eu-central-1",
	}
	return app, st, notif
}

func newTestRouter(app *App) http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, app)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, sub string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if sub != "" {
		req.Header.Set("X-User-Sub", sub)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCreateTaskIdempotent(t *testing.T) {
	app, st, notif := newTestApp()
	h := newTestRouter(app)

	body := CreateTaskRequest{TaskID: "t1", FileKey: "uploads/u1/data.csv"}

	w1 := doJSON(t, h, http.MethodPost, "/tasks", "u1", body)
	if w1.Code != http.StatusCreated {
		t.Fatalf("first create: status %d, body %s", w1.Code, w1.Body)
	}
	var first CreateTaskResponse
	if err := json.Unmarshal(w1.Body.Bytes(), &first); err != nil {
		t.Fatal(err)
	}
	if first.Task.Status != models.StatusPending {
		t.Errorf("status = %s, want PENDING", first.Task.Status)
	}

	w2 := doJSON(t, h, http.MethodPost, "/tasks", "u1", body)
	if w2.Code != http.StatusOK {
		t.Fatalf("duplicate create: status %d, want 200", w2.Code)
	}
	var second ExistingTaskResponse
	if err := json.Unmarshal(w2.Body.Bytes(), &second); err != nil {
		t.Fatal(err)
	}
	if !second.Idem {
		t.Error("duplicate response not flagged idem")
	}
	if second.Task.TaskID != first.Task.TaskID || second.Task.CreatedAt != first.Task.CreatedAt {
		t.Error("duplicate submission did not observe the original outcome")
	}

	if len(st.tasks) != 1 {
		t.Errorf("store has %d records, want 1", len(st.tasks))
	}
	if notif.calls != 1 {
		t.Errorf("notification published %d times, want 1", notif.calls)
	}
	if notif.last.FileKey != "uploads/u1/data.csv" || notif.last.UserPK != "tenant_default#u1" {
		t.Errorf("notification = %+v", notif.last)
	}
}

func TestCreateTaskGeneratesID(t *testing.T) {
	app, _, _ := newTestApp()
	h := newTestRouter(app)

	w := doJSON(t, h, http.MethodPost, "/tasks", "u1", CreateTaskRequest{FileKey: "uploads/u1/a"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d", w.Code)
	}
	var resp CreateTaskResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Task.TaskID == "" {
		t.Error("task_id not generated")
	}
}

func TestCreateTaskSwallowsPublishFailure(t *testing.T) {
	app, _, notif := newTestApp()
	notif.err = fmt.Errorf("broker down")
	h := newTestRouter(app)

	w := doJSON(t, h, http.MethodPost, "/tasks", "u1", CreateTaskRequest{TaskID: "t1", FileKey: "uploads/u1/a"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d, want 201: the row is the source of truth, publish is best-effort", w.Code)
	}
}

func TestUnauthorizedWithoutSubject(t *testing.T) {
	app, _, _ := newTestApp()
	h := newTestRouter(app)

	for _, path := range []string{"/tasks", "/files/presign", "/files/download"} {
		w := doJSON(t, h, http.MethodPost, path, "", map[string]string{})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("POST %s without subject: status %d, want 401", path, w.Code)
		}
	}
	w := doJSON(t, h, http.MethodGet, "/tasks", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("GET /tasks without subject: status %d, want 401", w.Code)
	}
}

func seedTasks(st *fakeStore, sub string, n int) {
	pk := "tenant_default#" + sub
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("task-%02d", i)
		st.tasks[storeKey(pk, id)] = models.Task{
			PK:        pk,
			SK:        id,
			TaskID:    id,
			Status:    models.StatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
		}
	}
}

func TestListPaginationRoundTrip(t *testing.T) {
	app, st, _ := newTestApp()
	h := newTestRouter(app)
	seedTasks(st, "u1", 7)

	var seen []string
	cursor := ""
	for page := 0; ; page++ {
		if page > 10 {
			t.Fatal("pagination did not terminate")
		}
		path := "/tasks?limit=3"
		if cursor != "" {
			path += "&cursor=" + cursor
		}
		w := doJSON(t, h, http.MethodGet, path, "u1", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("list: status %d", w.Code)
		}
		var resp ListTasksResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		for _, item := range resp.Items {
			seen = append(seen, item.TaskID)
		}
		if resp.NextCursor == nil {
			break
		}
		cursor = *resp.NextCursor
	}

	if len(seen) != 7 {
		t.Fatalf("paged %d items, want 7: %v", len(seen), seen)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i-1] <= seen[i] {
			t.Fatalf("items not in descending creation order: %v", seen)
		}
	}
	uniq := make(map[string]bool)
	for _, id := range seen {
		if uniq[id] {
			t.Fatalf("duplicate item %s in pagination: %v", id, seen)
		}
		uniq[id] = true
	}
}

func TestListLimitClamping(t *testing.T) {
	app, st, _ := newTestApp()
	h := newTestRouter(app)

	cases := []struct {
		raw  string
		want int32
	}{
		{"", 10},
		{"abc", 10},
		{"0", 1},
		{"-5", 1},
		{"999", 50},
		{"25", 25},
	}
	for _, tc := range cases {
		path := "/tasks"
		if tc.raw != "" {
			path += "?limit=" + tc.raw
		}
		w := doJSON(t, h, http.MethodGet, path, "u1", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("limit=%q: status %d", tc.raw, w.Code)
		}
		if st.lastLimit != tc.want {
			t.Errorf("limit=%q clamped to %d, want %d", tc.raw, st.lastLimit, tc.want)
		}
	}
}

func TestListMalformedCursorStartsOver(t *testing.T) {
	app, st, _ := newTestApp()
	h := newTestRouter(app)
	seedTasks(st, "u1", 3)

	w := doJSON(t, h, http.MethodGet, "/tasks?cursor=%21%21garbage", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("malformed cursor: status %d, want 200", w.Code)
	}
	var resp ListTasksResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Items) != 3 {
		t.Errorf("got %d items, want all 3 from the top", len(resp.Items))
	}
}

func TestGetTaskCrossTenant(t *testing.T) {
	app, st, _ := newTestApp()
	h := newTestRouter(app)
	seedTasks(st, "u1", 1)

	w := doJSON(t, h, http.MethodGet, "/tasks/task-00", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("owner get: status %d", w.Code)
	}

	w = doJSON(t, h, http.MethodGet, "/tasks/task-00", "u2", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("cross-tenant get: status %d, want 404", w.Code)
	}
}

func TestPresignDownloadPrefixPolicy(t *testing.T) {
	app, _, _ := newTestApp()
	h := newTestRouter(app)

	for _, key := range []string{"etc/passwd", "uploads/u2/file", "results/u2/file", "uploads/u1x/file"} {
		w := doJSON(t, h, http.MethodPost, "/files/download", "u1", PresignDownloadRequest{FileKey: key})
		if w.Code != http.StatusBadRequest {
			t.Errorf("file_key=%q: status %d, want 400", key, w.Code)
		}
	}

	for _, key := range []string{"uploads/u1/file", "results/u1/t1.json"} {
		w := doJSON(t, h, http.MethodPost, "/files/download", "u1", PresignDownloadRequest{FileKey: key})
		if w.Code != http.StatusOK {
			t.Errorf("file_key=%q: status %d, want 200", key, w.Code)
		}
	}

	w := doJSON(t, h, http.MethodPost, "/files/download", "u1", PresignDownloadRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty file_key: status %d, want 400", w.Code)
	}
}

func TestPresignUploadDefaults(t *testing.T) {
	app, _, _ := newTestApp()
	h := newTestRouter(app)

	w := doJSON(t, h, http.MethodPost, "/files/presign", "u1", map[string]string{})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var resp PresignUploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(resp.ObjectKey, "uploads/u1/") {
		t.Errorf("object_key = %s, want uploads/u1/ prefix", resp.ObjectKey)
	}
	if !strings.HasSuffix(resp.ObjectKey, "-file.bin") {
		t.Errorf("object_key = %s, want default filename suffix", resp.ObjectKey)
	}
	if resp.ContentType != "application/octet-stream" {
		t.Errorf("content_type = %s", resp.ContentType)
	}
	if resp.UploadURL == "" {
		t.Error("upload_url empty")
	}
}

func TestHealthAndMe(t *testing.T) {
	app, _, _ := newTestApp()
	h := newTestRouter(app)

	w := doJSON(t, h, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: status %d", w.Code)
	}

	w = doJSON(t, h, http.MethodGet, "/me", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: status %d", w.Code)
	}
	var me map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &me); err != nil {
		t.Fatal(err)
	}
	if me["sub"] != "u1" {
		t.Errorf("sub = %v, want u1", me["sub"])
	}
}
