package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"taskboard/internal/analytics"
	"taskboard/internal/models"
	"taskboard/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.Open(filepath.Join(t.TempDir(), "taskboard.db"), discardLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return New(store, discardLogger(), opts)
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status=%d want=%d body=%s", w.Code, want, w.Body.String())
	}
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, contains string) {
	t.Helper()
	expectStatus(t, w, status)
	body := decodeBody[map[string]string](t, w)
	if !strings.Contains(body["error"], contains) {
		t.Errorf("error = %q, want it to contain %q", body["error"], contains)
	}
}

func createBoard(t *testing.T, h http.Handler, body string) models.Board {
	t.Helper()
	w := doRequest(t, h, http.MethodPost, "/api/boards", body)
	expectStatus(t, w, http.StatusCreated)
	return decodeBody[models.Board](t, w)
}

func createTask(t *testing.T, h http.Handler, body string) models.Task {
	t.Helper()
	w := doRequest(t, h, http.MethodPost, "/api/tasks", body)
	expectStatus(t, w, http.StatusCreated)
	return decodeBody[models.Task](t, w)
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, Options{}).Engine()

	for _, path := range []string{"/health", "/api/healthz"} {
		w := doRequest(t, h, http.MethodGet, path, "")
		expectStatus(t, w, http.StatusOK)
		if body := decodeBody[map[string]string](t, w); body["status"] != "healthy" {
			t.Errorf("%s: body = %v", path, body)
		}
	}

	w := doRequest(t, h, http.MethodGet, "/ready", "")
	expectStatus(t, w, http.StatusOK)
}

type brokenStore struct {
	Store
}

func (brokenStore) ListBoards(context.Context) ([]models.Board, error) {
	return nil, errors.New("connection reset")
}

func (brokenStore) Ping(context.Context) error {
	return errors.New("connection reset")
}

func TestStoreFailures(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(brokenStore{}, discardLogger(), Options{}).Engine()

	w := doRequest(t, h, http.MethodGet, "/api/boards", "")
	expectError(t, w, http.StatusInternalServerError, "internal error")
	if strings.Contains(w.Body.String(), "connection reset") {
		t.Errorf("internal details leaked to the client: %s", w.Body.String())
	}

	w = doRequest(t, h, http.MethodGet, "/ready", "")
	expectStatus(t, w, http.StatusServiceUnavailable)
}

func TestCreateBoard(t *testing.T) {
	h := newTestServer(t, Options{}).Engine()

	board := createBoard(t, h, `{"name":"Sprint 1","color":"blue"}`)
	if board.ID <= 0 || board.Name != "Sprint 1" {
		t.Errorf("unexpected board %+v", board)
	}
	if board.Description != nil {
		t.Errorf("description = %q, want null", *board.Description)
	}
	if board.CreatedAt.IsZero() || board.UpdatedAt.IsZero() {
		t.Errorf("timestamps not set: %+v", board)
	}
	if board.Color == nil || *board.Color != "blue" || board.DisplayColor != "#dbeafe" {
		t.Errorf("color = %v, display color = %q", board.Color, board.DisplayColor)
	}

	raw := doRequest(t, h, http.MethodGet, "/api/boards/"+itoa(board.ID), "").Body.String()
	if !strings.Contains(raw, `"description":null`) || !strings.Contains(raw, `"tasks":[]`) {
		t.Errorf("expected explicit null description and empty tasks, got %s", raw)
	}
}

func TestCreateBoard_Invalid(t *testing.T) {
	h := newTestServer(t, Options{}).Engine()

	expectError(t, doRequest(t, h, http.MethodPost, "/api/boards", `{}`), http.StatusBadRequest, "name is required")
	expectError(t, doRequest(t, h, http.MethodPost, "/api/boards", `{"name":"  "}`), http.StatusBadRequest, "name must not be empty")
	expectError(t, doRequest(t, h, http.MethodPost, "/api/boards", `{"name":`), http.StatusBadRequest, "invalid request body")

	boards := decodeBody[[]models.Board](t, doRequest(t, h, http.MethodGet, "/api/boards", ""))
	if len(boards) != 0 {
		t.Errorf("invalid boards must not be persisted, got %+v", boards)
	}
}

func TestListBoards_EmbedsTasks(t *testing.T) {
	h := newTestServer(t, Options{}).Engine()

	first := createBoard(t, h, `{"name":"First"}`)
	second := createBoard(t, h, `{"name":"Second","color":"yellow"}`)
	createTask(t, h, `{"board_id":`+itoa(first.ID)+`,"title":"on first"}`)

	w := doRequest(t, h, http.MethodGet, "/api/boards", "")
	expectStatus(t, w, http.StatusOK)
	boards := decodeBody[[]models.Board](t, w)

	if len(boards) != 2 || boards[0].ID != second.ID || boards[1].ID != first.ID {
		t.Fatalf("expected newest board first, got %+v", boards)
	}
	if boards[0].DisplayColor != "#fef3c7" {
		t.Errorf("display color = %q", boards[0].DisplayColor)
	}
	if len(boards[1].Tasks) != 1 || boards[1].Tasks[0].Title != "on first" {
		t.Errorf("tasks not embedded: %+v", boards[1].Tasks)
	}
}

func TestUpdateBoard(t *testing.T) {
	h := newTestServer(t, Options{}).Engine()
	board := createBoard(t, h, `{"name":"Sprint","description":"two weeks"}`)
	path := "/api/boards/" + itoa(board.ID)

	w := doRequest(t, h, http.MethodPut, path, `{"color":"red"}`)
	expectStatus(t, w, http.StatusOK)
	updated := decodeBody[models.Board](t, w)
	if updated.Name != "Sprint" || updated.Description == nil || *updated.Description != "two weeks" {
		t.Errorf("untouched fields changed: %+v", updated)
	}
	if updated.Color == nil || *updated.Color != "red" {
		t.Errorf("color = %v", updated.Color)
	}

	expectError(t, doRequest(t, h, http.MethodPut, path, `{"name":null}`), http.StatusBadRequest, "name must not be empty")
	expectError(t, doRequest(t, h, http.MethodPut, "/api/boards/999", `{"name":"x"}`), http.StatusNotFound, "board not found")
}

func TestCreateTask_ValidationRejectsAndPersistsNothing(t *testing.T) {
	h := newTestServer(t, Options{}).Engine()
	board := createBoard(t, h, `{"name":"Board"}`)
	boardID := itoa(board.ID)

	tests := []struct {
		name     string
		body     string
		contains string
	}{
		{name: "missing title", body: `{"board_id":` + boardID + `,"status":"todo"}`, contains: "title is required"},
		{name: "empty title", body: `{"board_id":` + boardID + `,"title":""}`, contains: "title must not be empty"},
		{name: "missing board", body: `{"title":"orphan"}`, contains: "board_id is required"},
		{name: "unknown board", body: `{"board_id":999,"title":"orphan"}`, contains: "board 999 does not exist"},
		{name: "bad board id", body: `{"board_id":"abc","title":"x"}`, contains: "board_id must be a positive integer"},
		{name: "bad status", body: `{"board_id":` + boardID + `,"title":"x","status":"blocked"}`, contains: "todo, in_progress, done"},
		{name: "bad priority", body: `{"board_id":` + boardID + `,"title":"x","priority":"urgent"}`, contains: "low, medium, high"},
		{name: "bad due date", body: `{"board_id":` + boardID + `,"title":"x","due_date":"soon"}`, contains: "invalid due_date"},
		{name: "malformed", body: `{"board_id":`, contains: "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, doRequest(t, h, http.MethodPost, "/api/tasks", tt.body), http.StatusBadRequest, tt.contains)
		})
	}

	tasks := decodeBody[[]models.Task](t, doRequest(t, h, http.MethodGet, "/api/tasks", ""))
	if len(tasks) != 0 {
		t.Errorf("rejected tasks must not be persisted, got %+v", tasks)
	}
}

func TestCreateTask(t *testing.T) {
	h := newTestServer(t, Options{}).Engine()
	board := createBoard(t, h, `{"name":"Board"}`)

	task := createTask(t, h, `{"board_id":"`+itoa(board.ID)+`","title":"Write docs","priority":"high","due_date":"2025-05-01"}`)
	if task.BoardID != board.ID || task.Status != models.StatusTodo {
		t.Errorf("unexpected task %+v", task)
	}
	if task.Priority == nil || *task.Priority != models.PriorityHigh {
		t.Errorf("priority = %v", task.Priority)
	}
	if task.DueDate == nil || task.DueDate.Format("2006-01-02") != "2025-05-01" {
		t.Errorf("due date = %v", task.DueDate)
	}

	w := doRequest(t, h, http.MethodGet, "/api/tasks/"+itoa(task.ID), "")
	expectStatus(t, w, http.StatusOK)
	if got := decodeBody[models.Task](t, w); got.Title != "Write docs" {
		t.Errorf("fetched task = %+v", got)
	}
}

func TestUnknownIDsReturnNotFound(t *testing.T) {
	h := newTestServer(t, Options{}).Engine()

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{method: http.MethodGet, path: "/api/tasks/999"},
		{method: http.MethodPut, path: "/api/tasks/999", body: `{"status":"done"}`},
		{method: http.MethodDelete, path: "/api/tasks/999"},
		{method: http.MethodGet, path: "/api/boards/999"},
		{method: http.MethodPut, path: "/api/boards/999", body: `{"name":"x"}`},
		{method: http.MethodDelete, path: "/api/boards/999"},
	}

	for _, tt := range tests {
		w := doRequest(t, h, tt.method, tt.path, tt.body)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s %s: status=%d body=%s", tt.method, tt.path, w.Code, w.Body.String())
		}
	}
}

func TestInvalidIDsReturnBadRequest(t *testing.T) {
	h := newTestServer(t, Options{}).Engine()

	for _, path := range []string{"/api/tasks/abc", "/api/tasks/0", "/api/boards/-1", "/api/boards/1.5"} {
		expectError(t, doRequest(t, h, http.MethodGet, path, ""), http.StatusBadRequest, "must be a positive integer")
	}
	expectError(t, doRequest(t, h, http.MethodGet, "/api/tasks?boardId=abc", ""), http.StatusBadRequest, "invalid boardId")
}

func TestUpdateTask_Partial(t *testing.T) {
	h := newTestServer(t, Options{}).Engine()
	board := createBoard(t, h, `{"name":"Board"}`)
	created := createTask(t, h, `{"board_id":`+itoa(board.ID)+`,"title":"Ship","description":"cut the tag","priority":"low","assigned_to":"sam"}`)
	path := "/api/tasks/" + itoa(created.ID)

	w := doRequest(t, h, http.MethodPut, path, `{"status":"done"}`)
	expectStatus(t, w, http.StatusOK)
	updated := decodeBody[models.Task](t, w)

	if updated.Status != models.StatusDone {
		t.Errorf("status = %q", updated.Status)
	}
	if updated.Title != "Ship" || updated.Description == nil || *updated.Description != "cut the tag" ||
		updated.Priority == nil || *updated.Priority != models.PriorityLow || updated.AssignedTo == nil || *updated.AssignedTo != "sam" {
		t.Errorf("untouched fields changed: %+v", updated)
	}
	if updated.UpdatedAt.Before(updated.CreatedAt) {
		t.Errorf("updated_at %v precedes created_at %v", updated.UpdatedAt, updated.CreatedAt)
	}

	w = doRequest(t, h, http.MethodPut, path, `{"assigned_to":null}`)
	expectStatus(t, w, http.StatusOK)
	if cleared := decodeBody[models.Task](t, w); cleared.AssignedTo != nil || cleared.Status != models.StatusDone {
		t.Errorf("expected assignee cleared and status kept, got %+v", cleared)
	}

	expectError(t, doRequest(t, h, http.MethodPut, path, `{"title":null}`), http.StatusBadRequest, "title must not be empty")
	expectError(t, doRequest(t, h, http.MethodPut, path, `{"status":"blocked"}`), http.StatusBadRequest, "invalid status")
	expectError(t, doRequest(t, h, http.MethodPut, path, `{"board_id":999}`), http.StatusBadRequest, "board 999 does not exist")
}

func TestListTasks_FilterByBoard(t *testing.T) {
	h := newTestServer(t, Options{}).Engine()
	a := createBoard(t, h, `{"name":"A"}`)
	b := createBoard(t, h, `{"name":"B"}`)
	createTask(t, h, `{"board_id":`+itoa(a.ID)+`,"title":"a1"}`)
	createTask(t, h, `{"board_id":`+itoa(b.ID)+`,"title":"b1"}`)
	newest := createTask(t, h, `{"board_id":`+itoa(a.ID)+`,"title":"a2"}`)

	all := decodeBody[[]models.Task](t, doRequest(t, h, http.MethodGet, "/api/tasks", ""))
	if len(all) != 3 || all[0].ID != newest.ID {
		t.Errorf("expected newest task first, got %+v", all)
	}

	onlyA := decodeBody[[]models.Task](t, doRequest(t, h, http.MethodGet, "/api/tasks?boardId="+itoa(a.ID), ""))
	if len(onlyA) != 2 {
		t.Fatalf("expected 2 tasks for board A, got %+v", onlyA)
	}
	for _, task := range onlyA {
		if task.BoardID != a.ID {
			t.Errorf("task %d belongs to board %d", task.ID, task.BoardID)
		}
	}
}

func TestDeleteTask(t *testing.T) {
	h := newTestServer(t, Options{}).Engine()
	board := createBoard(t, h, `{"name":"Board"}`)
	task := createTask(t, h, `{"board_id":`+itoa(board.ID)+`,"title":"temp"}`)
	path := "/api/tasks/" + itoa(task.ID)

	w := doRequest(t, h, http.MethodDelete, path, "")
	expectStatus(t, w, http.StatusNoContent)
	if w.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", w.Body.String())
	}

	expectStatus(t, doRequest(t, h, http.MethodGet, path, ""), http.StatusNotFound)
	expectStatus(t, doRequest(t, h, http.MethodGet, "/api/boards/"+itoa(board.ID), ""), http.StatusOK)
}

func TestDeleteBoard_RemovesItsTasks(t *testing.T) {
	h := newTestServer(t, Options{}).Engine()
	board := createBoard(t, h, `{"name":"Doomed"}`)
	task := createTask(t, h, `{"board_id":`+itoa(board.ID)+`,"title":"goes too"}`)

	expectStatus(t, doRequest(t, h, http.MethodDelete, "/api/boards/"+itoa(board.ID), ""), http.StatusNoContent)

	expectStatus(t, doRequest(t, h, http.MethodGet, "/api/tasks/"+itoa(task.ID), ""), http.StatusNotFound)
	expectStatus(t, doRequest(t, h, http.MethodGet, "/api/boards/"+itoa(board.ID), ""), http.StatusNotFound)

	remaining := decodeBody[[]models.Task](t, doRequest(t, h, http.MethodGet, "/api/tasks?boardId="+itoa(board.ID), ""))
	if len(remaining) != 0 {
		t.Errorf("tasks of a deleted board must be gone, got %+v", remaining)
	}
}

func TestAnalytics(t *testing.T) {
	h := newTestServer(t, Options{}).Engine()

	w := doRequest(t, h, http.MethodGet, "/api/analytics", "")
	expectStatus(t, w, http.StatusOK)
	if stats := decodeBody[analytics.Statistics](t, w); stats != (analytics.Statistics{}) {
		t.Errorf("expected zeroed statistics, got %+v", stats)
	}

	board := createBoard(t, h, `{"name":"Stats"}`)
	other := createBoard(t, h, `{"name":"Other"}`)
	for _, status := range []string{"todo", "todo", "done", "in_progress"} {
		createTask(t, h, `{"board_id":`+itoa(board.ID)+`,"title":"t","status":"`+status+`"}`)
	}
	createTask(t, h, `{"board_id":`+itoa(other.ID)+`,"title":"elsewhere","status":"done"}`)

	w = doRequest(t, h, http.MethodGet, "/api/analytics?boardId="+itoa(board.ID), "")
	expectStatus(t, w, http.StatusOK)
	want := analytics.Statistics{TotalTasks: 4, TodoCount: 2, InProgressCount: 1, DoneCount: 1, CompletionPercentage: 25}
	if got := decodeBody[analytics.Statistics](t, w); got != want {
		t.Errorf("statistics = %+v, want %+v", got, want)
	}

	w = doRequest(t, h, http.MethodGet, "/api/analytics", "")
	if got := decodeBody[analytics.Statistics](t, w); got.TotalTasks != 5 || got.CompletionPercentage != 40 {
		t.Errorf("overall statistics = %+v", got)
	}
}

func TestExport(t *testing.T) {
	h := newTestServer(t, Options{}).Engine()
	board := createBoard(t, h, `{"name":"Sprint 1","description":"launch"}`)
	createTask(t, h, `{"board_id":`+itoa(board.ID)+`,"title":"Write docs","status":"done"}`)

	w := doRequest(t, h, http.MethodGet, "/api/export?format=csv", "")
	expectStatus(t, w, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "boards-export-") || !strings.HasSuffix(cd, `.csv"`) {
		t.Errorf("content disposition = %q", cd)
	}
	body := w.Body.String()
	if !strings.HasPrefix(body, "Board Name,Board Description,Task Count") || !strings.Contains(body, "Sprint 1,Write docs,,done") {
		t.Errorf("unexpected csv:\n%s", body)
	}

	w = doRequest(t, h, http.MethodGet, "/api/export", "")
	expectStatus(t, w, http.StatusOK)
	report := decodeBody[analytics.Report](t, w)
	if report.Statistics.TotalTasks != 1 || len(report.Boards) != 1 || report.Boards[0].TaskCount != 1 {
		t.Errorf("unexpected report %+v", report)
	}

	expectError(t, doRequest(t, h, http.MethodGet, "/api/export?format=xml", ""), http.StatusBadRequest, "invalid format")
}

func TestUnknownAPIRoute(t *testing.T) {
	h := newTestServer(t, Options{}).Engine()
	expectError(t, doRequest(t, h, http.MethodGet, "/api/widgets", ""), http.StatusNotFound, "endpoint not found")
}

func TestStaticUI(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>boards</html>"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	h := newTestServer(t, Options{StaticDir: dir}).Engine()

	for _, path := range []string{"/", "/boards/7"} {
		w := doRequest(t, h, http.MethodGet, path, "")
		expectStatus(t, w, http.StatusOK)
		if !strings.Contains(w.Body.String(), "boards") {
			t.Errorf("%s: expected index.html, got %q", path, w.Body.String())
		}
	}

	expectStatus(t, doRequest(t, h, http.MethodGet, "/api/nothing", ""), http.StatusNotFound)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
