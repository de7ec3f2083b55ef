package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wcag-monitor/internal/api/response"
	"github.com/wcag-monitor/internal/auth"
	"github.com/wcag-monitor/internal/database/dbtest"
	"github.com/wcag-monitor/internal/metrics"
	"github.com/wcag-monitor/internal/model"
	"github.com/wcag-monitor/internal/report"
	"github.com/wcag-monitor/internal/score"
	"github.com/wcag-monitor/internal/store"
	"github.com/wcag-monitor/internal/worker"
	"github.com/wcag-monitor/pkg/config"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRunner struct {
	mu      sync.Mutex
	results *store.ResultStore
	issues  []model.Issue
	err     error
	calls   []uint
}

func (f *fakeRunner) Run(ctx context.Context, taskID uint) (*model.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, taskID)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	result := &model.Result{TaskID: taskID, Count: model.CountIssues(f.issues), Issues: f.issues}
	if err := f.results.Create(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (q *fakeQueue) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprintf("job-%d", len(q.tasks)), Type: task.Type()}, nil
}

type testServer struct {
	router  *gin.Engine
	tasks   *store.TaskStore
	results *store.ResultStore
	runner  *fakeRunner
	queue   *fakeQueue
}

type serverOption func(*config.Config, *Dependencies)

func withoutQueue() serverOption {
	return func(_ *config.Config, d *Dependencies) { d.Queue = nil }
}

func withRunLimit(perMinute, burst int) serverOption {
	return func(c *config.Config, _ *Dependencies) {
		c.RateLimit.ManualRunsPerMinute = perMinute
		c.RateLimit.Burst = burst
	}
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	db := dbtest.New(t)
	log := zap.NewNop()

	cfg := &config.Config{
		App:    config.AppConfig{Env: "test"},
		Server: config.ServerConfig{CORSOrigins: []string{"*"}},
		Auth: config.AuthConfig{
			JWTSecret:        "access-secret",
			JWTRefreshSecret: "refresh-secret",
			AccessTTL:        15 * time.Minute,
			RefreshTTL:       time.Hour,
			BcryptCost:       bcrypt.MinCost,
		},
		Quota:     config.QuotaConfig{FreeURLLimit: 2, PagesPerURL: 50},
		RateLimit: config.RateLimitConfig{ManualRunsPerMinute: 600, Burst: 100},
	}

	s := &testServer{
		tasks:   store.NewTaskStore(db, log),
		results: store.NewResultStore(db, log),
		queue:   &fakeQueue{},
	}
	s.runner = &fakeRunner{results: s.results}

	reg := prometheus.NewRegistry()
	deps := Dependencies{
		Config:   cfg,
		Log:      log,
		DB:       db,
		Users:    store.NewUserStore(db, log),
		Tasks:    s.tasks,
		Results:  s.results,
		Runner:   s.runner,
		Queue:    s.queue,
		Tokens:   auth.NewJWTManager(&cfg.Auth),
		Hasher:   auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		PDF:      report.NewPDFRenderer(""),
		Metrics:  metrics.NewMetrics(reg),
		Gatherer: reg,
	}
	for _, opt := range opts {
		opt(cfg, &deps)
	}
	s.router = SetupRouter(deps)
	return s
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data), string(env.Data))
	}
	return env
}

type authData struct {
	User struct {
		ID    uint   `json:"id"`
		Email string `json:"email"`
		Plan  string `json:"plan"`
	} `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (s *testServer) signup(t *testing.T, email string) authData {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", gin.H{"email": email, "password": "password123", "name": "Tester"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var data authData
	decode(t, w, &data)
	return data
}

type taskData struct {
	ID          uint              `json:"id"`
	Name        string            `json:"name"`
	URL         string            `json:"url"`
	Standard    string            `json:"standard"`
	Timeout     int               `json:"timeout"`
	HasPassword bool              `json:"hasPassword"`
	Headers     map[string]string `json:"headers"`
	Actions     []string          `json:"actions"`
	Ignore      []string          `json:"ignore"`
	PageLimit   int               `json:"pageLimit"`
	LastRun     *time.Time        `json:"lastRun"`
	Annotations []struct {
		Type    string `json:"type"`
		Comment string `json:"comment"`
	} `json:"annotations"`
	LastResult *resultData `json:"lastResult"`
}

type resultData struct {
	ID      uint              `json:"id"`
	Task    uint              `json:"task"`
	Date    time.Time         `json:"date"`
	Count   model.ResultCount `json:"count"`
	Score   int               `json:"score"`
	Results []model.Issue     `json:"results"`
}

func (s *testServer) createTask(t *testing.T, token, name string) taskData {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/tasks", token, gin.H{
		"name":     name,
		"url":      "https://example.com/" + name,
		"standard": model.StandardWCAG2AA,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var task taskData
	decode(t, w, &task)
	return task
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	signed := s.signup(t, "Alice@Example.com")
	assert.Equal(t, "alice@example.com", signed.User.Email)
	assert.Equal(t, model.PlanFree, signed.User.Plan)
	assert.NotEmpty(t, signed.AccessToken)
	assert.NotEmpty(t, signed.RefreshToken)

	w := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", gin.H{"email": "alice@example.com", "password": "password123"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/signup", "", gin.H{"email": "bob@example.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "alice@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "nobody@example.com", "password": "password123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "alice@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	var logged authData
	decode(t, w, &logged)
	assert.Equal(t, signed.User.ID, logged.User.ID)

	w = s.do(t, http.MethodGet, "/api/v1/auth/me", logged.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, strings.ToLower(w.Body.String()), "password")

	w = s.do(t, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/auth/me", logged.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "refresh token must not authenticate requests")

	w = s.do(t, http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refreshToken": logged.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)
	var refreshed authData
	decode(t, w, &refreshed)
	assert.NotEmpty(t, refreshed.AccessToken)

	w = s.do(t, http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refreshToken": logged.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProfileAndPassword(t *testing.T) {
	s := newTestServer(t)
	user := s.signup(t, "carol@example.com")

	w := s.do(t, http.MethodPatch, "/api/v1/auth/profile", user.AccessToken, gin.H{
		"name":          "Carol",
		"notifications": gin.H{"frequency": "daily", "email": false},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var profile struct {
		User struct {
			Name          string `json:"name"`
			Notifications struct {
				Email        bool   `json:"email"`
				Frequency    string `json:"frequency"`
				AlertOnError bool   `json:"alertOnError"`
			} `json:"notifications"`
		} `json:"user"`
	}
	decode(t, w, &profile)
	assert.Equal(t, "Carol", profile.User.Name)
	assert.False(t, profile.User.Notifications.Email)
	assert.Equal(t, "daily", profile.User.Notifications.Frequency)
	assert.True(t, profile.User.Notifications.AlertOnError)

	w = s.do(t, http.MethodPatch, "/api/v1/auth/profile", user.AccessToken, gin.H{"notifications": gin.H{"frequency": "hourly"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPatch, "/api/v1/auth/password", user.AccessToken, gin.H{"currentPassword": "nope-nope", "newPassword": "new-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPatch, "/api/v1/auth/password", user.AccessToken, gin.H{"currentPassword": "password123", "newPassword": "new-password"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "carol@example.com", "password": "password123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "carol@example.com", "password": "new-password"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTaskLifecycle(t *testing.T) {
	s := newTestServer(t)
	user := s.signup(t, "dave@example.com")

	w := s.do(t, http.MethodPost, "/api/v1/tasks", user.AccessToken, gin.H{
		"name":     "Home",
		"url":      "https://example.com",
		"standard": model.StandardWCAG2A,
		"username": "admin",
		"password": "secret",
		"headers":  `{"X-Test":"1"}`,
		"actions":  []string{"click element #login", "wait for url to be https://example.com/home"},
		"ignore":   []string{"notice"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "secret")

	var created taskData
	decode(t, w, &created)
	assert.Equal(t, fmt.Sprintf("/api/v1/tasks/%d", created.ID), w.Header().Get("Location"))
	assert.True(t, created.HasPassword)
	assert.Equal(t, map[string]string{"X-Test": "1"}, created.Headers)
	assert.Len(t, created.Actions, 2)
	assert.Equal(t, []string{"notice"}, created.Ignore)
	assert.Equal(t, model.DefaultTimeoutMS, created.Timeout)
	assert.Equal(t, 50, created.PageLimit)
	assert.Nil(t, created.LastRun)

	path := fmt.Sprintf("/api/v1/tasks/%d", created.ID)
	w = s.do(t, http.MethodGet, path, user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPatch, path, user.AccessToken, gin.H{
		"name":    "Homepage",
		"url":     "https://changed.example.com",
		"headers": nil,
		"comment": "renamed",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated taskData
	decode(t, w, &updated)
	assert.Equal(t, "Homepage", updated.Name)
	assert.Equal(t, "https://example.com", updated.URL, "url is fixed at creation")
	assert.Empty(t, updated.Headers)
	require.Len(t, updated.Annotations, 1)
	assert.Equal(t, "edit", updated.Annotations[0].Type)
	assert.Equal(t, "renamed", updated.Annotations[0].Comment)

	w = s.do(t, http.MethodGet, "/api/v1/tasks", user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []taskData
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Homepage", list[0].Name)

	w = s.do(t, http.MethodDelete, path, user.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodGet, path, user.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodDelete, path, user.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateTask_Validation(t *testing.T) {
	s := newTestServer(t)
	user := s.signup(t, "erin@example.com")

	tests := []struct {
		name    string
		body    gin.H
		wantMsg string
	}{
		{
			name: "unknown standard",
			body: gin.H{"name": "x", "url": "https://example.com", "standard": "WCAG3"},
		},
		{
			name: "missing url",
			body: gin.H{"name": "x", "standard": model.StandardWCAG2AA},
		},
		{
			name:    "invalid actions listed together",
			body:    gin.H{"name": "x", "url": "https://example.com", "standard": model.StandardWCAG2AA, "actions": []string{"dance", "click element a", "jump"}},
			wantMsg: `"dance", "jump"`,
		},
		{
			name: "file url",
			body: gin.H{"name": "x", "url": "file:///etc/passwd", "standard": model.StandardWCAG2AA},
		},
		{
			name: "javascript url",
			body: gin.H{"name": "x", "url": "javascript:alert(1)", "standard": model.StandardWCAG2AA},
		},
		{
			name: "headers not an object",
			body: gin.H{"name": "x", "url": "https://example.com", "standard": model.StandardWCAG2AA, "headers": "[1,2]"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/v1/tasks", user.AccessToken, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			env := decode(t, w, nil)
			assert.Equal(t, response.ErrorCode, env.Code)
			if tt.wantMsg != "" {
				assert.Contains(t, env.Msg, tt.wantMsg)
			}
		})
	}

	w := s.do(t, http.MethodPost, "/api/v1/tasks", user.AccessToken, `{"name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateTask_QuotaExceeded(t *testing.T) {
	s := newTestServer(t)
	user := s.signup(t, "frank@example.com")
	s.createTask(t, user.AccessToken, "one")
	s.createTask(t, user.AccessToken, "two")

	w := s.do(t, http.MethodPost, "/api/v1/tasks", user.AccessToken, gin.H{
		"name": "three", "url": "https://example.com/3", "standard": model.StandardWCAG2AA,
	})
	require.Equal(t, http.StatusForbidden, w.Code)
	var quota struct {
		CurrentCount int64 `json:"currentCount"`
		Limit        int   `json:"limit"`
	}
	env := decode(t, w, &quota)
	assert.Equal(t, response.QuotaExceededCode, env.Code)
	assert.EqualValues(t, 2, quota.CurrentCount)
	assert.Equal(t, 2, quota.Limit)
}

func TestTasksAreIsolatedPerUser(t *testing.T) {
	s := newTestServer(t)
	owner := s.signup(t, "owner@example.com")
	other := s.signup(t, "other@example.com")
	task := s.createTask(t, owner.AccessToken, "private")

	path := fmt.Sprintf("/api/v1/tasks/%d", task.ID)
	for _, req := range []struct{ method, path string }{
		{http.MethodGet, path},
		{http.MethodPatch, path},
		{http.MethodDelete, path},
		{http.MethodPost, path + "/run"},
		{http.MethodGet, path + "/results"},
		{http.MethodGet, path + "/trend"},
		{http.MethodGet, path + "/report?format=markdown"},
	} {
		w := s.do(t, req.method, req.path, other.AccessToken, gin.H{"name": "stolen"})
		assert.Equal(t, http.StatusNotFound, w.Code, "%s %s", req.method, req.path)
	}

	w := s.do(t, http.MethodGet, "/api/v1/tasks", other.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []taskData
	decode(t, w, &list)
	assert.Empty(t, list)
	assert.Empty(t, s.runner.calls)

	w = s.do(t, http.MethodGet, "/api/v1/tasks/not-a-number", owner.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunTask(t *testing.T) {
	s := newTestServer(t)
	user := s.signup(t, "gina@example.com")
	task := s.createTask(t, user.AccessToken, "site")
	s.runner.issues = []model.Issue{
		{Type: model.IssueError, Code: "a"},
		{Type: model.IssueWarning, Code: "b"},
		{Type: model.IssueNotice, Code: "c"},
	}
	path := fmt.Sprintf("/api/v1/tasks/%d/run", task.ID)

	w := s.do(t, http.MethodPost, path, user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result resultData
	decode(t, w, &result)
	assert.Equal(t, task.ID, result.Task)
	assert.Equal(t, model.ResultCount{Total: 3, Error: 1, Warning: 1, Notice: 1}, result.Count)
	assert.Equal(t, score.Calculate(&result.Count), result.Score)
	assert.Equal(t, []uint{task.ID}, s.runner.calls)

	s.runner.err = errors.New("browser crashed")
	w = s.do(t, http.MethodPost, path, user.AccessToken, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env := decode(t, w, nil)
	assert.Contains(t, env.Msg, fmt.Sprintf("task %d", task.ID))
}

func TestRunTask_Async(t *testing.T) {
	s := newTestServer(t)
	user := s.signup(t, "hank@example.com")
	task := s.createTask(t, user.AccessToken, "site")

	w := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%d/run?async=true", task.ID), user.AccessToken, nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.Len(t, s.queue.tasks, 1)
	assert.Equal(t, worker.TypeScanRun, s.queue.tasks[0].Type())

	var payload worker.ScanRunPayload
	require.NoError(t, json.Unmarshal(s.queue.tasks[0].Payload(), &payload))
	assert.Equal(t, task.ID, payload.TaskID)
	assert.Equal(t, user.User.ID, payload.UserID)
	assert.Empty(t, s.runner.calls, "queued runs do not scan inline")

	s = newTestServer(t, withoutQueue())
	user = s.signup(t, "hank@example.com")
	task = s.createTask(t, user.AccessToken, "site")
	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%d/run?async=true", task.ID), user.AccessToken, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRunTask_RateLimited(t *testing.T) {
	s := newTestServer(t, withRunLimit(1, 1))
	user := s.signup(t, "ivy@example.com")
	task := s.createTask(t, user.AccessToken, "site")
	path := fmt.Sprintf("/api/v1/tasks/%d/run", task.ID)

	w := s.do(t, http.MethodPost, path, user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodPost, path, user.AccessToken, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// buckets are per user
	second := s.signup(t, "jack@example.com")
	other := s.createTask(t, second.AccessToken, "site")
	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%d/run", other.ID), second.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func seedResult(t *testing.T, s *testServer, taskID uint, at time.Time, count model.ResultCount) {
	t.Helper()
	issues := make([]model.Issue, 0, count.Total)
	for i := 0; i < count.Error; i++ {
		issues = append(issues, model.Issue{Type: model.IssueError, Code: fmt.Sprintf("e%d", i)})
	}
	require.NoError(t, s.results.Create(context.Background(), &model.Result{
		TaskID: taskID,
		Date:   at.UTC(),
		Count:  count,
		Issues: issues,
	}))
}

func TestResults(t *testing.T) {
	s := newTestServer(t)
	user := s.signup(t, "kate@example.com")
	first := s.createTask(t, user.AccessToken, "first")
	second := s.createTask(t, user.AccessToken, "second")

	now := time.Now().UTC()
	seedResult(t, s, first.ID, now.Add(-72*time.Hour), model.ResultCount{Total: 2, Error: 2})
	seedResult(t, s, first.ID, now.Add(-2*time.Hour), model.ResultCount{Total: 1, Error: 1})
	seedResult(t, s, second.ID, now.Add(-time.Hour), model.ResultCount{Total: 0})
	seedResult(t, s, first.ID, now.Add(-40*24*time.Hour), model.ResultCount{Total: 5, Error: 5})

	base := fmt.Sprintf("/api/v1/tasks/%d/results", first.ID)
	w := s.do(t, http.MethodGet, base, user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var results []resultData
	decode(t, w, &results)
	require.Len(t, results, 2, "default window is 30 days")
	assert.Equal(t, 1, results[0].Count.Error, "newest first")
	assert.Empty(t, results[0].Results, "issues only with full=true")

	w = s.do(t, http.MethodGet, base+"?full=true&limit=1", user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	results = nil
	decode(t, w, &results)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Results, 1)

	from := now.Add(-50 * 24 * time.Hour).Format(time.RFC3339)
	w = s.do(t, http.MethodGet, base+"?from="+from, user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	results = nil
	decode(t, w, &results)
	assert.Len(t, results, 3)

	w = s.do(t, http.MethodGet, base+"?from=yesterday", user.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	resultPath := fmt.Sprintf("%s/%d?full=true", base, results[0].ID)
	w = s.do(t, http.MethodGet, resultPath, user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var single resultData
	decode(t, w, &single)
	assert.Equal(t, results[0].ID, single.ID)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/tasks/%d/results/%d", second.ID, results[0].ID), user.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "result must belong to the task in the path")

	w = s.do(t, http.MethodGet, "/api/v1/tasks/results", user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	results = nil
	decode(t, w, &results)
	require.Len(t, results, 3)
	assert.Equal(t, second.ID, results[0].Task)

	w = s.do(t, http.MethodGet, "/api/v1/tasks?lastres=true", user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tasks []taskData
	decode(t, w, &tasks)
	require.Len(t, tasks, 2)
	require.NotNil(t, tasks[0].LastResult)
	assert.Equal(t, 1, tasks[0].LastResult.Count.Error)
	require.NotNil(t, tasks[1].LastResult)
	assert.Equal(t, 0, tasks[1].LastResult.Count.Total)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/tasks/%d/trend", first.ID), user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var trend []store.WeekTrend
	decode(t, w, &trend)
	assert.NotEmpty(t, trend)
	for i := 1; i < len(trend); i++ {
		assert.Less(t, trend[i-1].Week, trend[i].Week)
	}
}

func TestGetTask_LastResult(t *testing.T) {
	s := newTestServer(t)
	user := s.signup(t, "kim@example.com")
	task := s.createTask(t, user.AccessToken, "site")
	path := fmt.Sprintf("/api/v1/tasks/%d", task.ID)

	w := s.do(t, http.MethodGet, path+"?lastres=true", user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got taskData
	decode(t, w, &got)
	assert.Nil(t, got.LastResult, "no scans yet")

	now := time.Now().UTC()
	seedResult(t, s, task.ID, now.Add(-48*time.Hour), model.ResultCount{Total: 3, Error: 3})
	seedResult(t, s, task.ID, now.Add(-time.Hour), model.ResultCount{Total: 2, Error: 2})

	w = s.do(t, http.MethodGet, path+"?lastres=true", user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got = taskData{}
	decode(t, w, &got)
	require.NotNil(t, got.LastResult)
	assert.Equal(t, 2, got.LastResult.Count.Error)
	assert.Len(t, got.LastResult.Results, 2, "the single task view carries the full issue list")

	w = s.do(t, http.MethodGet, path, user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got = taskData{}
	decode(t, w, &got)
	assert.Nil(t, got.LastResult)
}

func TestStats(t *testing.T) {
	s := newTestServer(t)
	user := s.signup(t, "liam@example.com")

	w := s.do(t, http.MethodGet, "/api/v1/tasks/stats", user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var empty struct {
		URLCount      int    `json:"urlCount"`
		URLLimit      int    `json:"urlLimit"`
		URLsRemaining int    `json:"urlsRemaining"`
		AverageScore  int    `json:"averageScore"`
		TotalErrors   int    `json:"totalErrors"`
		Plan          string `json:"plan"`
	}
	decode(t, w, &empty)
	assert.Equal(t, 0, empty.URLCount)
	assert.Equal(t, 2, empty.URLLimit)
	assert.Equal(t, 2, empty.URLsRemaining)
	assert.Equal(t, model.PlanFree, empty.Plan)

	task := s.createTask(t, user.AccessToken, "site")
	now := time.Now().UTC()
	seedResult(t, s, task.ID, now.Add(-48*time.Hour), model.ResultCount{Total: 9, Error: 9})
	seedResult(t, s, task.ID, now.Add(-time.Hour), model.ResultCount{Total: 1, Error: 1})

	w = s.do(t, http.MethodGet, "/api/v1/tasks/stats", user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := empty
	decode(t, w, &stats)
	assert.Equal(t, 1, stats.URLCount)
	assert.Equal(t, 1, stats.URLsRemaining)
	assert.Equal(t, 1, stats.TotalErrors, "only the latest result counts")
	assert.Equal(t, score.Calculate(&model.ResultCount{Total: 1, Error: 1}), stats.AverageScore)
}

func TestReport(t *testing.T) {
	s := newTestServer(t)
	user := s.signup(t, "mia@example.com")
	task := s.createTask(t, user.AccessToken, "my-site")
	path := fmt.Sprintf("/api/v1/tasks/%d/report", task.ID)

	w := s.do(t, http.MethodGet, path+"?format=markdown", user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "has not been scanned yet")

	seedResult(t, s, task.ID, time.Now().Add(-time.Hour), model.ResultCount{Total: 1, Error: 1})
	w = s.do(t, http.MethodGet, path+"?format=markdown", user.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "my-site-report.md")
	assert.Contains(t, w.Body.String(), "# Accessibility Report: my-site")

	w = s.do(t, http.MethodGet, path, user.AccessToken, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "pdf needs a configured font")

	w = s.do(t, http.MethodGet, path+"?format=docx", user.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInfoHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/", "/api"} {
		w := s.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "/api/v1/tasks")
	}

	w := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `wcag_http_requests_total{method="GET",route="/health",status="200"} 1`)
}
