package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"resumeBuilder/internal/api/middleware"
	"resumeBuilder/internal/assistant"
	"resumeBuilder/internal/auth"
	"resumeBuilder/internal/config"
	"resumeBuilder/internal/database"
	"resumeBuilder/internal/snapshot"
	"resumeBuilder/internal/storage"
	"resumeBuilder/internal/workspace"
)

// fakeRedis 实现 sessionRedis，过期时间只记录不生效。
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttl  map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _ := strconv.ParseInt(f.data[key], 10, 64)
	n++
	f.data[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttl[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) GetDel(ctx context.Context, key string) *redis.StringCmd {
	cmd := f.Get(ctx, key)
	f.mu.Lock()
	delete(f.data, key)
	f.mu.Unlock()
	return cmd
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case string:
		f.data[key] = v
	default:
		f.data[key] = string(mustJSON(v))
	}
	f.ttl[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			n++
		}
		delete(f.data, k)
		delete(f.ttl, k)
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) TTL(_ context.Context, key string) *redis.DurationCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; !ok {
		return redis.NewDurationResult(-2*time.Second, nil)
	}
	return redis.NewDurationResult(f.ttl[key], nil)
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprintf("task-%d", len(q.tasks))}, nil
}

type fakeObjects struct {
	objects map[string]storage.ObjectMeta
}

func (f *fakeObjects) Stat(_ context.Context, key string) (storage.ObjectMeta, error) {
	if meta, ok := f.objects[key]; ok {
		return meta, nil
	}
	return storage.ObjectMeta{}, storage.ErrObjectNotFound
}

func (f *fakeObjects) DownloadURL(_ context.Context, key string, _ time.Duration, filename string) (string, error) {
	return "https://minio.test/" + key + "?filename=" + filename, nil
}

func (f *fakeObjects) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://minio.test/" + key, nil
}

func (f *fakeObjects) ListObjects(_ context.Context, prefix string, limit int) ([]storage.ObjectMeta, error) {
	out := make([]storage.ObjectMeta, 0)
	for key, meta := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, meta)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeNotifier 用内存 channel 代替 Redis Pub/Sub。
type fakeNotifier struct {
	mu         sync.Mutex
	channels   map[string]chan string
	subscribed chan string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{channels: map[string]chan string{}, subscribed: make(chan string, 4)}
}

func (n *fakeNotifier) Subscribe(_ context.Context, channel string) (<-chan string, func() error, error) {
	ch := make(chan string, 4)
	n.mu.Lock()
	n.channels[channel] = ch
	n.mu.Unlock()
	n.subscribed <- channel
	return ch, func() error { return nil }, nil
}

func (n *fakeNotifier) publish(channel, payload string) bool {
	n.mu.Lock()
	ch, ok := n.channels[channel]
	n.mu.Unlock()
	if ok {
		ch <- payload
	}
	return ok
}

type testServer struct {
	router   *gin.Engine
	registry *workspace.Registry
	redis    *fakeRedis
	queue    *fakeQueue
	objects  *fakeObjects
	notifier *fakeNotifier
	auth     *auth.AuthService
	profiles *database.ProfileStore
}

func newTestAuthService(t *testing.T) *auth.AuthService {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	svc, err := auth.NewAuthService(privPEM, pubPEM, 15*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}
	return svc
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sqlite: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	authService := newTestAuthService(t)
	profiles := database.NewProfileStore(db)

	registry := workspace.NewRegistry(workspace.Deps{
		Snapshots: snapshot.NewSlots(snapshot.NewMemoryBackend(), "resumeData", log),
		Profiles:  profiles,
		Tokens:    authService,
		Resumes:   database.NewResumeStore(db),
	}, log)
	t.Cleanup(registry.Close)

	s := &testServer{
		registry: registry,
		redis:    newFakeRedis(),
		queue:    &fakeQueue{},
		objects:  &fakeObjects{objects: map[string]storage.ObjectMeta{}},
		notifier: newFakeNotifier(),
		auth:     authService,
		profiles: profiles,
	}

	router := NewRouter(config.APIConfig{}, log)
	RegisterRoutes(router, Handlers{
		Editor:    NewEditorHandler(nil),
		Resumes:   NewResumeHandler(),
		Exports:   NewExportHandler(s.queue, s.objects, 5, 5*time.Minute),
		Assistant: NewAssistantHandler(assistant.New(nil, assistant.Options{}, log)),
		Session: NewSessionHandler(profiles, authService, s.redis, SessionOptions{
			LoginRatePerHour:   20,
			LoginLockThreshold: 3,
			LoginLockTTL:       time.Minute,
		}),
		Templates: NewTemplateHandler(s.objects, s.queue),
		Ws:        NewWsHandler(s.notifier, log, nil),
	}, registry, "ops-secret")
	s.router = router
	return s
}

type request struct {
	method  string
	path    string
	body    any
	device  string
	headers map[string]string
	cookies []*http.Cookie
}

func (s *testServer) do(t *testing.T, r request) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	switch b := r.body.(type) {
	case nil:
	case io.Reader:
		body = b
	default:
		body = bytes.NewReader(mustJSON(b))
	}
	req := httptest.NewRequest(r.method, r.path, body)
	if r.body != nil {
		if _, ok := r.body.(io.Reader); !ok {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if r.device != "" {
		req.Header.Set("X-Device-ID", r.device)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	for _, c := range r.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected status %d, got %d body=%s", want, w.Code, w.Body.String())
	}
}

func cookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func httptestRequest(method, path string, body io.Reader, contentType string) *http.Request {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

// serveWithWorkspace 在最小路由上执行单个处理器，用于替换某个依赖的场景。
func serveWithWorkspace(t *testing.T, s *testServer, deviceID string, req *http.Request, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	r.Use(middleware.DeviceIDMiddleware(""), middleware.WorkspaceMiddleware(s.registry))
	r.Handle(req.Method, req.URL.Path, handler)

	req.Header.Set("X-Device-ID", deviceID)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
