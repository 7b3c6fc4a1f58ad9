package handle_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/api"
	"github.com/yeisme/sharevault/pkg/auth"
	"github.com/yeisme/sharevault/pkg/cache"
	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/router"
	"github.com/yeisme/sharevault/pkg/internal/service"
	"github.com/yeisme/sharevault/pkg/internal/storage"
	"github.com/yeisme/sharevault/pkg/internal/storage/kv"
	"github.com/yeisme/sharevault/pkg/internal/testutil"
	"github.com/yeisme/sharevault/pkg/internal/types"
	"github.com/yeisme/sharevault/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	engine *gin.Engine
	store  *testutil.Store
}

func newServer(t *testing.T) *server {
	t.Helper()

	cfg := configs.Defaults()
	cfg.Auth.JWTSecret = "handler-test-secret"
	cfg.Auth.BcryptCost = 4
	cfg.Blob.MaxUploadBytes = 1024
	cfg.Cache.Enabled = true
	configs.SetConfig(cfg)

	mem, err := kv.NewMemoryKV(context.Background(), nil)
	require.NoError(t, err)

	dbc := testutil.NewDB(t)
	store := testutil.NewStore(t)
	mgr := &storage.Manager{DB: dbc, Blob: store, KV: &kv.Client{KVStore: mem}}

	engine := gin.New()
	engine.Use(middleware.StorageMiddleware(mgr), middleware.SchedulerMiddleware(nil))

	api.RegisterGroup(engine, router.Options{
		Authn: service.NewAccountServiceWith(dbc, auth.NewIssuer(cfg.Auth), cfg.Auth.BcryptCost),
		Cache: middleware.CacheMiddleware(middleware.NewCacheConfig(cache.NewCache(mgr.KV), cache.NamespaceResources, cfg.Cache)),
	})

	return &server{engine: engine, store: store}
}

func (s *server) do(t *testing.T, req *http.Request, token string) *httptest.ResponseRecorder {
	t.Helper()

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	return w
}

func (s *server) json(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		b, err := sonic.Marshal(body)
		require.NoError(t, err)
		buf.Write(b)
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")

	return s.do(t, req, token)
}

type upload struct {
	title, description, tags string
	fileName                 string
	content                  string
}

func (s *server) upload(t *testing.T, token string, u upload) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", u.title))
	require.NoError(t, mw.WriteField("description", u.description))
	require.NoError(t, mw.WriteField("tags", u.tags))

	if u.fileName != "" {
		fw, err := mw.CreateFormFile("file", u.fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(u.content))
		require.NoError(t, err)
	}

	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/resources/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return s.do(t, req, token)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &v), w.Body.String())

	return v
}

func (s *server) register(t *testing.T, name string) string {
	t.Helper()

	w := s.json(t, http.MethodPost, "/api/auth/register", "", types.RegisterRequest{
		Username: name, Email: name + "@example.com", Password: "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decode[types.AuthResponse](t, w)
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.Token)

	return resp.Token
}

func TestAuthFlow(t *testing.T) {
	s := newServer(t)
	token := s.register(t, "alice")

	w := s.json(t, http.MethodPost, "/api/auth/register", "", types.RegisterRequest{
		Username: "alice2", Email: "ALICE@example.com", Password: "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User already exists", decode[types.ErrorResponse](t, w).Message)

	w = s.json(t, http.MethodPost, "/api/auth/register", "", types.RegisterRequest{
		Username: "al", Email: "x@example.com", Password: "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[types.ErrorResponse](t, w).Message, "username")

	w = s.json(t, http.MethodPost, "/api/auth/login", "", types.LoginRequest{Email: "alice@example.com", Password: "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", decode[types.ErrorResponse](t, w).Message)

	w = s.json(t, http.MethodPost, "/api/auth/login", "", types.LoginRequest{Email: "alice@example.com", Password: "secret123"})
	require.Equal(t, http.StatusOK, w.Code)

	login := decode[types.AuthResponse](t, w)
	assert.Equal(t, "alice", login.User.Username)

	w = s.json(t, http.MethodGet, "/api/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice@example.com", decode[types.ProfileResponse](t, w).User.Email)

	w = s.json(t, http.MethodGet, "/api/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Access token required", decode[types.ErrorResponse](t, w).Message)

	w = s.json(t, http.MethodGet, "/api/auth/profile", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid token", decode[types.ErrorResponse](t, w).Message)
}

func TestUploadResource(t *testing.T) {
	s := newServer(t)
	token := s.register(t, "alice")

	w := s.upload(t, "", upload{title: "Notes", fileName: "a.txt", content: "hi"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.upload(t, token, upload{
		title: "  Go notes ", description: "intro", tags: "Foo, bar ,, BAZ",
		fileName: "notes.txt", content: "hello",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decode[types.ResourceResponse](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "Go notes", resp.Resource.Title)
	assert.Equal(t, []string{"foo", "bar", "baz"}, resp.Resource.Tags)
	assert.True(t, strings.HasPrefix(resp.Resource.FileLocator, "/uploads/"), resp.Resource.FileLocator)
	assert.Equal(t, "notes.txt", resp.Resource.OriginalFileName)
	assert.Equal(t, "text/plain", resp.Resource.MimeType)
	require.NotNil(t, resp.Resource.Owner)
	assert.Equal(t, "alice", resp.Resource.Owner.Username)

	tests := []struct {
		name string
		in   upload
		msg  string
	}{
		{"missing file", upload{title: "Notes"}, "File is required"},
		{"blank title", upload{title: "   ", fileName: "a.txt", content: "x"}, "Title is required"},
		{"too large", upload{title: "Big", fileName: "big.bin", content: strings.Repeat("x", 2048)}, "File too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.upload(t, token, tt.in)
			require.Equal(t, http.StatusBadRequest, w.Code)

			body := decode[types.ErrorResponse](t, w)
			assert.False(t, body.Success)
			assert.Equal(t, tt.msg, body.Message)
		})
	}
}

func TestListSearchAndCache(t *testing.T) {
	s := newServer(t)
	alice := s.register(t, "alice")
	bob := s.register(t, "bob")

	require.Equal(t, http.StatusCreated, s.upload(t, alice, upload{title: "Go basics", tags: "go,intro", fileName: "a.txt", content: "a"}).Code)
	require.Equal(t, http.StatusCreated, s.upload(t, bob, upload{title: "Rust", description: "ownership in go style", tags: "rust", fileName: "b.txt", content: "b"}).Code)

	w := s.json(t, http.MethodGet, "/api/resources?search=go", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Len(t, decode[[]types.ResourceView](t, w), 2)

	w = s.json(t, http.MethodGet, "/api/resources?search=go", "", nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	w = s.json(t, http.MethodGet, "/api/resources?search=go,intro", "", nil)
	list := decode[[]types.ResourceView](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "Go basics", list[0].Title)

	w = s.json(t, http.MethodGet, "/api/resources/my-resources", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)

	mine := decode[[]types.ResourceView](t, w)
	require.Len(t, mine, 1)
	assert.Equal(t, "Rust", mine[0].Title)

	// 新建资源后缓存的列表不再返回
	require.Equal(t, http.StatusCreated, s.upload(t, alice, upload{title: "Go advanced", tags: "go", fileName: "c.txt", content: "c"}).Code)

	w = s.json(t, http.MethodGet, "/api/resources?search=go", "", nil)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	list = decode[[]types.ResourceView](t, w)
	require.Len(t, list, 3)
	assert.Equal(t, "Go advanced", list[0].Title)

	w = s.json(t, http.MethodGet, "/api/resources?search=nothing-matches", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestUpdateAndDelete(t *testing.T) {
	s := newServer(t)
	alice := s.register(t, "alice")
	bob := s.register(t, "bob")

	created := decode[types.ResourceResponse](t, s.upload(t, alice, upload{
		title: "Draft", description: "keep", tags: "a,b", fileName: "d.txt", content: "d",
	})).Resource
	path := "/api/resources/" + created.ID

	w := s.json(t, http.MethodPut, "/api/resources/missing", alice, map[string]any{"title": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Resource not found", decode[types.ErrorResponse](t, w).Message)

	// 所有权检查先于载荷校验
	req := httptest.NewRequest(http.MethodPut, path, strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w = s.do(t, req, bob)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Not authorized to modify this resource", decode[types.ErrorResponse](t, w).Message)

	w = s.json(t, http.MethodPut, path, alice, map[string]any{"title": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Title cannot be empty", decode[types.ErrorResponse](t, w).Message)

	// 空 body 与 {} 相同，原样返回
	w = s.json(t, http.MethodPut, path, alice, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	unchanged := decode[types.ResourceResponse](t, w).Resource
	assert.Equal(t, "Draft", unchanged.Title)
	assert.Equal(t, []string{"a", "b"}, unchanged.Tags)

	assert.Equal(t, http.StatusForbidden, s.json(t, http.MethodPut, path, bob, nil).Code)

	w = s.json(t, http.MethodPut, path, alice, map[string]any{"title": "Final", "tags": "X, Y"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	updated := decode[types.ResourceResponse](t, w).Resource
	assert.Equal(t, "Final", updated.Title)
	assert.Equal(t, "keep", updated.Description)
	assert.Equal(t, []string{"x", "y"}, updated.Tags)

	w = s.json(t, http.MethodPut, path, alice, map[string]any{"tags": ""})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[types.ResourceResponse](t, w).Resource.Tags)

	w = s.json(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[types.ResourceResponse](t, w).Resource
	assert.Equal(t, "Final", got.Title)
	assert.Empty(t, got.Tags)

	w = s.json(t, http.MethodDelete, path, bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	s.store.FailDelete(assert.AnError)

	w = s.json(t, http.MethodDelete, path, alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[types.SuccessResponse](t, w).Success)

	assert.Equal(t, http.StatusNotFound, s.json(t, http.MethodGet, path, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.json(t, http.MethodDelete, path, alice, nil).Code)
}

func TestHealth(t *testing.T) {
	s := newServer(t)

	w := s.json(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[types.HealthResponse](t, w)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]string{"db": "ok", "blob": "ok", "kv": "ok", "mq": "disabled"}, resp.Components)

	w = s.json(t, http.MethodGet, "/api/health/kv", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.json(t, http.MethodGet, "/api/health/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSchedulerDisabled(t *testing.T) {
	s := newServer(t)

	w := s.json(t, http.MethodGet, "/api/system/jobs", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Scheduler disabled", decode[types.ErrorResponse](t, w).Message)
}
