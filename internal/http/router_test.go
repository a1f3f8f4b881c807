package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mkraev/registrar-bot/internal/config"
	"github.com/mkraev/registrar-bot/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "router.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		RecentNotesLimit: 10,
		RateRPS:          100,
		RateBurst:        50,
		CORS:             config.CORSConfig{AllowedOrigins: nil},
		Security:         config.SecurityConfig{EnableHSTS: false},
		OTEL:             config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newTestRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, cfg)
	return r, db
}

func TestHealthMetricsFallbacks(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatal("expected X-Request-ID on response")
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q", got)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope = %d, want 404", w.Code)
	}
	var envelope struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal 404 body: %v", err)
	}
	if envelope.Code != "not_found" {
		t.Fatalf("404 code = %q", envelope.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health = %d, want 405", w.Code)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestListUsersEndpoint(t *testing.T) {
	r, db := newTestRouter(t, testConfig())

	ctx := context.Background()
	phone := "+79161234567"
	if _, err := repo.UpsertUser(ctx, db, 100, "Alice", &phone); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := repo.UpsertUser(ctx, db, 200, "Bob", nil); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/users = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Users []struct {
			ExternalID  int64   `json:"external_id"`
			DisplayName string  `json:"display_name"`
			Phone       *string `json:"phone"`
		} `json:"users"`
		Pagination struct {
			Total   int  `json:"total"`
			HasNext bool `json:"has_next"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Users) != 2 || resp.Pagination.Total != 2 {
		t.Fatalf("got %d users, total %d", len(resp.Users), resp.Pagination.Total)
	}
	if resp.Users[0].ExternalID != 100 || resp.Users[0].Phone == nil {
		t.Fatalf("first user = %+v", resp.Users[0])
	}
	if resp.Pagination.HasNext {
		t.Fatal("has_next should be false")
	}
}

func TestListNotesEndpointPaginated(t *testing.T) {
	r, db := newTestRouter(t, testConfig())

	ctx := context.Background()
	if _, err := repo.UpsertUser(ctx, db, 100, "Alice", nil); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		texts := []string{"first", "second", "third"}
		if _, err := repo.CreateNote(ctx, db, 100, texts[i], base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("seed note: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notes?page=1&page_size=2", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/notes = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Notes []struct {
			OwnerName string `json:"owner_name"`
			Text      string `json:"text"`
		} `json:"notes"`
		Pagination struct {
			Total      int  `json:"total"`
			TotalPages int  `json:"total_pages"`
			HasNext    bool `json:"has_next"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Notes) != 2 || resp.Pagination.Total != 3 || resp.Pagination.TotalPages != 2 {
		t.Fatalf("page shape wrong: %+v", resp.Pagination)
	}
	// Newest first.
	if resp.Notes[0].Text != "third" || resp.Notes[0].OwnerName != "Alice" {
		t.Fatalf("first note = %+v", resp.Notes[0])
	}
	if !resp.Pagination.HasNext {
		t.Fatal("expected has_next on page 1 of 2")
	}
}

func TestRateLimitRejects(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS = 0.001
	cfg.RateBurst = 1
	r, _ := newTestRouter(t, cfg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("first request = %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("Retry-After = %q", got)
	}
}

func TestCORSAllowAll(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
