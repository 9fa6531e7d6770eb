package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kapu/formsmith-server-go/internal/config"
)

func adminConfig() *config.Config {
	return &config.Config{Admin: config.AdminConfig{
		Password:        "hunter2",
		JWTSecret:       "test-secret",
		TokenTTLMinutes: 30,
	}}
}

func TestIssueAdminToken(t *testing.T) {
	cfg := adminConfig()
	now := time.Now()

	token, expiresAt, err := IssueAdminToken(cfg, now)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if token == "" {
		t.Fatalf("expected signed token")
	}
	if got := expiresAt.Sub(now); got != 30*time.Minute {
		t.Fatalf("unexpected ttl: %v", got)
	}
}

func TestIssueAdminTokenRequiresSecret(t *testing.T) {
	cfg := &config.Config{Admin: config.AdminConfig{Password: "hunter2"}}
	if _, _, err := IssueAdminToken(cfg, time.Now()); err == nil {
		t.Fatalf("expected error without jwt secret")
	}
}

func newAdminRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/admin/forms", AdminAuth(cfg), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestAdminAuthAcceptsValidToken(t *testing.T) {
	cfg := adminConfig()
	router := newAdminRouter(cfg)

	token, _, err := IssueAdminToken(cfg, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/forms", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d", resp.Code)
	}
}

func TestAdminAuthRejectsMissingToken(t *testing.T) {
	router := newAdminRouter(adminConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/admin/forms", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", resp.Code)
	}
}

func TestAdminAuthRejectsExpiredToken(t *testing.T) {
	cfg := adminConfig()
	router := newAdminRouter(cfg)

	token, _, err := IssueAdminToken(cfg, time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/forms", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized for expired token, got %d", resp.Code)
	}
}

func TestAdminAuthRejectsWrongSecret(t *testing.T) {
	cfg := adminConfig()
	router := newAdminRouter(cfg)

	other := adminConfig()
	other.Admin.JWTSecret = "other-secret"
	token, _, err := IssueAdminToken(other, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/forms", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized for wrong secret, got %d", resp.Code)
	}
}
