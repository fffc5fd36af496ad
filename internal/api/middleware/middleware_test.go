package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ritmofit/backend/config"
	"ritmofit/backend/internal/api/handler"
	"ritmofit/backend/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeChecker struct {
	revoked map[string]bool
	err     error
}

func (f *fakeChecker) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	return f.revoked[jti], f.err
}

type fakeLimiter struct {
	calls int
	limit int
	err   error
}

func (f *fakeLimiter) CheckRateLimit(_ context.Context, _ string, limit int, _ time.Duration) (bool, error) {
	f.calls++
	f.limit = limit
	return f.calls <= limit, f.err
}

func newJWT() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{
		JWTSecret:       "middleware-test-secret-0123456789",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	})
}

func protectedEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append(mw, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(handler.ContextUserID))
	})
	r.GET("/p", handlers...)
	return r
}

func doGet(r *gin.Engine, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/p", nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	m := newJWT()
	access, _ := m.GenerateAccessToken("user-1", "ana@ritmofit.com", "user")
	refresh, _ := m.GenerateRefreshToken("user-1", "ana@ritmofit.com", "user")

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"有效 Token", "Bearer " + access, 200},
		{"缺少认证头", "", 401},
		{"格式错误", "Token " + access, 401},
		{"无效 Token", "Bearer garbage", 401},
		{"Refresh Token 不可访问", "Bearer " + refresh, 401},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doGet(protectedEngine(JWTAuth(m, nil, zap.NewNop())), tt.header)
			if w.Code != tt.wantStatus {
				t.Errorf("期望 %d, 实际 %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestJWTAuth_InjectsUser(t *testing.T) {
	m := newJWT()
	access, _ := m.GenerateAccessToken("user-1", "ana@ritmofit.com", "user")

	w := doGet(protectedEngine(JWTAuth(m, nil, zap.NewNop())), "Bearer "+access)
	if w.Body.String() != "user-1" {
		t.Errorf("期望上下文 user_id=user-1, 实际 %q", w.Body.String())
	}
}

func TestJWTAuth_Blacklist(t *testing.T) {
	m := newJWT()
	access, _ := m.GenerateAccessToken("user-1", "ana@ritmofit.com", "user")
	claims, _ := m.ParseToken(access)

	checker := &fakeChecker{revoked: map[string]bool{claims.ID: true}}
	w := doGet(protectedEngine(JWTAuth(m, checker, zap.NewNop())), "Bearer "+access)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("已注销 Token 期望 401, 实际 %d", w.Code)
	}

	// Redis 故障时降级放行
	checker = &fakeChecker{err: errors.New("redis down")}
	w = doGet(protectedEngine(JWTAuth(m, checker, zap.NewNop())), "Bearer "+access)
	if w.Code != http.StatusOK {
		t.Errorf("黑名单不可用时期望 200, 实际 %d", w.Code)
	}
}

func TestRoleAuth(t *testing.T) {
	m := newJWT()
	userToken, _ := m.GenerateAccessToken("user-1", "ana@ritmofit.com", "user")
	adminToken, _ := m.GenerateAccessToken("admin-1", "admin@ritmofit.com", "admin")

	r := protectedEngine(JWTAuth(m, nil, zap.NewNop()), RoleAuth("admin"))
	if w := doGet(r, "Bearer "+userToken); w.Code != http.StatusForbidden {
		t.Errorf("普通会员期望 403, 实际 %d", w.Code)
	}
	if w := doGet(r, "Bearer "+adminToken); w.Code != http.StatusOK {
		t.Errorf("管理员期望 200, 实际 %d", w.Code)
	}

	if w := doGet(protectedEngine(RoleAuth("admin")), ""); w.Code != http.StatusUnauthorized {
		t.Errorf("未认证期望 401, 实际 %d", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	limiter := &fakeLimiter{}
	r := protectedEngine(RateLimit(limiter, 2, time.Minute))

	for i := 0; i < 2; i++ {
		if w := doGet(r, ""); w.Code != http.StatusOK {
			t.Fatalf("第 %d 次请求期望 200, 实际 %d", i+1, w.Code)
		}
	}
	if w := doGet(r, ""); w.Code != http.StatusTooManyRequests {
		t.Errorf("超限期望 429, 实际 %d", w.Code)
	}
	if limiter.limit != 2 {
		t.Errorf("期望限额 2, 实际 %d", limiter.limit)
	}
}

func TestRateLimit_Passthrough(t *testing.T) {
	if w := doGet(protectedEngine(RateLimit(nil, 1, time.Minute)), ""); w.Code != http.StatusOK {
		t.Errorf("未配置限流器期望 200, 实际 %d", w.Code)
	}

	limiter := &fakeLimiter{err: errors.New("redis down")}
	r := protectedEngine(RateLimit(limiter, 0, time.Minute))
	doGet(r, "")
	if limiter.calls != 0 {
		t.Error("limit<=0 时不应调用限流器")
	}
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(16))
	r.POST("/p", func(c *gin.Context) {
		if _, err := c.GetRawData(); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/p", strings.NewReader("pequeño")))
	if w.Code != http.StatusOK {
		t.Errorf("期望 200, 实际 %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/p", strings.NewReader(strings.Repeat("x", 64))))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("超限期望 413, 实际 %d", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/p", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/p", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	r.ServeHTTP(w, req)
	if w.Body.String() != "abc-123" || w.Header().Get("X-Request-ID") != "abc-123" {
		t.Errorf("应沿用外部 Request-ID, 实际 %q", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/p", nil))
	if len(w.Body.String()) != 36 {
		t.Errorf("应生成 UUID, 实际 %q", w.Body.String())
	}
}
