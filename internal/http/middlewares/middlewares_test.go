package middlewares

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/carshare/internal/actorctx"
	"github.com/geocoder89/carshare/internal/auth"
	"github.com/geocoder89/carshare/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type fakeResolver struct {
	fn func(ctx context.Context, token string) (user.User, error)
}

func (f fakeResolver) Resolve(ctx context.Context, token string) (user.User, error) {
	return f.fn(ctx, token)
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode error body %q: %v", body, err)
	}
	return env.Error.Code
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	resolver := fakeResolver{fn: func(_ context.Context, token string) (user.User, error) {
		switch token {
		case "good":
			return user.User{ID: "u1", Name: "Ann", Email: "ann@x.io"}, nil
		case "expired":
			return user.User{}, auth.ErrExpired
		case "ghost":
			return user.User{}, user.ErrNotFound
		default:
			return user.User{}, auth.ErrInvalidToken
		}
	}}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"missing header", "", http.StatusUnauthorized, "unauthorized"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "unauthorized"},
		{"empty bearer", "Bearer   ", http.StatusUnauthorized, "unauthorized"},
		{"expired", "Bearer expired", http.StatusUnauthorized, "token_expired"},
		{"forged", "Bearer forged", http.StatusForbidden, "invalid_token"},
		{"deleted user", "Bearer ghost", http.StatusUnauthorized, "user_not_found"},
		{"valid", "Bearer good", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/me", NewAuthMiddleware(resolver).RequireAuth(), func(c *gin.Context) {
				id, _ := UserIDFromContext(c)
				ctxID, _ := actorctx.UserIDFrom(c.Request.Context())
				c.JSON(http.StatusOK, gin.H{"id": id, "ctxId": ctxID})
			})

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantCode != "" {
				if got := errorCode(t, w.Body.Bytes()); got != tt.wantCode {
					t.Fatalf("code = %q, want %q", got, tt.wantCode)
				}
				return
			}
			if !strings.Contains(w.Body.String(), `"ctxId":"u1"`) {
				t.Fatalf("expected identity on request context, got %s", w.Body.String())
			}
		})
	}
}

func TestMemoryLimiterWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	ctx := context.Background()
	if !l.Allow(ctx, "k").Allowed || !l.Allow(ctx, "k").Allowed {
		t.Fatal("first two hits must pass")
	}
	if l.Allow(ctx, "k").Allowed {
		t.Fatal("third hit must be rejected")
	}
	if !l.Allow(ctx, "other").Allowed {
		t.Fatal("keys must be independent")
	}

	now = now.Add(61 * time.Second)
	if !l.Allow(ctx, "k").Allowed {
		t.Fatal("new window must reset the count")
	}
}

func TestRateLimitMiddlewareRejects(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/login", RateLimit(NewMemoryLimiter(1, time.Minute), KeyByIP, nil), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	send := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		return w
	}

	if w := send(); w.Code != http.StatusNoContent {
		t.Fatalf("first request: %d", w.Code)
	}

	w := send()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	if got := errorCode(t, w.Body.Bytes()); got != "rate_limited" {
		t.Fatalf("code = %q", got)
	}
}

func TestKeyByUserOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var keys []string
	r := gin.New()
	r.GET("/anon", func(c *gin.Context) {
		keys = append(keys, KeyByUserOrIP(c))
	})
	r.GET("/user", func(c *gin.Context) {
		c.Set(CtxUserID, "u1")
		keys = append(keys, KeyByUserOrIP(c))
	})

	for _, path := range []string{"/anon", "/user"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	if len(keys) != 2 || keys[0] != "10.0.0.1" || keys[1] != "user:u1" {
		t.Fatalf("keys = %v", keys)
	}
}

func TestRequireJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequireJSON())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		method, ct string
		want       int
	}{
		{http.MethodPost, "application/json; charset=utf-8", http.StatusNoContent},
		{http.MethodPost, "text/plain", http.StatusUnsupportedMediaType},
		{http.MethodPost, "", http.StatusUnsupportedMediaType},
		{http.MethodGet, "", http.StatusNoContent},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "/x", strings.NewReader("{}"))
		if tt.ct != "" {
			req.Header.Set("Content-Type", tt.ct)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Fatalf("%s %q: got %d want %d", tt.method, tt.ct, w.Code, tt.want)
		}
	}
}

func TestRequestIDEchoed(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(CtxRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(requestIDHeader, "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get(requestIDHeader) != "abc" || w.Body.String() != "abc" {
		t.Fatalf("expected request id to be propagated, got header=%q body=%q", w.Header().Get(requestIDHeader), w.Body.String())
	}
}
