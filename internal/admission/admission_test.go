package admission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendzz/internal/config"
	"vendzz/internal/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestClassifier(t *testing.T) {
	c := Classifier{ComplexElements: 3}
	complexBody := `{"pages":[{"elements":[1,2]},{"elements":[3]}]}`

	tests := []struct {
		name    string
		method  string
		path    string
		headers map[string]string
		body    string
		want    Class
	}{
		{name: "static prefix", method: http.MethodGet, path: "/static/app.txt", want: ClassAsset},
		{name: "asset extension", method: http.MethodGet, path: "/quiz/logo.PNG", want: ClassAsset},
		{name: "automatic header", method: http.MethodGet, path: "/api/v1/stats", headers: map[string]string{AutomaticRequestHeader: "true"}, want: ClassAutomatic},
		{name: "bot user agent", method: http.MethodGet, path: "/q/1", headers: map[string]string{"User-Agent": "Googlebot/2.1"}, want: ClassAutomatic},
		{name: "complex quiz write", method: http.MethodPut, path: "/api/quizzes/1", body: complexBody, want: ClassQuizComplex},
		{name: "flat elements", method: http.MethodPost, path: "/api/quizzes", body: `{"elements":[1,2,3]}`, want: ClassQuizComplex},
		{name: "small quiz write", method: http.MethodPut, path: "/api/quizzes/1", body: `{"elements":[1]}`, want: ClassDefault},
		{name: "complex body elsewhere", method: http.MethodPost, path: "/api/v1/completions", body: complexBody, want: ClassDefault},
		{name: "bearer token", method: http.MethodGet, path: "/api/me", headers: map[string]string{"Authorization": "Bearer abc"}, want: ClassAuthenticated},
		{name: "anonymous", method: http.MethodGet, path: "/api/me", want: ClassDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, c.Classify(req, []byte(tt.body)))
		})
	}
}

func TestPolicy_Quota(t *testing.T) {
	p := NewPolicy(config.AdmissionConfig{
		BaseQuota:   10,
		Window:      time.Minute,
		Multipliers: map[string]float64{"authenticated": 5},
	}, NewLocalLimiter(time.Minute), logger.NopLogger())

	assert.Equal(t, 500, p.Quota(ClassAsset))
	assert.Equal(t, 200, p.Quota(ClassAutomatic))
	assert.Equal(t, 100, p.Quota(ClassQuizComplex))
	assert.Equal(t, 50, p.Quota(ClassAuthenticated))
	assert.Equal(t, 10, p.Quota(ClassDefault))
}

func TestLocalLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLimiter(time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := l.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	d, err = l.Allow(ctx, "other", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	now = now.Add(20 * time.Second)
	d, err = l.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed, "no refill inside the window")
	assert.Equal(t, now.Truncate(time.Minute).Add(time.Minute), d.ResetAt)

	now = now.Add(40 * time.Second)
	d, err = l.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "next window starts a fresh count")
	assert.Equal(t, 2, d.Remaining)
}

func TestLocalLimiter_FixedWindowQuota(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := start
	l := NewLocalLimiter(time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	allowed := 0
	for i := 0; i < 600; i++ {
		now = start.Add(time.Duration(i) * 100 * time.Millisecond)
		d, err := l.Allow(ctx, "client", 100, time.Minute)
		require.NoError(t, err)
		if d.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 100, allowed)
}

func TestLocalLimiter_Cleanup(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLimiter(time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = l.Allow(ctx, "a", 1, time.Second)
	now = now.Add(45 * time.Second)
	_, _ = l.Allow(ctx, "b", 1, time.Second)
	now = now.Add(30 * time.Second)

	assert.Equal(t, 1, l.Cleanup())
	assert.Equal(t, 1, l.Len())
}

func newRouter(p *Policy) *gin.Engine {
	r := gin.New()
	r.Use(p.Middleware())
	handler := func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(body))
	}
	r.GET("/api/me", handler)
	r.PUT("/api/quizzes/:id", handler)
	return r
}

func pinnedLimiter() *LocalLimiter {
	l := NewLocalLimiter(time.Minute)
	now := time.Now().Truncate(time.Minute).Add(time.Second)
	l.now = func() time.Time { return now }
	return l
}

func TestMiddleware_RejectsOverQuota(t *testing.T) {
	p := NewPolicy(config.AdmissionConfig{BaseQuota: 2, Window: time.Minute}, pinnedLimiter(), logger.NopLogger())
	r := newRouter(p)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "default", w.Header().Get("X-RateLimit-Class"))
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer t")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "authenticated class has its own window")
}

func TestMiddleware_PreservesInspectedBody(t *testing.T) {
	p := NewPolicy(config.AdmissionConfig{BaseQuota: 1, Window: time.Minute, ComplexElements: 2}, NewLocalLimiter(time.Minute), logger.NopLogger())
	r := newRouter(p)

	body := `{"elements":[{"id":1},{"id":2}]}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/quizzes/7", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, w.Body.String())
	assert.Equal(t, "quiz_complex", w.Header().Get("X-RateLimit-Class"))
	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	return Decision{}, errors.New("redis down")
}

func TestMiddleware_FailsOpen(t *testing.T) {
	p := NewPolicy(config.AdmissionConfig{BaseQuota: 1, Window: time.Minute}, brokenLimiter{}, logger.NopLogger())
	r := newRouter(p)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
		assert.Equal(t, http.StatusOK, w.Code, fmt.Sprintf("request %d", i))
	}
}

func TestNewLimiter(t *testing.T) {
	local := NewLocalLimiter(time.Minute)

	l, err := NewLimiter("local", nil, local)
	require.NoError(t, err)
	assert.Same(t, local, l)

	_, err = NewLimiter("redis", nil, local)
	require.Error(t, err)

	_, err = NewLimiter("memcached", nil, local)
	require.Error(t, err)
}
