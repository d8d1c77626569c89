package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.POST("/submit", func(c *gin.Context) { c.Status(http.StatusAccepted) })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(body))
	r.ServeHTTP(w, req)
	return w
}

func TestDeduplication(t *testing.T) {
	d := NewDeduplicator(time.Minute)
	now := time.Now()
	d.now = func() time.Time { return now }
	r := newEngine(d.Middleware())

	assert.Equal(t, http.StatusAccepted, post(r, `{"ingredients":"egg"}`).Code)

	dup := post(r, `{"ingredients":"egg"}`)
	assert.Equal(t, http.StatusTooManyRequests, dup.Code)
	assert.Contains(t, dup.Body.String(), "TOO_MANY_REQUESTS")

	assert.Equal(t, http.StatusAccepted, post(r, `{"ingredients":"rice"}`).Code)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, http.StatusAccepted, post(r, `{"ingredients":"egg"}`).Code)
}

func TestRateLimit(t *testing.T) {
	r := newEngine(RateLimit(2, time.Hour))

	assert.Equal(t, http.StatusAccepted, post(r, "a").Code)
	assert.Equal(t, http.StatusAccepted, post(r, "b").Code)

	w := post(r, "c")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestBodySizeLimit(t *testing.T) {
	r := newEngine(BodySizeLimit(8))

	assert.Equal(t, http.StatusAccepted, post(r, "small").Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, post(r, strings.Repeat("x", 64)).Code)
}

func TestRecovery(t *testing.T) {
	r := newEngine(Recovery(), Logger())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestDeduplication_ChunkedBodyTooLarge(t *testing.T) {
	r := newEngine(BodySizeLimit(8), NewDeduplicator(time.Minute).Middleware())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(strings.Repeat("x", 64)))
	req.ContentLength = -1
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "max 8 bytes")
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Now()
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.Len(t, rl.visitors, 2)

	now = now.Add(2 * time.Minute)
	assert.True(t, rl.Allow("10.0.0.3"))
	assert.Len(t, rl.visitors, 1)

	// 被移除的用戶端重新取得完整額度
	assert.True(t, rl.Allow("10.0.0.1"))
}
