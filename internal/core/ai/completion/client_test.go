package completion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"dish-recommender/internal/infrastructure/config"
	"dish-recommender/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string, maxRetries int) *Client {
	return NewClient(config.CompletionConfig{
		BaseURL:     url,
		APIKey:      "test-key",
		Model:       "gpt-3.5-turbo",
		MaxTokens:   100,
		Temperature: 0.7,
		Timeout:     5 * time.Second,
		DishCount:   3,
		MaxRetries:  maxRetries,
	})
}

func TestComplete_Success(t *testing.T) {
	var got Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[{"message":{"role":"assistant","content":"number of the dish: 1"}}]}`))
	}))
	defer server.Close()

	content, err := newTestClient(server.URL, 0).Complete(context.Background(), "  tomato, egg ")

	require.NoError(t, err)
	assert.Equal(t, "number of the dish: 1", content)
	assert.Equal(t, "gpt-3.5-turbo", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[1].Content, "What dishes can I make with tomato, egg?")
	assert.Contains(t, got.Messages[1].Content, "Only give me 3 dishes.")
	assert.Contains(t, got.Messages[1].Content, "Estimated Calories:")
}

func TestComplete_RetriesUpstreamFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	content, err := newTestClient(server.URL, 3).Complete(context.Background(), "rice")

	require.NoError(t, err)
	assert.Equal(t, "ok", content)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestComplete_ExhaustedRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 2).Complete(context.Background(), "rice")

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUpstreamRequestFailed)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestComplete_MalformedNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 3).Complete(context.Background(), "rice")

	assert.ErrorIs(t, err, common.ErrMalformedPayload)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestBuildMessages_DefaultDishCount(t *testing.T) {
	msgs := BuildMessages("egg", 0)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Content, "Only give me 3 dishes.")
	assert.Contains(t, msgs[1].Content, "number of the dish:")
}
