package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dish-recommender/internal/core/cache"
	"dish-recommender/internal/core/dish"
	"dish-recommender/internal/core/extract"
	"dish-recommender/internal/core/metrics"
	"dish-recommender/internal/core/nutrition"
	"dish-recommender/internal/core/recommend"
	"dish-recommender/internal/infrastructure/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCompleter string

func (s staticCompleter) Complete(ctx context.Context, ingredients string) (string, error) {
	return string(s), nil
}

type staticEnricher struct{}

func (staticEnricher) Enrich(ctx context.Context, raw string) (nutrition.Result, error) {
	v := dish.NutrientVector{200, 10, 5, 25}
	n, _ := v.Normalize()
	return nutrition.Result{Query: raw, Nutrients: v, Normalized: &n}, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Version = "test"
	cfg.Server.MaxBodyBytes = 1 << 10
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.Requests = 100
	cfg.RateLimit.Window = time.Minute
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/metrics"
	cfg.DedupWindow = time.Second
	return cfg
}

func TestRouter_SubmitAndObserve(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := metrics.New()
	o := recommend.New(
		staticCompleter("number of the dish: 1\nName of the dish: Soup\nIngredients: tomato\nPreparation Method: Boil\nEstimated Calories: 120"),
		extract.NewPatternExtractor(), staticEnricher{}, nil, m,
		recommend.Options{MaxAttempts: 3, Workers: 2},
	)
	router, err := SetupRouter(testConfig(), Dependencies{
		Recommender: o,
		Store:       cache.NewMemoryStore(),
		Metrics:     m,
		InProgress:  o.InProgress,
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dishes", strings.NewReader(`{"ingredients":"tomato"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	o.Wait()

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/dishes", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var state struct {
		Phase      string `json:"phase"`
		InProgress bool   `json:"in_progress"`
		Dishes     []struct {
			Name  string `json:"name"`
			State string `json:"enrichment_state"`
			Chart *struct {
				Title string `json:"title"`
			} `json:"chart"`
		} `json:"dishes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, "settled", state.Phase)
	assert.False(t, state.InProgress)
	require.Len(t, state.Dishes, 1)
	assert.Equal(t, "Soup", state.Dishes[0].Name)
	assert.Equal(t, "done", state.Dishes[0].State)
	require.NotNil(t, state.Dishes[0].Chart)
	assert.Contains(t, state.Dishes[0].Chart.Title, "Calories: 83.33%")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dish_recommender_submissions_total")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_RequiresRecommender(t *testing.T) {
	_, err := SetupRouter(testConfig(), Dependencies{})
	assert.Error(t, err)
}
