package dishes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dish-recommender/internal/core/dish"
	"dish-recommender/internal/core/recommend"
	"dish-recommender/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRecommender struct {
	mock.Mock
}

func (m *mockRecommender) SubmitAsync(ctx context.Context, ingredients string) (string, error) {
	args := m.Called(ctx, ingredients)
	return args.String(0), args.Error(1)
}

func (m *mockRecommender) Snapshot() recommend.Snapshot {
	return m.Called().Get(0).(recommend.Snapshot)
}

func (m *mockRecommender) Subscribe() (<-chan recommend.Snapshot, func()) {
	args := m.Called()
	return args.Get(0).(<-chan recommend.Snapshot), args.Get(1).(func())
}

func newRouter(r Recommender) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(r)
	engine := gin.New()
	engine.POST("/api/v1/dishes", h.HandleSubmit)
	engine.GET("/api/v1/dishes", h.HandleState)
	return engine
}

func submit(engine *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dishes", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) common.ErrorResponse {
	var resp common.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandleSubmit_Accepted(t *testing.T) {
	r := new(mockRecommender)
	r.On("SubmitAsync", mock.Anything, "tomato, egg").Return("sub-1", nil).Once()

	w := submit(newRouter(r), `{"ingredients":"tomato, egg"}`)

	require.Equal(t, http.StatusAccepted, w.Code)
	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sub-1", resp.SubmissionID)
	r.AssertExpectations(t)
}

func TestHandleSubmit_Blank(t *testing.T) {
	r := new(mockRecommender)
	r.On("SubmitAsync", mock.Anything, "  ").Return("", recommend.ErrBlankIngredients).Once()

	w := submit(newRouter(r), `{"ingredients":"  "}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, common.ErrCodeInvalidRequest, decodeError(t, w).Code)
}

func TestHandleSubmit_InProgress(t *testing.T) {
	r := new(mockRecommender)
	r.On("SubmitAsync", mock.Anything, "rice").Return("", recommend.ErrSubmissionInProgress).Once()

	w := submit(newRouter(r), `{"ingredients":"rice"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, common.ErrCodeConflict, decodeError(t, w).Code)
}

func TestHandleSubmit_InvalidJSON(t *testing.T) {
	r := new(mockRecommender)

	w := submit(newRouter(r), `{"ingredients":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	r.AssertNotCalled(t, "SubmitAsync", mock.Anything, mock.Anything)
}

func TestHandleState_IncludesChart(t *testing.T) {
	normalized, _ := dish.NutrientVector{200, 10, 5, 25}.Normalize()
	raw := dish.NutrientVector{0, 0, 0, 0}
	snap := recommend.Snapshot{
		SubmissionID: "sub-1",
		Phase:        recommend.PhaseSettled,
		Dishes: []dish.Record{
			{Slot: 0, Name: "Soup", State: dish.StateDone, Normalized: &normalized},
			{Slot: 1, Name: "Water", State: dish.StateDone, Nutrients: &raw},
			{Slot: 2, Name: "Cake", State: dish.StateFailed, CaloriesText: "400 kcal"},
		},
	}
	r := new(mockRecommender)
	r.On("Snapshot").Return(snap)

	w := httptest.NewRecorder()
	newRouter(r).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/dishes", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		SubmissionID string `json:"submission_id"`
		Phase        string `json:"phase"`
		Dishes       []struct {
			Name            string     `json:"name"`
			EnrichmentState string     `json:"enrichment_state"`
			CaloriesText    string     `json:"calories_text"`
			Chart           *ChartView `json:"chart"`
		} `json:"dishes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "sub-1", body.SubmissionID)
	assert.Equal(t, "settled", body.Phase)
	require.Len(t, body.Dishes, 3)
	require.NotNil(t, body.Dishes[0].Chart)
	assert.Equal(t, "Nutritional Breakdown (Calories: 83.33%, Protein: 4.17%, Fat: 2.08%, Carbs: 10.42%)", body.Dishes[0].Chart.Title)
	assert.Len(t, body.Dishes[0].Chart.Segments, 4)
	assert.Nil(t, body.Dishes[1].Chart)
	assert.Equal(t, "failed", body.Dishes[2].EnrichmentState)
	assert.Equal(t, "400 kcal", body.Dishes[2].CaloriesText)
}

func TestNewStateResponse_Empty(t *testing.T) {
	resp := NewStateResponse(recommend.Snapshot{Phase: recommend.PhaseIdle})
	assert.NotNil(t, resp.Dishes)
	assert.Empty(t, resp.Dishes)
}
