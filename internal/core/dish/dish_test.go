package dish

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreparationSteps(t *testing.T) {
	steps := PreparationSteps("1. Chop the onion\n\n  2. Fry it  \n\t\n3. Serve")
	assert.Equal(t, []string{"1. Chop the onion", "2. Fry it", "3. Serve"}, steps)

	assert.Empty(t, PreparationSteps(""))
	assert.Empty(t, PreparationSteps("\n \n"))
}

func TestPreparationSteps_Idempotent(t *testing.T) {
	text := "Boil water\nAdd pasta\n\nDrain"
	assert.Equal(t, PreparationSteps(text), PreparationSteps(text))
}

func TestNewRecord(t *testing.T) {
	r := NewRecord(2, Draft{
		Ordinal:        "1",
		Name:           "Tomato Soup",
		RawIngredients: "tomato, salt",
		Preparation:    "Boil",
		CaloriesText:   "120",
	})

	assert.Equal(t, 2, r.Slot)
	assert.Equal(t, "1", r.Ordinal)
	assert.Equal(t, "Tomato Soup", r.Name)
	assert.Equal(t, []string{"Boil"}, r.PreparationSteps)
	assert.Equal(t, StatePending, r.State)
	assert.Nil(t, r.Nutrients)
	assert.Nil(t, r.Normalized)
}

func TestRecordClone_IsDeep(t *testing.T) {
	v := NutrientVector{1, 2, 3, 4}
	orig := Record{PreparationSteps: []string{"a"}, Nutrients: &v}

	cp := orig.Clone()
	cp.PreparationSteps[0] = "b"
	cp.Nutrients[0] = 99

	assert.Equal(t, "a", orig.PreparationSteps[0])
	assert.Equal(t, 1.0, orig.Nutrients[0])
}

func TestNormalize(t *testing.T) {
	v := NutrientVector{200, 10, 5, 25}
	require.Equal(t, 240.0, v.Sum())

	n, ok := v.Normalize()
	require.True(t, ok)
	assert.InDelta(t, 0.833, n[Calorie], 0.001)
	assert.InDelta(t, 0.042, n[Protein], 0.001)
	assert.InDelta(t, 0.021, n[Fat], 0.001)
	assert.InDelta(t, 0.104, n[Carbohydrate], 0.001)
	assert.InDelta(t, 1.0, n.Sum(), 1e-9)
}

func TestNormalize_SumsToOne(t *testing.T) {
	vectors := []NutrientVector{
		{1, 1, 1, 1},
		{0.001, 0, 0, 0},
		{523.7, 12.25, 31.9, 74.01},
		{0, 0, 0, 3},
	}
	for _, v := range vectors {
		n, ok := v.Normalize()
		require.True(t, ok)
		assert.InDelta(t, 1.0, n.Sum(), 1e-9)
	}
}

func TestNormalize_ZeroSum(t *testing.T) {
	_, ok := NutrientVector{}.Normalize()
	assert.False(t, ok)
}

func TestSegmentsAndBreakdown(t *testing.T) {
	n, ok := NutrientVector{200, 10, 5, 25}.Normalize()
	require.True(t, ok)

	segments := n.Segments()
	require.Len(t, segments, 4)
	assert.Equal(t, "Calories", segments[0].Label)
	assert.Equal(t, 83.33, segments[0].Percent)
	assert.Equal(t, "#FF9999", segments[0].Color)
	assert.Equal(t, 10.42, segments[3].Percent)

	assert.Equal(t,
		"Nutritional Breakdown (Calories: 83.33%, Protein: 4.17%, Fat: 2.08%, Carbs: 10.42%)",
		n.Breakdown())
}
