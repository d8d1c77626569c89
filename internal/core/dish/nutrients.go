package dish

import (
	"fmt"
	"math"
	"strings"
)

// 營養向量各分量的位置
const (
	Calorie = iota
	Protein
	Fat
	Carbohydrate
)

// NutrientVector {calorie, protein_g, fat_total_g, carbohydrate_g}
type NutrientVector [4]float64

// 圖表標籤與配色
var (
	NutrientLabels = [4]string{"Calories", "Protein", "Fat", "Carbs"}
	NutrientColors = [4]string{"#FF9999", "#66B2FF", "#99E699", "#FFCC66"}
)

// ChartSegment 圖表的一個區塊
type ChartSegment struct {
	Label   string  `json:"label"`
	Percent float64 `json:"percent"`
	Color   string  `json:"color"`
}

// Sum 四個分量的總和
func (v NutrientVector) Sum() float64 {
	return v[Calorie] + v[Protein] + v[Fat] + v[Carbohydrate]
}

// Normalize 各分量除以總和；總和不為正數時回傳 false
func (v NutrientVector) Normalize() (NutrientVector, bool) {
	sum := v.Sum()
	if !(sum > 0) || math.IsInf(sum, 0) {
		return NutrientVector{}, false
	}
	var out NutrientVector
	for i := range v {
		out[i] = v[i] / sum
	}
	return out, true
}

// Segments 以百分比（小數兩位）輸出圖表資料，v 應為正規化後的向量
func (v NutrientVector) Segments() []ChartSegment {
	segments := make([]ChartSegment, len(v))
	for i := range v {
		segments[i] = ChartSegment{
			Label:   NutrientLabels[i],
			Percent: math.Round(v[i]*100*100) / 100,
			Color:   NutrientColors[i],
		}
	}
	return segments
}

// Breakdown 圖表標題，例如 "Nutritional Breakdown (Calories: 83.33%, ...)"
func (v NutrientVector) Breakdown() string {
	parts := make([]string, len(v))
	for i := range v {
		parts[i] = fmt.Sprintf("%s: %.2f%%", NutrientLabels[i], v[i]*100)
	}
	return "Nutritional Breakdown (" + strings.Join(parts, ", ") + ")"
}
