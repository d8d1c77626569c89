// Package dish 定義推薦流程中的菜色資料模型
package dish

import (
	"strings"
)

// EnrichmentState 菜色的營養補充狀態
type EnrichmentState string

const (
	StatePending EnrichmentState = "pending"
	StateLoading EnrichmentState = "loading"
	StateDone    EnrichmentState = "done"
	StateFailed  EnrichmentState = "failed"
)

// Terminal 是否已結束補充
func (s EnrichmentState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Draft 擷取器從模型回覆解析出的菜色草稿
type Draft struct {
	Ordinal        string `json:"ordinal,omitempty"`
	Name           string `json:"name"`
	RawIngredients string `json:"raw_ingredients"`
	Preparation    string `json:"preparation"`
	CaloriesText   string `json:"calories_text"`
}

// Record 一道推薦菜色
//
// Slot 是同一次提交內穩定的索引，也是合併結果時唯一使用的識別；
// Ordinal 來自模型，可能重複或缺少，不能當作鍵。
type Record struct {
	Slot             int             `json:"slot"`
	Ordinal          string          `json:"ordinal,omitempty"`
	Name             string          `json:"name"`
	RawIngredients   string          `json:"raw_ingredients"`
	Preparation      string          `json:"preparation"`
	PreparationSteps []string        `json:"preparation_steps"`
	CaloriesText     string          `json:"calories_text"`
	NutritionQuery   string          `json:"nutrition_query,omitempty"`
	Nutrients        *NutrientVector `json:"nutrient_vector,omitempty"`
	Normalized       *NutrientVector `json:"normalized_nutrient_vector,omitempty"`
	State            EnrichmentState `json:"enrichment_state"`
	ImageURL         string          `json:"image_url,omitempty"`
}

// NewRecord 由草稿建立菜色，狀態為 pending
func NewRecord(slot int, d Draft) Record {
	return Record{
		Slot:             slot,
		Ordinal:          d.Ordinal,
		Name:             d.Name,
		RawIngredients:   d.RawIngredients,
		Preparation:      d.Preparation,
		PreparationSteps: PreparationSteps(d.Preparation),
		CaloriesText:     d.CaloriesText,
		State:            StatePending,
	}
}

// Clone 深拷貝，讓補充任務與觀察者拿到的快照不會與共享集合互相影響
func (r Record) Clone() Record {
	out := r
	if r.PreparationSteps != nil {
		out.PreparationSteps = append([]string(nil), r.PreparationSteps...)
	}
	if r.Nutrients != nil {
		v := *r.Nutrients
		out.Nutrients = &v
	}
	if r.Normalized != nil {
		v := *r.Normalized
		out.Normalized = &v
	}
	return out
}

// CloneAll 深拷貝整個集合
func CloneAll(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

// PreparationSteps 將製作方法文字按行拆成步驟，去除空行
func PreparationSteps(preparation string) []string {
	lines := strings.Split(preparation, "\n")
	steps := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		steps = append(steps, line)
	}
	return steps
}
