// Package extract 將模型的自由文字回覆解析成菜色草稿
package extract

import (
	"regexp"
	"strings"

	"dish-recommender/internal/core/dish"
)

// Extractor 結構化擷取介面，可替換成更嚴格的文法或 schema 解碼
type Extractor interface {
	Extract(text string) []dish.Draft
}

// 欄位代號
const (
	fieldName = iota
	fieldIngredients
	fieldPreparation
	fieldCalories
)

var (
	// 菜色邊界：「number of the dish: 1」或行首的「dish2」/「Dish 2:」
	boundaryPattern = regexp.MustCompile(
		`(?im)(?:\**[ \t]*number[ \t]+of[ \t]+the[ \t]+dish[ \t]*\**[ \t]*:[ \t]*\**[ \t]*(\d*)\**|^[ \t]*[#>\-]*[ \t]*\**[ \t]*dish[ \t]*(\d+)\b[ \t]*\**[ \t]*:?)`)

	// 欄位標籤，允許 markdown 粗體
	labelPattern = regexp.MustCompile(
		`(?i)\**[ \t]*(name[ \t]+of[ \t]+the[ \t]+dish|ingredients|preparation[ \t]+method|estimated[ \t]+calories)[ \t]*\**[ \t]*:[ \t]*\**`)
)

// PatternExtractor 以正規表示式擷取菜色
type PatternExtractor struct{}

// NewPatternExtractor 創建擷取器
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{}
}

// Extract 依邊界切段，每段取出四個欄位
//
// 沒有邊界時回傳空切片；擷取器本身不重試，由呼叫端決定。
func (e *PatternExtractor) Extract(text string) []dish.Draft {
	bounds := boundaryPattern.FindAllStringSubmatchIndex(text, -1)
	drafts := make([]dish.Draft, 0, len(bounds))

	for i, b := range bounds {
		end := len(text)
		if i+1 < len(bounds) {
			end = bounds[i+1][0]
		}

		ordinal := submatch(text, b, 1)
		if ordinal == "" {
			ordinal = submatch(text, b, 2)
		}

		d, ok := parseSegment(text[b[1]:end])
		if !ok {
			continue
		}
		d.Ordinal = ordinal
		drafts = append(drafts, d)
	}

	return drafts
}

// parseSegment 解析一段菜色文字，沒有名稱的段落不算菜色
func parseSegment(segment string) (dish.Draft, bool) {
	labels := labelPattern.FindAllStringSubmatchIndex(segment, -1)

	var values [4]string
	var seen [4]bool
	for i, l := range labels {
		field, ok := fieldOf(segment[l[2]:l[3]])
		if !ok || seen[field] {
			continue
		}
		end := len(segment)
		if i+1 < len(labels) {
			end = labels[i+1][0]
		}
		values[field] = cleanValue(segment[l[1]:end])
		seen[field] = true
	}

	if values[fieldName] == "" {
		return dish.Draft{}, false
	}

	return dish.Draft{
		Name:           values[fieldName],
		RawIngredients: values[fieldIngredients],
		Preparation:    values[fieldPreparation],
		CaloriesText:   values[fieldCalories],
	}, true
}

func fieldOf(label string) (int, bool) {
	label = strings.ToLower(strings.Join(strings.Fields(label), " "))
	switch label {
	case "name of the dish":
		return fieldName, true
	case "ingredients":
		return fieldIngredients, true
	case "preparation method":
		return fieldPreparation, true
	case "estimated calories":
		return fieldCalories, true
	}
	return 0, false
}

// cleanValue 去除前後空白與殘留的 markdown 粗體符號
func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Trim(v, "*")
	return strings.TrimSpace(v)
}

func submatch(text string, loc []int, group int) string {
	start, end := loc[2*group], loc[2*group+1]
	if start < 0 {
		return ""
	}
	return text[start:end]
}
