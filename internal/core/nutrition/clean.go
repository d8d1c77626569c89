package nutrition

import (
	"regexp"
	"strings"
)

var (
	// 行首的項目符號、前後有空白的破折號、逗號與換行都視為分隔
	fragmentSeparator = regexp.MustCompile(`(?m)^[ \t]*[-*•][ \t]*|[ \t]+-[ \t]+|,|\r?\n`)

	// 「適量」類的修飾語，營養查詢無法解析
	qualifierPattern = regexp.MustCompile(`(?i)\bto\s+taste\b|\bas\s+needed\b|\bfor\s+garnish\b|\boptional\b`)
)

// Clean 把模型產生的食材文字整理成查詢字串，同時也是快取鍵
//
//	"salt (to taste) - tomato - onion" -> "tomato,onion"
func Clean(raw string) string {
	parts := fragmentSeparator.Split(raw, -1)
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || qualifierPattern.MatchString(p) {
			continue
		}
		kept = append(kept, strings.Join(strings.Fields(p), " "))
	}
	return strings.Join(kept, ",")
}
