package completion

import (
	"fmt"
	"strings"
)

// systemInstruction 固定的系統指示，要求模型照大綱回答以便擷取
const systemInstruction = `You are a helpful cook assistant and my private chef.
I will tell you the ingredients and I want you to show me the menu that can be made with those ingredients, with the estimated calories.
I will give you the answer outline. Please follow the answer outline exactly so the answer is easy to parse.`

// answerOutline 每道菜的欄位大綱
const answerOutline = `number of the dish:
Name of the dish:
Ingredients:
Preparation Method:
Estimated Calories:`

// BuildMessages 組出系統與使用者訊息
func BuildMessages(ingredients string, dishCount int) []Message {
	if dishCount <= 0 {
		dishCount = 3
	}
	user := fmt.Sprintf(`What dishes can I make with %s?
Please list them in a structured manner with the dish name, ingredients, preparation method and estimated calories.
Only give me %d dishes.
This is the answer outline, repeat it for every dish:
%s`, strings.TrimSpace(ingredients), dishCount, answerOutline)

	return []Message{
		{Role: "system", Content: systemInstruction},
		{Role: "user", Content: user},
	}
}
