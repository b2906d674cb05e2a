package tracing

import "strings"

// span 属性长度上限
const (
	DefaultMaxLength = 200
	MaxModelOutput   = 300
)

// piiKeys 属性名包含这些片段时值需要掩码
var piiKeys = []string{"email", "phone", "name", "linkedin", "github", "leetcode", "codechef", "address", "姓名", "电话"}

// SafeAttributeValue 个人信息掩码，其余值按 maxLength 截断
func SafeAttributeValue(name, value string, maxLength int) string {
	lower := strings.ToLower(name)
	for _, k := range piiKeys {
		if strings.Contains(lower, k) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII 保留首尾少量字符。两个字符只留首字，五个字符以上首尾各留两个
func MaskPII(value string) string {
	runes := []rune(value)
	n := len(runes)
	switch {
	case n == 0:
		return ""
	case n == 1:
		return "*"
	case n == 2:
		return string(runes[0]) + "*"
	case n <= 4:
		return string(runes[0]) + strings.Repeat("*", n-2) + string(runes[n-1])
	default:
		return string(runes[:2]) + strings.Repeat("*", n-4) + string(runes[n-2:])
	}
}

// TruncateString 超长时保留头尾，中间用 ... 连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	half := max((maxLength-3)/2, 1)
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

// SafeModelOutput 模型原始输出写入 span 前截断
func SafeModelOutput(raw string) string {
	return TruncateString(raw, MaxModelOutput)
}
