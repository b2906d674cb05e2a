package scoring

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// 百分比、货币金额、"N users" 这类数量、"3 x"/"5 years" 这类倍数与时长，数字与单位之间须有空白
	metricPattern = regexp.MustCompile(
		`\b\d+(?:\.\d+)?%` +
			`|\$\d[\d,]*(?:\.\d+)?\b` +
			`|\b\d+\s+(?:users|clients|projects|transactions|systems)\b` +
			`|\b\d+\s+(?:x|times|months|years)\b`)

	hyphenBullet  = regexp.MustCompile(`-\s`)
	tablePattern  = regexp.MustCompile(`<table|</table>`)
	imagePattern  = regexp.MustCompile(`\.(png|jpg|jpeg|svg)`)
	jdWordPattern = regexp.MustCompile(`[a-z]+`)
	linkedInURL   = regexp.MustCompile(`linkedin\.com`)
	gitHubURL     = regexp.MustCompile(`github\.com`)
)

// 除 "- " 以外的项目符号
var bulletMarks = []string{"•", "◦", "*", "→"}

// WordCount 按空白切分的词数
func WordCount(text string) int {
	return len(strings.Fields(text))
}

func countBullets(text string) int {
	n := len(hyphenBullet.FindAllStringIndex(text, -1))
	for _, m := range bulletMarks {
		n += strings.Count(text, m)
	}
	return n
}

func countMatches(re *regexp.Regexp, text string) int {
	return len(re.FindAllStringIndex(text, -1))
}

// countKeywords 统计在文本中出现过的不同关键词个数（子串匹配）
func countKeywords(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

func longestLine(text string) int {
	longest := 0
	for _, line := range strings.Split(text, "\n") {
		if n := utf8.RuneCountInString(line); n > longest {
			longest = n
		}
	}
	return longest
}

func wordSet(lower string) map[string]struct{} {
	words := jdWordPattern.FindAllString(lower, -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func buildVerbPattern(verbs []string) *regexp.Regexp {
	quoted := make([]string, 0, len(verbs))
	for _, v := range verbs {
		if v = strings.TrimSpace(v); v != "" {
			quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(v)))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func dedupe(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok || w == "" {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
