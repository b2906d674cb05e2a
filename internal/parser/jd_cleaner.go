package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	htmlTagHint     = regexp.MustCompile(`(?i)<\s*(html|body|div|p|br|ul|ol|li|span|h[1-6]|table|section|article|strong|em)\b`)
	collapsedSpaces = regexp.MustCompile(`[ \t]+`)
	collapsedBreaks = regexp.MustCompile(`\n{3,}`)
)

// CleanJobDescription 职位描述常从招聘网页直接粘贴，带 HTML 时取正文文本。
// 纯文本原样返回(只压缩空白)。
func CleanJobDescription(jd string) string {
	jd = strings.TrimSpace(jd)
	if jd == "" {
		return ""
	}
	if !htmlTagHint.MatchString(jd) {
		return tidyWhitespace(jd)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(jd))
	if err != nil {
		return tidyWhitespace(jd)
	}
	doc.Find("script, style, noscript, iframe, svg").Remove()
	// 块级元素之间补换行，避免相邻段落的词粘在一起
	doc.Find("p, div, li, br, h1, h2, h3, h4, h5, h6, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return tidyWhitespace(doc.Text())
}

func tidyWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(collapsedSpaces.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(collapsedBreaks.ReplaceAllString(s, "\n\n"))
}
