package normalizer

import (
	"net/url"
	"regexp"
	"strings"
)

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,39}$`)

// 个人主页 URL 中用户名之前的固定路径段
var profilePathPrefixes = map[string]struct{}{
	"u": {}, "users": {}, "in": {}, "profile": {},
}

// ProfileHandle 从个人主页链接或裸用户名中取出用户名。
// host 例如 "github.com"；无法识别时返回空串。
func ProfileHandle(input, host string) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return ""
	}

	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || (host != "" && strings.Contains(lower, host)) {
		if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
			s = "https://" + s
		}
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		for _, part := range strings.Split(u.Path, "/") {
			if part == "" {
				continue
			}
			if _, skip := profilePathPrefixes[strings.ToLower(part)]; skip {
				continue
			}
			return part
		}
		return ""
	}

	if handlePattern.MatchString(s) {
		return s
	}
	if strings.Contains(s, "/") {
		parts := strings.Split(strings.TrimRight(s, "/"), "/")
		return parts[len(parts)-1]
	}
	return ""
}
