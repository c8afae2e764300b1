package locale

import (
	"sort"
	"strconv"
	"strings"
)

const (
	LanguageChinese = "zh"
	LanguageEnglish = "en"
)

// ContentLanguage 返回写入 Content-Language 响应头的值。
func ContentLanguage(language string) string {
	if NormalizeLanguage(language) == LanguageEnglish {
		return "en-US"
	}
	return "zh-CN"
}

func NormalizeLanguage(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "zh") || trimmed == "cn" {
		return LanguageChinese
	}
	if strings.HasPrefix(trimmed, "en") {
		return LanguageEnglish
	}
	return ""
}

// LanguageFromAcceptLanguage picks the supported language with the highest
// q weight; ties keep header order.
func LanguageFromAcceptLanguage(header string) string {
	type weighted struct {
		language string
		q        float64
	}
	var candidates []weighted
	for _, part := range strings.Split(header, ",") {
		tag, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		language := NormalizeLanguage(tag)
		if language == "" {
			continue
		}
		q := 1.0
		if name, value, ok := strings.Cut(strings.TrimSpace(params), "="); ok && strings.TrimSpace(name) == "q" {
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
				q = parsed
			}
		}
		if q <= 0 {
			continue
		}
		candidates = append(candidates, weighted{language: language, q: q})
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].q > candidates[j].q })
	return candidates[0].language
}

// Resolve 按 query 参数、cookie、Accept-Language 的顺序决定语言，默认中文。
func Resolve(query, cookie, acceptLanguage string) string {
	if language := NormalizeLanguage(query); language != "" {
		return language
	}
	if language := NormalizeLanguage(cookie); language != "" {
		return language
	}
	if language := LanguageFromAcceptLanguage(acceptLanguage); language != "" {
		return language
	}
	return LanguageChinese
}
