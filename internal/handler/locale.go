package handler

import (
	"net/http"
	"strings"

	"github.com/deLKM/Genteblog/internal/locale"
	"github.com/gin-gonic/gin"
)

const (
	localeContextKey     = "__request_locale"
	languageCookieName   = "gb_lang"
	languageCookieMaxAge = 365 * 24 * 60 * 60
)

// LocaleMiddleware resolves the request language and sets Content-Language.
// An explicit ?lang= is remembered in a cookie.
func (a *API) LocaleMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		query := locale.NormalizeLanguage(c.Query("lang"))
		language := locale.Resolve(query, readLanguageCookie(c), c.GetHeader("Accept-Language"))
		if query != "" {
			persistLanguage(c, query)
		}
		c.Set(localeContextKey, language)
		c.Header("Content-Language", locale.ContentLanguage(language))
		appendVaryHeader(c, "Accept-Language", "Cookie")
		c.Next()
	}
}

// requestLanguage 返回中间件解析的语言；未经过中间件时按请求头即时解析。
func requestLanguage(c *gin.Context) string {
	if cached, ok := c.Get(localeContextKey); ok {
		if language, ok := cached.(string); ok {
			return language
		}
	}
	if c.Request == nil {
		return locale.LanguageChinese
	}
	return locale.Resolve(c.Query("lang"), readLanguageCookie(c), c.GetHeader("Accept-Language"))
}

func readLanguageCookie(c *gin.Context) string {
	if c.Request == nil {
		return ""
	}
	value, err := c.Cookie(languageCookieName)
	if err != nil {
		return ""
	}
	return locale.NormalizeLanguage(value)
}

func persistLanguage(c *gin.Context, language string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     languageCookieName,
		Value:    language,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https"),
		MaxAge:   languageCookieMaxAge,
		SameSite: http.SameSiteLaxMode,
	})
}

func appendVaryHeader(c *gin.Context, headers ...string) {
	existing := c.Writer.Header().Get("Vary")
	seen := make(map[string]struct{})
	order := make([]string, 0, len(headers))
	for _, token := range append(strings.Split(existing, ","), headers...) {
		trimmed := strings.TrimSpace(token)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		order = append(order, trimmed)
	}
	if len(order) > 0 {
		c.Header("Vary", strings.Join(order, ", "))
	}
}
