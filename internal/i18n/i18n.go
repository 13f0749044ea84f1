package i18n

import (
	"fmt"
	"strings"

	"github.com/license-ledger/internal/constants"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
)

// 支持的语言
const (
	LocaleZH = constants.LocaleZhCN
	LocaleEN = constants.LocaleEnUS
)

const localeHeader = "X-Locale"

var matcher = language.NewMatcher([]language.Tag{
	language.SimplifiedChinese,
	language.AmericanEnglish,
})

// ResolveLocale 解析请求语言：X-Locale 优先，其次 Accept-Language，默认中文
func ResolveLocale(c *gin.Context) string {
	if c == nil || c.Request == nil {
		return LocaleZH
	}
	if explicit := strings.TrimSpace(c.GetHeader(localeHeader)); explicit != "" {
		return Normalize(explicit)
	}
	return Normalize(c.GetHeader("Accept-Language"))
}

// Normalize 将任意语言标签归一到支持的语言
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return LocaleZH
	}
	tags, _, err := language.ParseAcceptLanguage(raw)
	if err != nil || len(tags) == 0 {
		return LocaleZH
	}
	_, index, _ := matcher.Match(tags...)
	if index == 1 {
		return LocaleEN
	}
	return LocaleZH
}

// T 翻译消息键，缺失时回退到中文，再回退到键本身
func T(locale, key string) string {
	if msg, ok := lookup(locale, key); ok {
		return msg
	}
	return key
}

// Sprintf 翻译并格式化
func Sprintf(locale, key string, args ...interface{}) string {
	msg, ok := lookup(locale, key)
	if !ok {
		return key
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

func lookup(locale, key string) (string, bool) {
	if table, ok := catalog[Normalize(locale)]; ok {
		if msg, ok := table[key]; ok {
			return msg, true
		}
	}
	msg, ok := catalog[LocaleZH][key]
	return msg, ok
}
