package i18n

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"":                        LocaleZH,
		"en-US":                   LocaleEN,
		"en-GB,en;q=0.9":          LocaleEN,
		"zh-TW":                   LocaleZH,
		"fr-FR,en;q=0.5":          LocaleEN,
		"zh-CN,zh;q=0.9,en;q=0.8": LocaleZH,
		"@@invalid":               LocaleZH,
	}
	for raw, want := range cases {
		if got := Normalize(raw); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestResolveLocalePrefersExplicitHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	c.Request.Header.Set("Accept-Language", "zh-CN")
	c.Request.Header.Set("X-Locale", "en-US")
	if got := ResolveLocale(c); got != LocaleEN {
		t.Fatalf("expected explicit locale, got %s", got)
	}
}

func TestTranslateFallbacks(t *testing.T) {
	if got := T(LocaleEN, "error.insufficient_balance"); got != "Insufficient available balance" {
		t.Fatalf("unexpected english message: %s", got)
	}
	if got := T(LocaleEN, "error.unknown_key"); got != "error.unknown_key" {
		t.Fatalf("missing key should fall back to the key, got %s", got)
	}
	if got := Sprintf(LocaleEN, "error.otp_mismatch", 3); got != "Wrong PIN, 3 attempts left" {
		t.Fatalf("unexpected formatted message: %s", got)
	}
}
