package middleware

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	appconfig "github.com/mispartech/new-mispartechnologies-sub001/config"

	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// Translator holds the loaded message bundle and per-language localizers.
type Translator struct {
	bundle    *i18n.Bundle
	localizer map[string]*i18n.Localizer
	languages map[string]bool
	fallback  string
}

// NewTranslator loads all JSON locale files from the configured directory.
func NewTranslator(cfg appconfig.I18nConfig) (*Translator, error) {
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	if cfg.LocalesDir == "" {
		cfg.LocalesDir = "./web/locales"
	}

	bundle := i18n.NewBundle(language.MustParse(cfg.DefaultLanguage))
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	t := &Translator{
		bundle:    bundle,
		localizer: make(map[string]*i18n.Localizer),
		languages: make(map[string]bool),
		fallback:  cfg.DefaultLanguage,
	}

	localeFiles, err := os.ReadDir(cfg.LocalesDir)
	if err != nil {
		return nil, err
	}

	for _, file := range localeFiles {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		langCode := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))
		if _, err := bundle.LoadMessageFile(filepath.Join(cfg.LocalesDir, file.Name())); err != nil {
			return nil, err
		}
		t.localizer[langCode] = i18n.NewLocalizer(bundle, langCode)
		t.languages[langCode] = true
	}

	return t, nil
}

// Translate resolves a message key for the given language, falling back to
// the default language, then to the key itself.
func (t *Translator) Translate(lang, key string) string {
	loc, ok := t.localizer[lang]
	if !ok {
		loc = t.localizer[t.fallback]
	}
	if loc == nil {
		return key
	}
	// Localize may hand back the default-language text together with a
	// not-found error; any resolved text beats the bare key.
	msg, err := loc.Localize(&i18n.LocalizeConfig{MessageID: key})
	if msg == "" && err != nil {
		return key
	}
	return msg
}

// I18n picks the request language from the `lang` query parameter or the
// Accept-Language header and stores it with the translator in the context.
func I18n(cfg appconfig.I18nConfig) gin.HandlerFunc {
	translator, err := NewTranslator(cfg)
	if err != nil {
		// Locale files missing is not fatal for the kiosk; keys pass through.
		return func(c *gin.Context) {
			c.Set("language", cfg.DefaultLanguage)
			c.Next()
		}
	}

	return func(c *gin.Context) {
		lang := c.Query("lang")
		if lang == "" {
			if tags, _, err := language.ParseAcceptLanguage(c.GetHeader("Accept-Language")); err == nil && len(tags) > 0 {
				base, _ := tags[0].Base()
				lang = base.String()
			}
		}
		if !translator.languages[lang] {
			lang = cfg.DefaultLanguage
		}

		c.Set("language", lang)
		c.Set("translator", translator)
		c.Next()
	}
}

// TranslateFor resolves a message key using the translator stored in the
// request context. Handlers use it for user-facing workflow messages.
func TranslateFor(c *gin.Context, key string) string {
	lang := c.GetString("language")
	value, exists := c.Get("translator")
	if !exists {
		return key
	}
	translator, ok := value.(*Translator)
	if !ok {
		return key
	}
	return translator.Translate(lang, key)
}
