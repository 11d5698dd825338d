// Package i18n renders user-facing check-in messages in the scanner's language.
package i18n

import (
	"embed"
	"fmt"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

//go:embed active.*.toml
var localeFS embed.FS

var localeFiles = []string{"active.en.toml", "active.id.toml"}

// Translator wraps a go-i18n bundle with a default language.
type Translator struct {
	bundle          *i18n.Bundle
	defaultLanguage language.Tag
	logger          *zap.Logger
}

// New builds a Translator from the embedded locale files. An unparsable default falls back to English.
func New(defaultLocale string, logger *zap.Logger) (*Translator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tag, err := language.Parse(defaultLocale)
	if err != nil {
		tag = language.English
	}
	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	for _, file := range localeFiles {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}
	return &Translator{bundle: bundle, defaultLanguage: tag, logger: logger}, nil
}

// T renders message key for an Accept-Language value. Unknown keys render as the key itself.
func (t *Translator) T(acceptLanguage, key string) string {
	if key == "" {
		return ""
	}
	langs := []string{}
	if acceptLanguage != "" {
		langs = append(langs, acceptLanguage)
	}
	langs = append(langs, t.defaultLanguage.String())

	msg, err := i18n.NewLocalizer(t.bundle, langs...).Localize(&i18n.LocalizeConfig{MessageID: key})
	if err != nil {
		t.logger.Warn("localize failed", zap.String("key", key), zap.Strings("langs", langs), zap.Error(err))
		return key
	}
	return msg
}
