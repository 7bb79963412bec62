// Package i18n resolves the visitor's locale (de or en) and looks up UI strings.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

const (
	DE = "de"
	EN = "en"
)

var matcher = language.NewMatcher([]language.Tag{language.German, language.English})

// Resolve picks the locale from an explicit choice (query or cookie) first,
// then the Accept-Language header, falling back to German.
func Resolve(explicit, acceptLanguage string) string {
	switch strings.ToLower(strings.TrimSpace(explicit)) {
	case DE:
		return DE
	case EN:
		return EN
	}
	if acceptLanguage == "" {
		return DE
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return DE
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return DE
	}
	if index == 1 {
		return EN
	}
	return DE
}

type Bundle struct {
	messages map[string]map[string]string
}

func NewBundle() *Bundle {
	return &Bundle{messages: map[string]map[string]string{DE: german, EN: english}}
}

// T returns the message for key, or the key itself when it is missing.
func (b *Bundle) T(locale, key string) string {
	if msgs, ok := b.messages[locale]; ok {
		if msg, ok := msgs[key]; ok {
			return msg
		}
	}
	if msg, ok := b.messages[DE][key]; ok {
		return msg
	}
	return key
}

func (b *Bundle) Func(locale string) func(string) string {
	return func(key string) string { return b.T(locale, key) }
}
