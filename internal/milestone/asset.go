package milestone

import "fmt"

const (
	LocaleDE = "de"
	LocaleEN = "en"
)

// NormalizeLocale maps anything other than "en" to the default "de".
func NormalizeLocale(locale string) string {
	if locale == LocaleEN {
		return LocaleEN
	}
	return LocaleDE
}

func AssetPath(locale, imageKey string) string {
	return fmt.Sprintf("/images/achievements/achievement-%s-%s.webp", NormalizeLocale(locale), imageKey)
}
