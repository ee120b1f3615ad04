// Package nlp infers a document's language and tags from its recognized text.
package nlp

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// UnknownLanguage is returned when the language cannot be determined
const UnknownLanguage = "unknown"

// LanguageDetector identifies the dominant language of a text
type LanguageDetector interface {
	DetectLanguage(text string) string
}

// WhatlangDetector implements LanguageDetector with whatlanggo trigram models
type WhatlangDetector struct {
	options whatlanggo.Options
}

// supportedLanguages maps the recognition candidate languages onto
// whatlanggo's identifiers
var supportedLanguages = map[string]whatlanggo.Lang{
	"en": whatlanggo.Eng,
	"fr": whatlanggo.Fra,
	"de": whatlanggo.Deu,
	"es": whatlanggo.Spa,
	"it": whatlanggo.Ita,
	"pt": whatlanggo.Por,
	"nl": whatlanggo.Nld,
}

// NewWhatlangDetector creates a detector. When locales such as "en-US" are
// given, detection is limited to the supported ones among them.
func NewWhatlangDetector(locales ...string) *WhatlangDetector {
	var opts whatlanggo.Options
	for _, locale := range locales {
		lang, ok := supportedLanguages[languageCode(locale)]
		if !ok {
			continue
		}
		if opts.Whitelist == nil {
			opts.Whitelist = make(map[whatlanggo.Lang]bool)
		}
		opts.Whitelist[lang] = true
	}
	return &WhatlangDetector{options: opts}
}

// DetectLanguage returns a short language code or UnknownLanguage
func (d *WhatlangDetector) DetectLanguage(text string) string {
	if strings.TrimSpace(text) == "" {
		return UnknownLanguage
	}
	return languageFrom(whatlanggo.DetectWithOptions(text, d.options))
}

// languageFrom accepts only reliable detections, so short or mixed text
// reads as unknown rather than a guess
func languageFrom(info whatlanggo.Info) string {
	if info.Lang < 0 || !info.IsReliable() {
		return UnknownLanguage
	}
	if code := info.Lang.Iso6391(); code != "" {
		return code
	}
	return UnknownLanguage
}

// languageCode reduces a locale such as "en-US" to its language part
func languageCode(locale string) string {
	code, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(locale)), "-")
	return code
}
