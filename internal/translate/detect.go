package translate

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
	"golang.org/x/text/language"
)

// minDetectLength avoids guessing on headlines of two or three words.
const minDetectLength = 40

// LanguageDetector guesses the language of translated text.
type LanguageDetector struct {
	detector lingua.LanguageDetector
}

func NewLanguageDetector() *LanguageDetector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		Build()

	return &LanguageDetector{detector: detector}
}

// DetectISO returns the ISO 639-1 code of text, lowercased.
func (d *LanguageDetector) DetectISO(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

// sameBaseLanguage compares the base language of two tags, so "pt-br" and
// "pt" match.
func sameBaseLanguage(a, b string) bool {
	ta, err := language.Parse(a)
	if err != nil {
		return strings.EqualFold(a, b)
	}
	tb, err := language.Parse(b)
	if err != nil {
		return strings.EqualFold(a, b)
	}
	ba, _ := ta.Base()
	bb, _ := tb.Base()
	return ba == bb
}
