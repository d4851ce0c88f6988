package moderation

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
	"github.com/samber/lo"
)

// Detector guesses the language of an item
type Detector struct {
	detector lingua.LanguageDetector
}

// NewDetector builds a detector choosing among the given ISO 639-1 codes.
// With fewer than two known codes every supported language is considered.
func NewDetector(codes []string) *Detector {
	languages := lo.FilterMap(codes, func(code string, _ int) (lingua.Language, bool) {
		return isoToLingua(code)
	})
	if len(languages) < 2 {
		languages = lingua.AllLanguages()
	}

	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(languages...).
			WithMinimumRelativeDistance(0.25).
			Build(),
	}
}

// Detect returns the ISO 639-1 code of the text's language, or "" when no
// language stands out
func (d *Detector) Detect(text string) string {
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return linguaToISO(lang)
}

func linguaToISO(lang lingua.Language) string {
	return strings.ToLower(lang.IsoCode639_1().String())
}

func isoToLingua(code string) (lingua.Language, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	return lo.Find(lingua.AllLanguages(), func(lang lingua.Language) bool {
		return linguaToISO(lang) == code
	})
}
