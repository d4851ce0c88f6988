// Package moderation screens authored items before they are stored
package moderation

import (
	"errors"
	"strings"
	"unicode"
)

var (
	ErrTooShort      = errors.New("text is too short")
	ErrTooFewLetters = errors.New("text has too few letters")
	ErrRepetitive    = errors.New("text is repetitive")
	ErrSpam          = errors.New("text looks like spam")
)

// MinWords is the fewest words an item may have
const MinWords = 2

// Check returns the first reason the text should be rejected, or nil
func Check(text string) error {
	if len(strings.Fields(text)) < MinWords {
		return ErrTooShort
	}
	if !HasEnoughLetters(text) {
		return ErrTooFewLetters
	}
	if IsRepetitive(text) {
		return ErrRepetitive
	}
	if IsSpam(text) {
		return ErrSpam
	}
	return nil
}

// HasEnoughLetters reports whether more than 30% of the runes are letters
func HasEnoughLetters(text string) bool {
	total, letters := 0, 0
	for _, r := range text {
		total++
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if total == 0 {
		return false
	}
	return float64(letters)/float64(total) > 0.30
}

const (
	zeroWidthJoiner   = '\u200d'
	variationSelector = '\ufe0f'
)

// symbols splits text into user-perceived symbols: a rune plus any combining
// marks, variation selectors and zero-width-joined runes that follow it
func symbols(text string) []string {
	var out []string
	var current []rune
	joinNext := false
	for _, r := range text {
		switch {
		case len(current) == 0:
			current = append(current, r)
		case joinNext || unicode.Is(unicode.Mn, r) || r == zeroWidthJoiner || r == variationSelector:
			current = append(current, r)
		default:
			out = append(out, string(current))
			current = []rune{r}
		}
		joinNext = r == zeroWidthJoiner
	}
	if len(current) > 0 {
		out = append(out, string(current))
	}
	return out
}

// IsRepetitive detects a symbol repeated four times in a row, or a short
// sequence repeated back to back. Case and whitespace are ignored.
func IsRepetitive(text string) bool {
	syms := symbols(strings.ToLower(strings.Join(strings.Fields(text), "")))
	if len(syms) < 4 {
		return false
	}

	run := 1
	for i := 1; i < len(syms); i++ {
		if syms[i] == syms[i-1] {
			run++
			if run >= 4 {
				return true
			}
		} else {
			run = 1
		}
	}

	for size := 2; size <= 8; size++ {
		// Longer sequences need fewer repeats to count
		minRepeats := 4
		if size >= 4 {
			minRepeats = 3
		}

		for start := 0; start+size*minRepeats <= len(syms); start++ {
			repeats := 1
			for next := start + size; next+size <= len(syms) && equal(syms[start:start+size], syms[next:next+size]); next += size {
				repeats++
			}
			if repeats >= minRepeats {
				return true
			}
		}
	}

	return false
}

func equal(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var spamPhrases = []string{
	"onlyfans.com",
	"join my vip",
	"subscribe to my",
	"check my profile",
	"check my bio",
	"link in bio",
	"follow me",
	"follow back",
	"follow for follow",
	"f4f",
	"porn",
	"xxx",
	"nsfw",
	"18+",
}

// IsSpam looks for known spam phrases and for hashtag, mention or emoji stuffing
func IsSpam(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range spamPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}

	emoji := 0
	for _, r := range text {
		if r >= 0x1F300 {
			emoji++
		}
	}
	if emoji > 8 {
		return true
	}

	hashtags := strings.Count(text, "#")
	mentions := strings.Count(text, "@")
	if hashtags > 5 || mentions > 5 {
		return true
	}
	if strings.Contains(text, "##") || strings.Contains(text, "@@") {
		return true
	}

	words := len(strings.Fields(text))
	return words > 0 && float64(hashtags+mentions)/float64(words) > 0.5
}
