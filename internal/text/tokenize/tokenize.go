// Package tokenize splits Japanese/English text into script-class tokens.
//
// Input is NFKC-normalized and lower-cased, then each script class is matched
// independently: ideograph runs, hiragana runs, katakana runs and ASCII
// alphanumeric runs. Matches are concatenated in class order; everything else
// (punctuation, whitespace, symbols) is dropped.
package tokenize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var classes = []*regexp.Regexp{
	regexp.MustCompile(`[\p{Han}々〆]+`),
	regexp.MustCompile(`\p{Hiragana}+`),
	regexp.MustCompile(`[\p{Katakana}ー]+`),
	regexp.MustCompile(`[a-z0-9]+`),
}

// Normalize applies NFKC and lower-casing. Full-width digits and latin letters
// become ASCII, half-width katakana become full-width.
func Normalize(text string) string {
	return strings.ToLower(norm.NFKC.String(text))
}

// Tokenize returns all tokens in class order. Empty input yields an empty slice.
func Tokenize(text string) []string {
	out := []string{}
	if text == "" {
		return out
	}
	normalized := Normalize(text)
	for _, re := range classes {
		out = append(out, re.FindAllString(normalized, -1)...)
	}
	return out
}

// TokenizeUnique is Tokenize with duplicates removed, keeping first occurrence.
func TokenizeUnique(text string) []string {
	tokens := Tokenize(text)
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
