// Package analyzer extracts tokens, keywords, intents and entities from a
// free-text grant search query. Analysis is pure and never fails.
package analyzer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/abckeishi-spec/keishi9-sub000/internal/domain/query"
	"github.com/abckeishi-spec/keishi9-sub000/internal/text/tokenize"
)

// Amount patterns in priority order. Compound "1億5000万" is tried first so the
// generic pattern does not stop at "1億".
var (
	compoundAmountRe = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s*億\s*(\d[\d,]*)\s*万\s*円?`)
	amountRe         = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s*(億|千万|百万|万|千)?\s*円`)
	bareAmountRe     = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s*(億|千万|百万|万)`)
)

var multipliers = map[string]float64{
	"":   1,
	"千":  1e3,
	"万":  1e4,
	"百万": 1e6,
	"千万": 1e7,
	"億":  1e8,
}

// Analyze never returns nil slices.
func Analyze(q string) query.Analysis {
	normalized := tokenize.Normalize(q)
	tokens := tokenize.Tokenize(q)
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = struct{}{}
	}

	a := query.Analysis{
		Original: q,
		Tokens:   tokens,
		Keywords: keywords(tokens),
		Intents:  intents(normalized, tokenSet),
		Entities: query.Entities{
			Amount:   ExtractAmount(normalized),
			Industry: lookupFirst(industryTable, normalized, tokenSet),
			Region:   lookupFirst(regionTable, normalized, tokenSet),
			Purpose:  lookupFirst(purposeTable, normalized, tokenSet),
		},
	}

	// An extracted entity implies the matching intent.
	implied := []struct {
		ok     bool
		intent query.Intent
	}{
		{a.Entities.HasAmount(), query.IntentAmount},
		{a.Entities.Industry != "", query.IntentIndustry},
		{a.Entities.Region != "", query.IntentRegion},
		{a.Entities.Purpose != "", query.IntentPurpose},
	}
	for _, im := range implied {
		if im.ok && !a.Has(im.intent) {
			a.Intents = append(a.Intents, im.intent)
		}
	}
	a.Intents = ordered(a.Intents)
	return a
}

func keywords(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if tokenize.IsStopWord(t) {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func intents(normalized string, tokenSet map[string]struct{}) []query.Intent {
	out := []query.Intent{}
	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if matches(kw, normalized, tokenSet) {
				out = append(out, rule.intent)
				break
			}
		}
	}
	return out
}

// ordered sorts intents into rule order so output is deterministic.
func ordered(in []query.Intent) []query.Intent {
	out := make([]query.Intent, 0, len(in))
	for _, rule := range intentRules {
		for _, i := range in {
			if i == rule.intent {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

func lookupFirst(table []lookup, normalized string, tokenSet map[string]struct{}) string {
	for _, row := range table {
		if matches(row.surface, normalized, tokenSet) {
			return row.canonical
		}
	}
	return ""
}

// matches tests ASCII keywords against whole tokens ("it" must not hit
// "submit") and everything else as a substring of the normalized query.
func matches(keyword, normalized string, tokenSet map[string]struct{}) bool {
	if isASCII(keyword) {
		_, ok := tokenSet[keyword]
		return ok
	}
	return strings.Contains(normalized, keyword)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// ExtractAmount returns the first yen amount found in normalized text, or 0.
func ExtractAmount(normalized string) float64 {
	if m := compoundAmountRe.FindStringSubmatch(normalized); m != nil {
		oku, ok1 := parseNumber(m[1])
		man, ok2 := parseNumber(m[2])
		if ok1 && ok2 {
			return oku*1e8 + man*1e4
		}
	}
	if m := amountRe.FindStringSubmatch(normalized); m != nil {
		if n, ok := parseNumber(m[1]); ok {
			return n * multipliers[m[2]]
		}
	}
	if m := bareAmountRe.FindStringSubmatch(normalized); m != nil {
		if n, ok := parseNumber(m[1]); ok {
			return n * multipliers[m[2]]
		}
	}
	return 0
}

func parseNumber(s string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
