package tokenize

// stopWords are function words and filler that carry no search signal.
var stopWords = map[string]struct{}{
	"の": {}, "は": {}, "が": {}, "を": {}, "に": {}, "へ": {}, "と": {}, "で": {}, "や": {},
	"も": {}, "か": {}, "な": {}, "ね": {}, "よ": {}, "から": {}, "まで": {}, "より": {},
	"です": {}, "ます": {}, "でしょう": {}, "ください": {}, "いつ": {}, "どこ": {}, "なに": {},
	"どれ": {}, "どの": {}, "これ": {}, "それ": {}, "あれ": {}, "この": {}, "その": {},
	"について": {}, "とは": {}, "って": {}, "はいつ": {}, "ですか": {}, "ありますか": {},
	"a": {}, "an": {}, "the": {}, "of": {}, "for": {}, "and": {}, "or": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "what": {}, "when": {}, "how": {},
}

// IsStopWord reports whether a normalized token is a stop word.
func IsStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}
