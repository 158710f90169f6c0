// Package tokenizer provides text tokenisation for the listing search engine.
// It lower-cases input, splits on a fixed punctuation/whitespace class, and
// further splits Japanese text where kana meets kanji so that compound
// listing names ("東京マンション") yield separately searchable terms without a
// dictionary.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Japanese function words dropped when Options.RemoveStopWords is set.
var stopWords = map[string]struct{}{
	"の": {}, "に": {}, "は": {}, "を": {}, "た": {}, "が": {}, "で": {},
	"て": {}, "と": {}, "し": {}, "れ": {}, "さ": {}, "ある": {}, "いる": {},
	"も": {}, "する": {}, "から": {}, "な": {}, "こと": {}, "として": {},
	"い": {}, "や": {}, "れる": {}, "など": {}, "なっ": {}, "ない": {},
	"この": {}, "ため": {}, "その": {}, "あっ": {}, "よう": {}, "また": {},
	"もの": {}, "という": {}, "あり": {}, "まで": {}, "られ": {}, "なる": {},
	"へ": {}, "か": {}, "だ": {}, "これ": {}, "によって": {}, "により": {},
	"おり": {}, "より": {}, "による": {}, "ず": {}, "なり": {}, "られる": {},
	"において": {}, "ば": {}, "なかっ": {}, "なく": {}, "しかし": {},
	"について": {}, "せ": {}, "だっ": {}, "できる": {}, "それ": {}, "う": {},
	"ので": {}, "なお": {}, "のみ": {}, "でき": {}, "き": {}, "つ": {},
	"における": {}, "および": {}, "いう": {}, "さらに": {}, "でも": {},
	"ら": {}, "たり": {}, "ます": {}, "ん": {}, "なら": {}, "です": {},
	"ほど": {}, "とも": {}, "ところ": {}, "ここ": {}, "または": {}, "お": {},
}

// separators is the fixed character class tokens are split on, in addition
// to Unicode white space.
const separators = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~" +
	"、。，．・：；？！゛゜´｀¨＾￣＿／＼～∥｜…‥‘’“”（）〔〕［］｛｝〈〉《》「」『』【】＋－±×÷＝≠＜＞"

// Options controls token normalisation.
type Options struct {
	// MinLength drops tokens with fewer runes. Values below 1 mean 1.
	MinLength int
	// Lowercase folds tokens to lower case.
	Lowercase bool
	// RemoveStopWords drops Japanese function words.
	RemoveStopWords bool
	// Normalize applies Unicode NFKC before anything else, folding
	// full-width Latin and half-width katakana to their canonical forms.
	Normalize bool
}

// DefaultOptions returns the options used for query tokenisation.
func DefaultOptions() Options {
	return Options{MinLength: 1, Lowercase: true}
}

// Tokenize breaks text into normalised terms in document order. Duplicates
// are kept so callers can count occurrences.
func Tokenize(text string, opts Options) []string {
	if text == "" {
		return []string{}
	}
	minLength := opts.MinLength
	if minLength < 1 {
		minLength = 1
	}
	if opts.Normalize {
		text = norm.NFKC.String(text)
	}
	if opts.Lowercase {
		text = strings.ToLower(text)
	}
	chunks := strings.FieldsFunc(text, isSeparator)
	tokens := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		for _, word := range splitScripts(chunk) {
			if utf8.RuneCountInString(word) < minLength {
				continue
			}
			if opts.RemoveStopWords {
				if _, isStop := stopWords[word]; isStop {
					continue
				}
			}
			tokens = append(tokens, word)
		}
	}
	return tokens
}

// NGrams returns every contiguous run of n runes in text. Text shorter than
// n yields a single gram holding the whole text.
func NGrams(text string, n int) []string {
	if text == "" || n < 1 {
		return []string{}
	}
	runes := []rune(text)
	if len(runes) <= n {
		return []string{text}
	}
	grams := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+n]))
	}
	return grams
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(separators, r)
}

type script int

const (
	scriptOther script = iota
	scriptKana
	scriptKanji
)

func classify(r rune) script {
	switch {
	case r >= 0x3040 && r <= 0x30FF:
		return scriptKana
	case r >= 0x4E00 && r <= 0x9FAF:
		return scriptKanji
	default:
		return scriptOther
	}
}

// splitScripts cuts a chunk wherever a kana rune is directly followed by a
// kanji rune or the reverse. Transitions involving any other script do not
// split.
func splitScripts(chunk string) []string {
	var parts []string
	start := 0
	prev := scriptOther
	for i, r := range chunk {
		cur := classify(r)
		if i > 0 && isBoundary(prev, cur) {
			parts = append(parts, chunk[start:i])
			start = i
		}
		prev = cur
	}
	return append(parts, chunk[start:])
}

func isBoundary(prev, cur script) bool {
	return (prev == scriptKana && cur == scriptKanji) ||
		(prev == scriptKanji && cur == scriptKana)
}
