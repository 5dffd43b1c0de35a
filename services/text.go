package services

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// urlRegexp matches http(s) links up to the next whitespace
	urlRegexp = regexp.MustCompile(`https?://\S+`)
	// disallowedRegexp matches anything outside word characters, whitespace
	// and the punctuation a review sentence needs
	disallowedRegexp = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;:()\-"'’]`)
	ellipsisRegexp   = regexp.MustCompile(`\.{3,}`)
	bangRegexp       = regexp.MustCompile(`!{2,}`)
	questionRegexp   = regexp.MustCompile(`\?{2,}`)
)

var (
	positiveWords = []string{"good", "great", "excellent", "amazing", "love", "best", "perfect", "fantastic"}
	negativeWords = []string{"bad", "terrible", "awful", "hate", "worst", "horrible", "useless", "garbage"}
)

const (
	minSpamRunes      = 20
	minSpamWords      = 5
	minUniqueWordRate = 0.3
)

// cleanText normalizes one unified review text:
//
//	"Love it!!!  see https://x.co/a ... really??" → "Love it! see ... really?"
func cleanText(s string) string {
	s = normaliseText(s)
	s = urlRegexp.ReplaceAllString(s, "")
	s = disallowedRegexp.ReplaceAllString(s, " ")
	s = ellipsisRegexp.ReplaceAllString(s, "...")
	s = bangRegexp.ReplaceAllString(s, "!")
	s = questionRegexp.ReplaceAllString(s, "?")
	return normaliseText(s)
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

// isSpam flags very short or highly repetitive text.
func isSpam(text string) bool {
	if utf8.RuneCountInString(text) < minSpamRunes {
		return true
	}

	words := strings.Fields(strings.ToLower(text))
	if len(words) < minSpamWords {
		return true
	}

	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	return float64(len(unique))/float64(len(words)) < minUniqueWordRate
}

// countKeywords returns how many of the keywords occur in lower, each keyword
// counting at most once.
func countKeywords(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}
