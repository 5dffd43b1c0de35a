package services

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"urls and repeated punctuation", "Love it!!!  see https://x.co/a ... really??", "Love it! see ... really?"},
		{"disallowed characters", "It's “great” — 10/10 😀 price: $5 #1 @bob", "It's great 10 10 price: 5 1 bob"},
		{"bare url", "https://example.com/path?q=1", ""},
		{"long ellipsis", "Wait for it.... done", "Wait for it... done"},
		{"two dots kept", "ok.. fine", "ok.. fine"},
		{"bangs", "Wow!! nice!!!!", "Wow! nice!"},
		{"questions", "Why?? how???", "Why? how?"},
		{"allowed punctuation kept", `He said "fine"; (mostly): yes, no - maybe.`, `He said "fine"; (mostly): yes, no - maybe.`},
		{"whitespace collapsed", "  spaced \t out\nlines  ", "spaced out lines"},
		{"accented letters kept", "Très bien, ça marche", "Très bien, ça marche"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, cleanText(tt.in))
		})
	}
}

func TestCleanTextIsStable(t *testing.T) {
	for _, in := range []string{
		"Love it!!!  see https://x.co/a ... really??",
		"It's “great” — 10/10 😀 price: $5 #1 @bob",
	} {
		once := cleanText(in)
		require.Equal(t, once, cleanText(once))
	}
}

func TestIsSpam(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Too short", true},
		{"four words only here!!", true},
		{"spam spam spam spam spam spam spam spam spam spam", true},
		{"Blocked a nasty phishing page and stayed quiet otherwise.", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, isSpam(tt.text), tt.text)
	}
}

func TestCountKeywords(t *testing.T) {
	require.Equal(t, 2, countKeywords("great app, love it, great support", positiveWords))
	require.Equal(t, 0, countKeywords("it runs", positiveWords))
	require.Equal(t, 1, countKeywords("the worst renewal pricing", negativeWords))
}
