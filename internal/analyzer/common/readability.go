package common

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// TextStats holds the counts the Flesch formulas are built from.
type TextStats struct {
	Words     int
	Sentences int
	Syllables int
}

var (
	sentenceEnd = regexp.MustCompile(`[.!?]+(?:\s|$)`)
	wordTrim    = func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }
)

// Analyze counts words, sentences and syllables in plain text. A sentence
// needs more than two words to count; there is always at least one sentence
// when there is at least one word.
func Analyze(text string) TextStats {
	var st TextStats
	for _, w := range strings.Fields(text) {
		w = strings.TrimFunc(w, wordTrim)
		if w == "" {
			continue
		}
		st.Words++
		st.Syllables += CountSyllables(w)
	}

	for _, s := range sentenceEnd.Split(text, -1) {
		if countWords(s) > 2 {
			st.Sentences++
		}
	}
	if st.Sentences == 0 && st.Words > 0 {
		st.Sentences = 1
	}
	return st
}

func countWords(s string) int {
	n := 0
	for _, w := range strings.Fields(s) {
		if strings.TrimFunc(w, wordTrim) != "" {
			n++
		}
	}
	return n
}

// FleschReadingEase scores text from roughly 0 (hard) to 100 (easy).
// ok is false for text without words.
func (st TextStats) FleschReadingEase() (score float64, ok bool) {
	if st.Words == 0 {
		return 0, false
	}
	asl := float64(st.Words) / float64(st.Sentences)
	asw := float64(st.Syllables) / float64(st.Words)
	return round2(206.835 - 1.015*asl - 84.6*asw), true
}

// FleschKincaidGrade maps text onto a U.S. school grade level.
// ok is false for text without words.
func (st TextStats) FleschKincaidGrade() (grade float64, ok bool) {
	if st.Words == 0 {
		return 0, false
	}
	asl := float64(st.Words) / float64(st.Sentences)
	asw := float64(st.Syllables) / float64(st.Words)
	return round2(0.39*asl + 11.8*asw - 15.59), true
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// CountSyllables estimates the syllables in an English word by counting
// vowel groups, discounting a silent trailing "e". Every word has at least
// one syllable.
func CountSyllables(word string) int {
	w := strings.ToLower(word)
	n := 0
	prevVowel := false
	for _, r := range w {
		v := isVowel(r)
		if v && !prevVowel {
			n++
		}
		prevVowel = v
	}
	if strings.HasSuffix(w, "e") && !strings.HasSuffix(w, "le") && !strings.HasSuffix(w, "ee") && n > 1 {
		n--
	}
	if n < 1 {
		n = 1
	}
	return n
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}
