// Package textscan holds the regular-expression helpers used to mine page text
// and free-form model output.
package textscan

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const (
	minPhoneDigits     = 7
	maxPriorityActions = 3
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`(\+?\d{1,4}[\s-]?)?(\(?\d{3}\)?[\s-]?)?[\d\s-]{7,}`)

	scorePattern     = regexp.MustCompile(`(?:SCORE|Score)[:\s]*(\d+)`)
	quickWinsPattern = regexp.MustCompile(`(?i)QUICK WINS?:([\s\S]*?)(?:\n\n|\n[A-Z]|$)`)
	priorityPattern  = regexp.MustCompile(`(?i)(?:#1|TOP|CRITICAL|PRIORITY)[\s\S]*?(?:\n\n|\n[A-Z]|$)`)
)

// HasEmail reports whether text contains something shaped like an email address.
func HasEmail(text string) bool {
	return emailPattern.MatchString(text)
}

// HasPhone reports whether text contains a phone-number-like run. Runs of
// whitespace and dashes match the raw pattern, so a candidate must also carry
// at least seven digits.
func HasPhone(text string) bool {
	for _, m := range phonePattern.FindAllString(text, -1) {
		if countDigits(m) >= minPhoneDigits {
			return true
		}
	}
	return false
}

// ExtractScore returns the first "SCORE: N" / "Score N" value in text.
func ExtractScore(text string) (int, bool) {
	m := scorePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ExtractQuickWins pulls the "QUICK WINS:" block out of each text, in order.
// Texts without one are skipped.
func ExtractQuickWins(texts []string) []string {
	wins := make([]string, 0, len(texts))
	for _, t := range texts {
		m := quickWinsPattern.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		wins = append(wins, strings.TrimSpace(m[1]))
	}
	return wins
}

// ExtractPriorityActions returns up to three paragraphs that start at a
// priority marker (#1, TOP, CRITICAL, PRIORITY).
func ExtractPriorityActions(text string) []string {
	matches := priorityPattern.FindAllString(text, -1)
	actions := make([]string, 0, maxPriorityActions)
	for _, m := range matches {
		if len(actions) == maxPriorityActions {
			break
		}
		actions = append(actions, strings.TrimSpace(m))
	}
	return actions
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
