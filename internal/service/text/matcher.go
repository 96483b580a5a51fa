package text

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"privacyblur/internal/model"
)

// MinTextRunes is the shortest extracted text that can match anything.
const MinTextRunes = 3

type pattern struct {
	name string
	re   *regexp.Regexp
}

var sensitivePatterns = []pattern{
	{name: "credit_card", re: regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`)},
	{name: "ssn", re: regexp.MustCompile(`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`)},
	{name: "email", re: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{name: "phone", re: regexp.MustCompile(`\b(?:\+\d{1,2}\s)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}\b`)},
}

// Matcher decides whether extracted text is sensitive.
type Matcher struct {
	patterns bool
}

// NewMatcher returns a keyword matcher. With patterns set it also reports
// card numbers, SSNs, e-mail addresses and phone numbers.
func NewMatcher(patterns bool) *Matcher {
	return &Matcher{patterns: patterns}
}

// Match checks text against keywords case-insensitively. Terms come back in
// keyword order, followed by any "pattern:<name>" hits.
func (m *Matcher) Match(text string, keywords []string) model.TextSensitivity {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinTextRunes {
		return model.TextSensitivity{}
	}

	lower := strings.ToLower(text)
	var terms []string
	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		needle := strings.ToLower(strings.TrimSpace(kw))
		if needle == "" || seen[needle] {
			continue
		}
		seen[needle] = true
		if strings.Contains(lower, needle) {
			terms = append(terms, kw)
		}
	}

	if m != nil && m.patterns {
		for _, p := range sensitivePatterns {
			if p.re.MatchString(text) {
				terms = append(terms, "pattern:"+p.name)
			}
		}
	}

	return model.TextSensitivity{Matched: len(terms) > 0, Terms: terms}
}
