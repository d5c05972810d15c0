// Package classify recognises section-header candidates in single lines of
// text and merges titles that wrap across several lines.
package classify

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Header patterns. Capture groups are identifier, title and, when present, page.
var (
	DotLeaderPattern    = regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s+(.+?)\s*\.{2,}\s*(\d+)$`)
	TrailingPagePattern = regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s+(.+?)\s+(\d+)$`)
	BodyHeaderPattern   = regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s+(.+?)$`)

	identifierPrefix = regexp.MustCompile(`^\d+(?:\.\d+)*\.?\s`)
)

// MinLineLength is the shortest line considered for classification.
const MinLineLength = 5

// Candidate is a classified header line. Page is 0 when the matching
// pattern carries no page number.
type Candidate struct {
	Identifier string
	Title      string
	Page       int
}

// Classifier tries an ordered list of patterns against a line and returns
// the first match. Lines matching any Reject pattern are never candidates.
type Classifier struct {
	Patterns []*regexp.Regexp
	Reject   []*regexp.Regexp
	MinLen   int
	MaxLen   int // exclusive upper bound in runes; 0 disables
	Trim     func(string) string
}

// NewListing returns the classifier for listing rows: dot-leader rows first,
// then rows that merely end in a page number.
func NewListing() *Classifier {
	return &Classifier{
		Patterns: []*regexp.Regexp{DotLeaderPattern, TrailingPagePattern},
		MinLen:   MinLineLength,
		Trim:     TrimLeader,
	}
}

// NewBody returns the classifier for headers printed in body text. Lines of
// maxLen runes or more are body sentences. Dot-leader rows are listing rows
// reprinted in the body and are never treated as headers. Unlike NewListing
// there is no MinLineLength floor, so short headers such as "4 Bus" match.
func NewBody(maxLen int) *Classifier {
	return &Classifier{
		Patterns: []*regexp.Regexp{BodyHeaderPattern},
		Reject:   []*regexp.Regexp{DotLeaderPattern},
		MinLen:   1,
		MaxLen:   maxLen,
		Trim:     strings.TrimSpace,
	}
}

// Classify matches a normalised line. ok is false when no pattern matched
// or the title trimmed to nothing.
func (c *Classifier) Classify(line string) (cand Candidate, ok bool) {
	n := utf8.RuneCountInString(line)
	if n < c.MinLen || (c.MaxLen > 0 && n >= c.MaxLen) {
		return Candidate{}, false
	}
	for _, re := range c.Reject {
		if re.MatchString(line) {
			return Candidate{}, false
		}
	}
	for _, re := range c.Patterns {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		title := m[2]
		if c.Trim != nil {
			title = c.Trim(title)
		}
		if title == "" {
			continue
		}
		cand = Candidate{Identifier: m[1], Title: title}
		if len(m) > 3 {
			page, err := strconv.Atoi(m[3])
			if err != nil || page <= 0 {
				continue
			}
			cand.Page = page
		}
		return cand, true
	}
	return Candidate{}, false
}

// TrimLeader strips leftover dot leaders and surrounding whitespace.
func TrimLeader(title string) string {
	return strings.TrimSpace(strings.TrimRight(title, ". "))
}

// Normalize folds compatibility characters (ligatures, full-width digits),
// trims the line and collapses internal whitespace runs to one space.
func Normalize(line string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(line)), " ")
}

// StartsWithIdentifier reports whether line opens with a dotted numeric
// identifier followed by whitespace.
func StartsWithIdentifier(line string) bool {
	return identifierPrefix.MatchString(line)
}

// EndsInDigit reports whether the last byte of line is an ASCII digit.
func EndsInDigit(line string) bool {
	if line == "" {
		return false
	}
	b := line[len(line)-1]
	return b >= '0' && b <= '9'
}
