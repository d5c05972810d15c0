package classify

import "strings"

// Buffer merges wrapped listing titles. Lines without a trailing numeral are
// held; the next line ending in a numeral flushes the held text together
// with itself as one classification attempt.
type Buffer struct {
	c         *Classifier
	pending   []string
	found     []Candidate
	unmatched []string
}

// NewBuffer returns a buffer that classifies with c.
func NewBuffer(c *Classifier) *Buffer {
	return &Buffer{c: c}
}

// Feed consumes one raw line. Blank lines are ignored.
func (b *Buffer) Feed(raw string) {
	line := Normalize(raw)
	if line == "" {
		return
	}
	if !EndsInDigit(line) {
		// A new numbered row closes whatever was held before it.
		if len(b.pending) > 0 && StartsWithIdentifier(line) {
			held := strings.Join(b.pending, " ")
			b.pending = b.pending[:0]
			b.attempt(held)
		}
		b.pending = append(b.pending, line)
		return
	}
	if len(b.pending) == 0 {
		b.attempt(line)
		return
	}
	held := strings.Join(b.pending, " ")
	b.pending = b.pending[:0]
	combined := held + " " + line
	if cand, ok := b.c.Classify(combined); ok {
		b.found = append(b.found, cand)
		return
	}
	// Held text that was not a title prefix (a running header, the listing
	// caption) must not swallow a row that classifies on its own.
	if cand, ok := b.c.Classify(line); ok {
		b.unmatched = append(b.unmatched, held)
		b.found = append(b.found, cand)
		return
	}
	b.unmatched = append(b.unmatched, combined)
}

// Flush classifies any held text. Call once at end of input.
func (b *Buffer) Flush() {
	if len(b.pending) == 0 {
		return
	}
	held := strings.Join(b.pending, " ")
	b.pending = b.pending[:0]
	b.attempt(held)
}

func (b *Buffer) attempt(text string) {
	if cand, ok := b.c.Classify(text); ok {
		b.found = append(b.found, cand)
		return
	}
	b.unmatched = append(b.unmatched, text)
}

// Candidates returns the classified headers in input order.
func (b *Buffer) Candidates() []Candidate { return b.found }

// Unmatched returns input text that could not be classified.
func (b *Buffer) Unmatched() []string { return b.unmatched }

// ClassifyLines runs lines through a fresh buffer and flushes it.
func ClassifyLines(c *Classifier, lines []string) ([]Candidate, []string) {
	b := NewBuffer(c)
	for _, l := range lines {
		b.Feed(l)
	}
	b.Flush()
	return b.Candidates(), b.Unmatched()
}
