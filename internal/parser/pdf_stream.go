package parser

import (
	"bytes"
	"regexp"
	"strings"
)

// pdfStringRe matches PDF string literals in parentheses: (text here)
var pdfStringRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)

// streamText pulls text out of a decoded content stream. Text showing
// operators append to the current line; positioning operators and text
// object ends start a new one. Positive TJ kerning wider than a space
// becomes a space.
func streamText(data []byte) string {
	var lines []string
	var cur strings.Builder
	newline := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			lines = append(lines, s)
		}
		cur.Reset()
	}

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		switch {
		case bytes.HasSuffix(line, []byte("TJ")):
			showArray(&cur, line)
		case bytes.HasSuffix(line, []byte("Tj")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				cur.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) || bytes.HasSuffix(line, []byte(`"`)):
			newline()
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				cur.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")),
			bytes.HasSuffix(line, []byte("Tm")), bytes.Equal(line, []byte("T*")),
			bytes.Equal(line, []byte("ET")):
			if !movesRight(line) {
				newline()
			} else if cur.Len() > 0 {
				cur.WriteByte(' ')
			}
		}
	}
	newline()
	return strings.Join(lines, "\n")
}

// showArray handles [(a) -250 (b)] TJ.
func showArray(cur *strings.Builder, line []byte) {
	start := bytes.IndexByte(line, '[')
	end := bytes.LastIndexByte(line, ']')
	if start < 0 || end < start {
		return
	}
	body := line[start+1 : end]
	for len(body) > 0 {
		switch {
		case body[0] == '(':
			loc := pdfStringRe.FindSubmatchIndex(body)
			if loc == nil || loc[0] != 0 {
				return
			}
			cur.WriteString(decodePDFString(body[loc[2]:loc[3]]))
			body = body[loc[1]:]
		case body[0] == '-' || (body[0] >= '0' && body[0] <= '9') || body[0] == '.':
			i := 1
			for i < len(body) && (body[i] == '.' || (body[i] >= '0' && body[i] <= '9')) {
				i++
			}
			// Negative adjustments move right in text space.
			if body[0] == '-' && i > 1 && parseMagnitude(body[1:i]) > 200 {
				cur.WriteByte(' ')
			}
			body = body[i:]
		default:
			body = body[1:]
		}
	}
}

func parseMagnitude(b []byte) int {
	n := 0
	for _, c := range b {
		if c == '.' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// movesRight reports a "tx 0 Td" move on the same baseline.
func movesRight(line []byte) bool {
	f := bytes.Fields(line)
	if len(f) != 3 || !bytes.Equal(f[2], []byte("Td")) {
		return false
	}
	return string(f[1]) == "0" && !bytes.HasPrefix(f[0], []byte("-"))
}

// decodePDFString handles basic PDF escape sequences.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			// Octal escape (e.g. \040 for space).
			if raw[i] < '0' || raw[i] > '7' {
				sb.WriteByte(raw[i])
				continue
			}
			val := int(raw[i] - '0')
			for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		}
	}
	return sb.String()
}
