// Package jsonl reads and writes one JSON object per line.
package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgallion1/tocindex/internal/doctree"
)

// Write encodes each record on its own line.
func Write[T any](w io.Writer, records []T) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i := range records {
		if err := enc.Encode(records[i]); err != nil {
			return fmt.Errorf("encode record %d: %w", i+1, err)
		}
	}
	return bw.Flush()
}

// Read decodes records until EOF. Blank lines are skipped; errors name the
// 1-based line.
func Read[T any](r io.Reader) ([]T, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var out []T
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return out, nil
}

// WriteFile writes records to path, replacing any existing file.
func WriteFile[T any](path string, records []T) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// ReadFile reads records from path.
func ReadFile[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	out, err := Read[T](f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// ReadEntries loads section entries and checks that level, parent and
// display path agree with the identifier.
func ReadEntries(r io.Reader) ([]doctree.SectionEntry, error) {
	entries, err := Read[doctree.SectionEntry](r)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if err := checkEntry(&entries[i]); err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
	}
	return entries, nil
}

// ReadRecords loads content records with the same checks as ReadEntries.
func ReadRecords(r io.Reader) ([]doctree.ContentRecord, error) {
	recs, err := Read[doctree.ContentRecord](r)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if err := checkEntry(&recs[i].SectionEntry); err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		if recs[i].PageEnd < recs[i].PageStart {
			return nil, fmt.Errorf("record %d: page_end %d before page_start %d", i+1, recs[i].PageEnd, recs[i].PageStart)
		}
	}
	return recs, nil
}

// checkEntry fills derived fields absent from older exports and rejects
// values that contradict the identifier.
func checkEntry(e *doctree.SectionEntry) error {
	if !doctree.ValidIdentifier(e.Identifier) {
		return fmt.Errorf("invalid section_id %q", e.Identifier)
	}
	if e.Level == 0 {
		e.Level = doctree.Level(e.Identifier)
	}
	if e.Level != doctree.Level(e.Identifier) {
		return fmt.Errorf("section %s: level %d does not match identifier", e.Identifier, e.Level)
	}
	p := doctree.Parent(e.Identifier)
	if e.ParentID == "" {
		e.ParentID = p
	}
	if e.ParentID != p {
		return fmt.Errorf("section %s: parent_id %q, want %q", e.Identifier, e.ParentID, p)
	}
	if e.DisplayPath == "" {
		e.DisplayPath = doctree.DisplayPath(e.Identifier, e.Title)
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	return nil
}
