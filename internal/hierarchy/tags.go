package hierarchy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Keyword maps a case-insensitive title substring to a tag.
type Keyword struct {
	Keyword string `yaml:"keyword"`
	Tag     string `yaml:"tag"`
}

// TagTable is an ordered keyword list. Tags are emitted in table order.
type TagTable []Keyword

// DefaultTags is the built-in keyword table.
var DefaultTags = TagTable{
	{"contract", "contracts"},
	{"negotiation", "negotiation"},
	{"device", "devices"},
	{"communication", "communication"},
	{"avoidance", "avoidance"},
	{"cable", "cable"},
	{"message", "messages"},
	{"partner", "partners"},
	{"policy", "policy"},
	{"power", "power"},
	{"voltage", "voltage"},
	{"source", "source"},
	{"sink", "sink"},
	{"protocol", "protocol"},
	{"data", "data"},
	{"control", "control"},
}

// Tags returns the tags whose keyword occurs in title, without repeats.
func (tt TagTable) Tags(title string) []string {
	lower := strings.ToLower(title)
	out := []string{}
	seen := make(map[string]bool)
	for _, k := range tt {
		if k.Keyword == "" || seen[k.Tag] {
			continue
		}
		if strings.Contains(lower, strings.ToLower(k.Keyword)) {
			seen[k.Tag] = true
			out = append(out, k.Tag)
		}
	}
	return out
}

type tagFile struct {
	Replace  bool      `yaml:"replace"`
	Keywords []Keyword `yaml:"keywords"`
}

// LoadTags reads a YAML keyword file. Unless the file sets replace: true its
// keywords are appended to base.
//
//	replace: false
//	keywords:
//	  - {keyword: pps, tag: programmable-power}
func LoadTags(path string, base TagTable) (TagTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tags file: %w", err)
	}
	var f tagFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tags file %s: %w", path, err)
	}
	for i, k := range f.Keywords {
		if strings.TrimSpace(k.Keyword) == "" || strings.TrimSpace(k.Tag) == "" {
			return nil, fmt.Errorf("tags file %s: entry %d needs keyword and tag", path, i+1)
		}
	}
	if f.Replace {
		return TagTable(f.Keywords), nil
	}
	out := make(TagTable, 0, len(base)+len(f.Keywords))
	out = append(out, base...)
	return append(out, f.Keywords...), nil
}
