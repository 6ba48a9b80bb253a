package promptstore

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/zjrosen/conductor/internal/frontmatter"
)

// reservedKeys are the front-matter keys modeled explicitly on Prompt;
// every other key is preserved as an ExtraField.
var reservedKeys = map[string]bool{
	"number":       true,
	"title":        true,
	"status":       true,
	"dependencies": true,
	"attempts":     true,
}

var filenamePrefix = regexp.MustCompile(`^(\d+)-`)

// decode parses file content into a Prompt. path is recorded for later
// rewrites and is used to cross-check the filename-encoded number against
// the front-matter number, per the "exactly one file per number" invariant.
func decode(path string, content []byte) (*Prompt, error) {
	doc, err := frontmatter.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parse_error: %w", err)
	}

	p := &Prompt{Path: path, Body: doc.Body}

	number, ok := asInt(doc.Fields["number"])
	if !ok {
		return nil, fmt.Errorf("parse_error: missing or non-integer number field")
	}
	p.Number = number

	if m := filenamePrefix.FindStringSubmatch(filepath.Base(path)); m != nil {
		if fileNumber, _ := strconv.Atoi(m[1]); fileNumber != number {
			return nil, fmt.Errorf("parse_error: filename number %d does not match frontmatter number %d", fileNumber, number)
		}
	}

	title, _ := doc.Fields["title"].(string)
	p.Title = title

	status, _ := doc.Fields["status"].(string)
	p.Status = Status(status)
	if !p.Status.valid() {
		return nil, fmt.Errorf("parse_error: invalid status %q", status)
	}

	if deps, ok := doc.Fields["dependencies"].([]any); ok {
		for _, d := range deps {
			if n, ok := asInt(d); ok {
				p.Dependencies = append(p.Dependencies, n)
			}
		}
	}

	if attempts, ok := asInt(doc.Fields["attempts"]); ok {
		p.Attempts = attempts
	}

	for i := 0; i+1 < len(doc.Node.Content); i += 2 {
		key := doc.Node.Content[i].Value
		if reservedKeys[key] {
			continue
		}
		var val any
		if err := doc.Node.Content[i+1].Decode(&val); err == nil {
			p.Extra = append(p.Extra, ExtraField{Key: key, Value: val})
		}
	}

	return p, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	default:
		return 0, false
	}
}
