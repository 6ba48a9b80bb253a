// Package frontmatter is the single canonical parser for YAML-front-matter
// markdown files. Both the prompt store and the schema validator hook call
// into this package so there is exactly one place that understands the
// `---\n ... \n---\n` delimiter rules — two parallel parsers reading the
// same file shape is the kind of drift this package exists to prevent.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrNoFrontmatter is returned when content does not open with a
// frontmatter block at all.
var ErrNoFrontmatter = errors.New("frontmatter: content has no frontmatter block")

const delimiter = "---\n"

// Document is a parsed frontmatter file: an ordered YAML mapping plus the
// markdown body that follows the closing delimiter.
type Document struct {
	// Node is the parsed YAML mapping node, preserving key order so a
	// rewrite can round-trip unknown keys untouched.
	Node *yaml.Node
	// Fields is the same mapping decoded into a generic map, for
	// validation and field lookups.
	Fields map[string]any
	Body   string
}

// Parse splits content into a frontmatter mapping and a body. content must
// begin with "---\n" and contain a closing "---" delimiter, and the
// interior must parse as a YAML mapping. The canonical writer always emits
// the closing delimiter followed by a newline ("\n---\n"), but readers must
// recognize both forms for tolerance: a closing delimiter followed by a
// newline (the body, possibly empty, follows), and a closing delimiter with
// no trailing newline at all, i.e. the file ends exactly at "---".
func Parse(content []byte) (*Document, error) {
	if !bytes.HasPrefix(content, []byte(delimiter)) {
		return nil, ErrNoFrontmatter
	}

	rest := content[len(delimiter):]

	yamlPart, body, ok := splitClosingDelimiter(rest)
	if !ok {
		return nil, fmt.Errorf("frontmatter: missing closing delimiter")
	}

	var node yaml.Node
	if len(bytes.TrimSpace(yamlPart)) > 0 {
		if err := yaml.Unmarshal(yamlPart, &node); err != nil {
			return nil, fmt.Errorf("frontmatter: invalid yaml: %w", err)
		}
	}

	mapping := mappingNode(&node)
	if mapping == nil {
		return nil, fmt.Errorf("frontmatter: content is not a yaml mapping")
	}

	var fields map[string]any
	if err := mapping.Decode(&fields); err != nil {
		return nil, fmt.Errorf("frontmatter: decoding mapping: %w", err)
	}
	if fields == nil {
		fields = map[string]any{}
	}

	return &Document{Node: mapping, Fields: fields, Body: string(body)}, nil
}

// splitClosingDelimiter locates the "---" that closes the frontmatter block
// within rest (the content after the opening "---\n"), accepting both
// "\n---\n<body>" and a bare "\n---" at end of file with no trailing
// newline and no body. It returns the yaml interior and the body, or
// ok = false if no closing delimiter is found.
func splitClosingDelimiter(rest []byte) (yamlPart, body []byte, ok bool) {
	const marker = "\n---"
	searchFrom := 0
	for {
		idx := bytes.Index(rest[searchFrom:], []byte(marker))
		if idx < 0 {
			return nil, nil, false
		}
		markerStart := searchFrom + idx
		afterMarker := markerStart + len(marker)

		switch {
		case afterMarker == len(rest):
			// "---" sits at end of file with no trailing newline.
			return rest[:markerStart+1], nil, true
		case rest[afterMarker] == '\n':
			return rest[:markerStart+1], rest[afterMarker+1:], true
		default:
			// A run of more than three dashes, or "---" mid-line; not a
			// genuine closing delimiter. Keep looking further in.
			searchFrom = markerStart + 1
		}
	}
}

// mappingNode unwraps a parsed yaml.Node down to its top-level mapping,
// handling the DocumentNode wrapper yaml.Unmarshal produces.
func mappingNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		return mappingNode(n.Content[0])
	}
	if n.Kind == yaml.MappingNode {
		return n
	}
	return nil
}

// Render re-encodes node as a frontmatter block followed by body, in the
// canonical byte-exact layout: "---\n" + yaml + "---\n" + body.
func Render(node *yaml.Node, body string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(delimiter)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("frontmatter: encoding yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("frontmatter: closing encoder: %w", err)
	}

	buf.WriteString(delimiter)
	buf.WriteString(body)

	return buf.Bytes(), nil
}

// SetField replaces or inserts key's scalar value in node, preserving the
// position and order of all other keys.
func SetField(node *yaml.Node, key string, value string) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			node.Content[i+1].Kind = yaml.ScalarNode
			node.Content[i+1].Value = value
			node.Content[i+1].Tag = "!!str"
			if isIntLike(value) {
				node.Content[i+1].Tag = "!!int"
			}
			return
		}
	}

	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
	valNode := &yaml.Node{Kind: yaml.ScalarNode, Value: value, Tag: "!!str"}
	if isIntLike(value) {
		valNode.Tag = "!!int"
	}
	node.Content = append(node.Content, keyNode, valNode)
}

func isIntLike(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '-' && i == 0 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
