package policy

import (
	"bytes"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// ParseTable parses a permission document: a JSON or YAML mapping of group
// name to a list of tokens.
//
//	{"admin": ["*"], "developers": ["list", "read"], "guest": ["list"]}
//
// An empty document yields an empty table. A document that is not a mapping
// returns ErrInvalidDocument. Entries whose value is not a list of strings
// are left out and reported by Table.Skipped. A repeated group keeps its
// last entry.
func ParseTable(data []byte) (*Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return NewTable(nil), nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return NewTable(nil), nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: expected a mapping at the top level", ErrInvalidDocument)
	}

	entries := make(map[string][]string, len(root.Content)/2)
	bad := make(map[string]bool)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			continue
		}
		group := key.Value

		tokens, ok := decodeTokens(value)
		if !ok {
			delete(entries, group)
			bad[group] = true
			continue
		}
		delete(bad, group)
		entries[group] = tokens
	}

	t := NewTable(entries)
	for group := range bad {
		t.skipped = append(t.skipped, group)
	}
	sort.Strings(t.skipped)
	return t, nil
}

// decodeTokens accepts a sequence of string scalars. Null counts as an empty
// list.
func decodeTokens(n *yaml.Node) ([]string, bool) {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil, true
	}
	if n.Kind != yaml.SequenceNode {
		return nil, false
	}
	tokens := make([]string, 0, len(n.Content))
	for _, item := range n.Content {
		if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
			return nil, false
		}
		tokens = append(tokens, item.Value)
	}
	return tokens, true
}
