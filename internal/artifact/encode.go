package artifact

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"iconresolve/internal/resolver"
)

// Header is written above every encoded table.
const Header = "Code generated by iconresolve. DO NOT EDIT."

var ErrMalformed = errors.New("malformed icon table")

// Encode renders m as a YAML mapping in catalog order. Resolved entries carry
// a double-quoted variant, unresolved ones an explicit null.
func Encode(m *resolver.ResultMap) ([]byte, error) {
	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	m.Each(func(id string, r resolver.Result) {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: id}
		val := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
		if v, ok := r.Variant(); ok {
			val = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v, Style: yaml.DoubleQuotedStyle}
		}
		mapping.Content = append(mapping.Content, key, val)
	})
	doc := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: "# " + Header,
		Content:     []*yaml.Node{mapping},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode icon table: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode icon table: %w", err)
	}
	return buf.Bytes(), nil
}

// Table is a decoded icon table. Entries hold nil for absent variants.
type Table struct {
	Keys    []string
	Entries map[string]*string
}

func Decode(data []byte) (Table, error) {
	out := Table{Entries: map[string]*string{}}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return out, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return Table{}, fmt.Errorf("%w: top level is not a mapping", ErrMalformed)
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return Table{}, fmt.Errorf("%w: value for %q is not a scalar", ErrMalformed, k.Value)
		}
		if _, dup := out.Entries[k.Value]; dup {
			return Table{}, fmt.Errorf("%w: duplicate key %q", ErrMalformed, k.Value)
		}
		out.Keys = append(out.Keys, k.Value)
		if v.ShortTag() == "!!null" {
			out.Entries[k.Value] = nil
			continue
		}
		s := v.Value
		out.Entries[k.Value] = &s
	}
	return out, nil
}
