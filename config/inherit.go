package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// assemble reads the config file at path and resolves its `inherit` chain.
// Parents are merged in the order they are listed, then the file itself is
// merged on top. Mapping values merge key by key; anything else replaces
// the inherited value. A mapping may list keys under `uninherit` to drop
// them from what its parents provided.
func assemble(path string, visiting map[string]bool) (*yaml.Node, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	if visiting[abs] {
		return nil, fmt.Errorf("%w: inheritance cycle through %s", ErrInvalid, path)
	}
	visiting[abs] = true
	defer delete(visiting, abs)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	body := documentBody(&doc)
	if body == nil {
		body = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}
	if body.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: %s is not a mapping", ErrInvalid, path)
	}

	result := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if inherit := popKey(body, "inherit"); inherit != nil {
		for _, parent := range scalars(inherit) {
			parentPath := parent
			if !filepath.IsAbs(parentPath) {
				parentPath = filepath.Join(filepath.Dir(path), parent)
			}
			node, err := assemble(parentPath, visiting)
			if err != nil {
				return nil, fmt.Errorf("inheriting %s: %w", parent, err)
			}
			mergeNodes(result, node)
		}
	}
	mergeNodes(result, body)
	return result, nil
}

// mergeNodes merges the mapping src into the mapping dst in place.
func mergeNodes(dst, src *yaml.Node) {
	if dst == nil || src == nil || dst.Kind != yaml.MappingNode || src.Kind != yaml.MappingNode {
		return
	}
	if uninherit := popKey(src, "uninherit"); uninherit != nil {
		for _, key := range scalars(uninherit) {
			popKey(dst, key)
		}
	}
	for i := 0; i+1 < len(src.Content); i += 2 {
		key, val := src.Content[i], src.Content[i+1]
		existing := lookup(dst, key.Value)
		switch {
		case existing == nil:
			dst.Content = append(dst.Content, key, val)
		case existing.Kind == yaml.MappingNode && val.Kind == yaml.MappingNode:
			mergeNodes(existing, val)
		default:
			*existing = *val
		}
	}
}

// clearUninherit drops leftover `uninherit` keys that had nothing to apply to.
func clearUninherit(n *yaml.Node) {
	if n == nil || n.Kind != yaml.MappingNode {
		return
	}
	popKey(n, "uninherit")
	for i := 1; i < len(n.Content); i += 2 {
		clearUninherit(n.Content[i])
	}
}

func documentBody(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return nil
		}
		return doc.Content[0]
	}
	if doc.Kind == 0 {
		return nil
	}
	return doc
}

func lookup(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func popKey(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			val := m.Content[i+1]
			m.Content = append(m.Content[:i], m.Content[i+2:]...)
			return val
		}
	}
	return nil
}

// scalars reads a scalar or a sequence of scalars.
func scalars(n *yaml.Node) []string {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil
		}
		return []string{n.Value}
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind == yaml.ScalarNode {
				out = append(out, c.Value)
			}
		}
		return out
	}
	return nil
}
