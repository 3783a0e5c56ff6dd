package value

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAML tags understood by FromYAML in addition to the core schema.
const (
	YAMLTagSet       = "!set"
	YAMLTagUndefined = "!undefined"
)

// FromYAML decodes a YAML node into a Value. Sequences tagged !set become
// Sets and a node tagged !undefined becomes Undefined; .nan and .inf
// scalars decode to the IEEE values.
func FromYAML(node *yaml.Node) (Value, error) {
	return fromYAML(node, 0)
}

func fromYAML(node *yaml.Node, depth int) (Value, error) {
	if node == nil {
		return Undefined{}, nil
	}
	if depth > maxDepth {
		return nil, fmt.Errorf("line %d: value nested too deeply", node.Line)
	}

	if node.Tag == YAMLTagUndefined {
		return Undefined{}, nil
	}

	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return Undefined{}, nil
		}
		return fromYAML(node.Content[0], depth)

	case yaml.AliasNode:
		return fromYAML(node.Alias, depth+1)

	case yaml.SequenceNode:
		items := make([]Value, len(node.Content))
		for i, child := range node.Content {
			v, err := fromYAML(child, depth+1)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		if node.Tag == YAMLTagSet {
			return Set(items), nil
		}
		return List(items), nil

	case yaml.MappingNode:
		out := make(Map, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var key string
			if err := node.Content[i].Decode(&key); err != nil {
				return nil, fmt.Errorf("line %d: map key: %w", node.Content[i].Line, err)
			}
			v, err := fromYAML(node.Content[i+1], depth+1)
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
		return out, nil

	case yaml.ScalarNode:
		var raw any
		if err := node.Decode(&raw); err != nil {
			return nil, fmt.Errorf("line %d: scalar: %w", node.Line, err)
		}
		return FromGo(raw), nil
	}

	return nil, fmt.Errorf("line %d: unsupported YAML node kind %d", node.Line, node.Kind)
}
