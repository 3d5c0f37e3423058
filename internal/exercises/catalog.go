// Package exercises maps exercise codes from the label stream to display names.
package exercises

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Exercise is one catalog entry.
type Exercise struct {
	Code int32  `yaml:"code" json:"code"`
	Name string `yaml:"name" json:"name"`
}

type document struct {
	Exercises []Exercise `yaml:"exercises"`
}

// Catalog is an immutable code -> name lookup.
type Catalog struct {
	names map[int32]string
}

// Empty returns a catalog without entries.
func Empty() *Catalog {
	return &Catalog{names: map[int32]string{}}
}

// Load reads a YAML catalog. An empty path yields an empty catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Empty(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read exercise catalog: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML catalog. Two shapes are accepted: a flat `code: name` mapping
// and an `exercises:` list of {code, name} entries. Blank input yields an empty catalog;
// any other document must contain at least one entry. Duplicate codes are rejected.
func Parse(raw []byte) (*Catalog, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("decode exercise catalog: %w", err)
	}
	if len(root.Content) == 0 {
		return Empty(), nil
	}
	body := root.Content[0]
	if body.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("decode exercise catalog: expected a mapping, got %s", body.ShortTag())
	}

	var entries []Exercise
	if hasKey(body, "exercises") {
		var doc document
		if err := body.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode exercise catalog: %w", err)
		}
		entries = doc.Exercises
	} else {
		var flat map[int32]string
		if err := body.Decode(&flat); err != nil {
			return nil, fmt.Errorf("decode exercise catalog: %w", err)
		}
		for code, name := range flat {
			entries = append(entries, Exercise{Code: code, Name: name})
		}
	}
	if len(entries) == 0 {
		return nil, errors.New("exercise catalog has no entries")
	}

	c := &Catalog{names: make(map[int32]string, len(entries))}
	for _, ex := range entries {
		if _, dup := c.names[ex.Code]; dup {
			return nil, fmt.Errorf("duplicate exercise code %d", ex.Code)
		}
		c.names[ex.Code] = ex.Name
	}
	return c, nil
}

func hasKey(mapping *yaml.Node, key string) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return true
		}
	}
	return false
}

// Name returns the display name for code, falling back to the bare code.
func (c *Catalog) Name(code int32) string {
	if name, ok := c.names[code]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("exercise %d", code)
}

// List returns every entry ordered by code.
func (c *Catalog) List() []Exercise {
	out := make([]Exercise, 0, len(c.names))
	for code, name := range c.names {
		out = append(out, Exercise{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
