package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileSchema is the on-disk entity declaration format.
type fileSchema struct {
	Entities []entityDecl `yaml:"entities"`
}

type entityDecl struct {
	Name      string            `yaml:"name"`
	Table     string            `yaml:"table"`
	Columns   []string          `yaml:"columns"`
	Relations map[string]string `yaml:"relations"`
}

// LoadFile builds a Registry from a YAML entity declaration file.
// Relations reference entities by name and are resolved after every entity
// is registered, so mutually referencing (cyclic) declarations are valid.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return Load(data)
}

// Load builds a Registry from YAML entity declarations.
func Load(data []byte) (*Registry, error) {
	var file fileSchema
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse schema file: %w", err)
	}

	registry := NewRegistry()
	decls := make(map[string]entityDecl, len(file.Entities))

	for _, decl := range file.Entities {
		if decl.Name == "" {
			return nil, fmt.Errorf("entity declaration missing name")
		}
		table := decl.Table
		if table == "" {
			table = decl.Name
		}
		if len(decl.Columns) == 0 {
			return nil, fmt.Errorf("entity %q declares no columns", decl.Name)
		}
		if _, dup := decls[decl.Name]; dup {
			return nil, fmt.Errorf("entity %q declared twice", decl.Name)
		}
		decls[decl.Name] = decl
		registry.Register(decl.Name, NewMetadata(table, decl.Columns...))
	}

	// Second pass: wire relations once all targets exist.
	for name, decl := range decls {
		meta, _ := registry.Metadata(name)
		for relName, targetEntity := range decl.Relations {
			target, ok := registry.Metadata(targetEntity)
			if !ok {
				return nil, fmt.Errorf("entity %q relation %q references unknown entity %q", name, relName, targetEntity)
			}
			meta.AddRelation(relName, target)
		}
	}

	return registry, nil
}
