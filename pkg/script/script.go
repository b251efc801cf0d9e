// Package script runs YAML edit scripts through a CommandContext. Scripts
// describe schema and row edits, undo and redo, saves and expectations.
package script

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Ramsey-B/fern/pkg/validate"
)

// Definition represents a YAML script file
type Definition struct {
	Name        string                 `yaml:"name" validate:"required"`
	Description string                 `yaml:"description"`
	Steps       []map[string]yaml.Node `yaml:"steps" validate:"required,min=1"`
}

// Parse decodes and validates a script
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, errors.Wrap(err, "failed to parse YAML")
	}
	if _, err := validate.Struct(def); err != nil {
		return nil, err
	}
	return &def, nil
}

// Load reads a script from a file
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}
	return Parse(data)
}
