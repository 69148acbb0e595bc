package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/schema"
)

//go:embed schemas/config.schema.json
var configSchema []byte

// ValidateFile checks a user config file against the config schema and returns one
// message per violation. An error means the file could not be read or parsed.
func ValidateFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return ValidateDocument(path, data)
}

// ValidateDocument validates YAML config bytes; name is only used in errors.
func ValidateDocument(name string, data []byte) ([]string, error) {
	doc, err := decodeYAML(name, data)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode config %s: %w", name, err)
	}

	validator, err := schema.NewValidator(configSchema)
	if err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	diagnostics, err := validator.ValidateJSON(payload)
	if err != nil {
		return nil, err
	}

	problems := make([]string, 0, len(diagnostics))
	for _, d := range diagnostics {
		problems = append(problems, d.Message)
	}
	return problems, nil
}
