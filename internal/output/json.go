package output

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// JSONFormatter renders the view's data as JSON.
type JSONFormatter struct {
	Indent bool
}

// Format renders view.Data as JSON.
func (f *JSONFormatter) Format(view *View) (string, error) {
	if view == nil {
		return "", nil
	}

	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(view.Data, "", "  ")
	} else {
		data, err = json.Marshal(view.Data)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// YAMLFormatter renders the view's data as YAML.
type YAMLFormatter struct{}

// Format renders view.Data as YAML.
func (f *YAMLFormatter) Format(view *View) (string, error) {
	if view == nil {
		return "", nil
	}
	data, err := yaml.Marshal(view.Data)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\n"), nil
}
