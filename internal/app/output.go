package app

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Encode writes each document to w in the given format. JSON documents are
// indented and newline separated; YAML documents are separated by "---".
func Encode(w io.Writer, format string, docs ...any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		for _, doc := range docs {
			if err := enc.Encode(doc); err != nil {
				return fmt.Errorf("failed to encode JSON: %w", err)
			}
		}
		return nil

	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		for _, doc := range docs {
			if err := enc.Encode(doc); err != nil {
				return fmt.Errorf("failed to encode YAML: %w", err)
			}
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q", format)
}

// DOT renders the unit's architecture graph.
func (u *Unit) DOT() ([]byte, error) {
	if u.Report == nil {
		return nil, fmt.Errorf("%s has no architecture graph", u.Path)
	}
	name := "network"
	if u.Network != nil && u.Network.Name != "" {
		name = u.Network.Name
	}
	return u.Report.Graph.MarshalDOT(name)
}
