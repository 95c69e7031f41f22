package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a pipeline definition from a YAML or JSON file. The format is
// chosen by extension; anything that is not .json is parsed as YAML.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}

	var graph Graph
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &graph); err != nil {
			return nil, fmt.Errorf("failed to parse pipeline JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &graph); err != nil {
			return nil, fmt.Errorf("failed to parse pipeline YAML: %w", err)
		}
	}

	if graph.Name == "" {
		graph.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &graph, nil
}
