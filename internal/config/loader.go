package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a configuration file format.
type Format string

// Supported file formats.
const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatOf returns the format implied by a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
}

// LoadFile reads an engine creation config from a file.
func LoadFile(path string) (Create, error) {
	data, err := readJSON(path)
	if err != nil {
		return DefaultCreate(), err
	}
	cfg, err := ParseCreateJSON(data)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadRuntimeFile reads a runtime config from a file on top of base.
func LoadRuntimeFile(path string, base Runtime) (Runtime, error) {
	data, err := readJSON(path)
	if err != nil {
		return base, err
	}
	cfg, err := ParseRuntimeJSON(data, base)
	if err != nil {
		return base, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// readJSON reads path and returns its content as JSON so every format
// goes through the same strict validator.
func readJSON(path string) ([]byte, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return ToJSON(format, path, data)
}

// ToJSON converts data in the given format to JSON.
func ToJSON(format Format, source string, data []byte) ([]byte, error) {
	var doc map[string]any
	switch format {
	case FormatJSON:
		return data, nil
	case FormatTOML:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, &ParseError{Path: source, Message: err.Error(), Err: err}
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &ParseError{Path: source, Message: err.Error(), Err: err}
		}
	default:
		return nil, fmt.Errorf("%s: %w", source, ErrUnsupportedFormat)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, &ParseError{Path: source, Message: err.Error(), Err: err}
	}
	return out, nil
}
