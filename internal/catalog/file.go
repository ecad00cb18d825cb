package catalog

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// ParseTOML decodes and validates a TOML catalog document.
func ParseTOML(data string) (*Document, error) {
	var doc Document
	md, err := toml.Decode(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown catalog keys: %v", undecoded)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadFile reads a TOML catalog from disk.
func LoadFile(path string) (*Document, error) {
	var doc Document
	md, err := toml.DecodeFile(path, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("catalog %s: unknown keys %v", path, undecoded)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return &doc, nil
}

// NewFromFile loads a TOML catalog into a Static catalog.
func NewFromFile(path string) (*Static, error) {
	doc, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewStatic(doc)
}
