package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults tunes list and history query behavior. All fields are optional;
// zero values fall back to built-in limits.
type Defaults struct {
	// PageSize is the history page size used when a query omits one.
	PageSize int `yaml:"page_size,omitempty"`
	// ListLimit caps workflow list responses.
	ListLimit int64 `yaml:"list_limit,omitempty"`
	// StreamBuffer sizes the per-client run-event channel.
	StreamBuffer int `yaml:"stream_buffer,omitempty"`
}

// ParseDefaults parses defaults data from YAML bytes.
func ParseDefaults(data []byte) (*Defaults, error) {
	if len(data) == 0 {
		return &Defaults{}, nil
	}
	var d Defaults
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse defaults: %w", err)
	}
	if d.PageSize < 0 || d.ListLimit < 0 || d.StreamBuffer < 0 {
		return nil, fmt.Errorf("defaults must not be negative")
	}
	return &d, nil
}

// LoadDefaults reads the defaults file at path. A missing file yields
// empty defaults rather than an error.
func LoadDefaults(path string) (*Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Defaults{}, nil
		}
		return nil, fmt.Errorf("read defaults: %w", err)
	}
	return ParseDefaults(data)
}
