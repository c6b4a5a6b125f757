// Package output serializes extraction results. A run produces one
// result document, so writers stream each item as it is written
// instead of buffering an array.
package output

import (
	"fmt"
	"io"
)

// Format selects the serialization for run results.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a format name from a flag or config value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSON, FormatJSONL, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", s)
	}
}

// Writer serializes run results to a stream.
type Writer interface {
	// Write outputs a single result.
	Write(data any) error

	// Flush ensures all data is written.
	Flush() error
}

// Option adjusts writer behaviour.
type Option func(*config)

type config struct {
	compact bool
	indent  string
}

// WithCompact disables pretty-printing for the JSON format. JSONL and
// YAML are unaffected.
func WithCompact() Option {
	return func(c *config) {
		c.compact = true
	}
}

// NewWriter creates a writer for the given format.
func NewWriter(w io.Writer, format Format, opts ...Option) (Writer, error) {
	format, err := ParseFormat(string(format))
	if err != nil {
		return nil, err
	}

	cfg := &config{indent: "  "}
	for _, opt := range opts {
		opt(cfg)
	}

	switch format {
	case FormatJSONL:
		return NewJSONLWriter(w), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	default:
		return NewJSONWriter(w, !cfg.compact, cfg.indent), nil
	}
}
