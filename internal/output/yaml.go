package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLWriter writes YAML output.
type YAMLWriter struct {
	w *bufio.Writer
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	return &YAMLWriter{w: bufio.NewWriter(w)}
}

// Write writes a single item as a YAML document.
func (w *YAMLWriter) Write(data any) error {
	encoder := yaml.NewEncoder(w.w)
	encoder.SetIndent(2)

	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}

// Flush flushes the buffer.
func (w *YAMLWriter) Flush() error {
	return w.w.Flush()
}
