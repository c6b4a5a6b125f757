package output

import (
	"bufio"
	"encoding/json"
	"io"
)

// JSONWriter writes JSON output.
type JSONWriter struct {
	w      *bufio.Writer
	pretty bool
	indent string
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer, pretty bool, indent string) *JSONWriter {
	return &JSONWriter{
		w:      bufio.NewWriter(w),
		pretty: pretty,
		indent: indent,
	}
}

// Write writes a single item as JSON.
func (w *JSONWriter) Write(data any) error {
	var output []byte
	var err error

	if w.pretty {
		output, err = json.MarshalIndent(data, "", w.indent)
	} else {
		output, err = json.Marshal(data)
	}
	if err != nil {
		return err
	}

	if _, err := w.w.Write(output); err != nil {
		return err
	}
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}
	return nil
}

// Flush flushes the buffer.
func (w *JSONWriter) Flush() error {
	return w.w.Flush()
}

// JSONLWriter writes newline-delimited JSON (JSONL).
type JSONLWriter struct {
	w *bufio.Writer
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{w: bufio.NewWriter(w)}
}

// Write writes a single item as a JSON line.
func (w *JSONLWriter) Write(data any) error {
	output, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := w.w.Write(output); err != nil {
		return err
	}
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}
	return nil
}

// Flush flushes the buffer.
func (w *JSONLWriter) Flush() error {
	return w.w.Flush()
}
