package cli

import (
	"encoding/json"
	"io"
)

// Output writes command results either as indented JSON or through a text
// renderer.
type Output struct {
	Format string
	Writer io.Writer
}

func (o *Output) Write(v any, text func(io.Writer) error) error {
	if o.Format == "json" {
		enc := json.NewEncoder(o.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(o.Writer)
}
