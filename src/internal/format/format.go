// FILE: tracewisp/src/internal/format/format.go
package format

import (
	"fmt"

	"tracewisp/src/internal/config"
	"tracewisp/src/internal/core"

	"github.com/lixenwraith/log"
)

// Formatter defines the interface for transforming a MessageRecord into a byte slice.
type Formatter interface {
	// Format takes a record and returns it rendered as a byte slice ending in a newline.
	Format(rec *core.MessageRecord) ([]byte, error)

	// Name returns the formatter type name
	Name() string
}

// BatchFormatter is implemented by formatters that can render a whole batch as one document.
type BatchFormatter interface {
	FormatBatch(recs []*core.MessageRecord) ([]byte, error)
}

// NewFormatter creates a new Formatter based on the provided configuration.
func NewFormatter(cfg *config.FormatConfig, logger *log.Logger) (Formatter, error) {
	cfg = config.ApplyFormatDefaults(cfg)

	switch cfg.Type {
	case "json":
		return NewJSONFormatter(cfg.JSONFormatOptions, logger)
	case "txt":
		return NewTxtFormatter(cfg.TextFormatOptions, logger)
	case "raw":
		return NewRawFormatter(logger)
	default:
		return nil, fmt.Errorf("unknown formatter type: %s", cfg.Type)
	}
}
