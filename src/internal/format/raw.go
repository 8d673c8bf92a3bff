// FILE: tracewisp/src/internal/format/raw.go
package format

import (
	"tracewisp/src/internal/core"

	"github.com/lixenwraith/log"
)

// Outputs the record body as-is with a newline
type RawFormatter struct {
	logger *log.Logger
}

// Creates a new raw formatter
func NewRawFormatter(logger *log.Logger) (*RawFormatter, error) {
	return &RawFormatter{
		logger: logger,
	}, nil
}

// Returns the body with a newline appended, or the payload when the body is empty
func (f *RawFormatter) Format(rec *core.MessageRecord) ([]byte, error) {
	if rec.Body == "" && len(rec.Payload) > 0 {
		return append(append([]byte(nil), rec.Payload...), '\n'), nil
	}
	return append([]byte(rec.Body), '\n'), nil
}

// Returns the formatter name
func (f *RawFormatter) Name() string {
	return "raw"
}
