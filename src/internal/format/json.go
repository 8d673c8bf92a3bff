// FILE: tracewisp/src/internal/format/json.go
package format

import (
	"encoding/json"
	"fmt"
	"time"

	"tracewisp/src/internal/config"
	"tracewisp/src/internal/core"

	"github.com/lixenwraith/log"
)

// JSONFormatter produces one JSON object per record.
type JSONFormatter struct {
	config *config.JSONFormatterOptions
	logger *log.Logger
}

// NewJSONFormatter creates a new JSON formatter from configuration options.
func NewJSONFormatter(opts *config.JSONFormatterOptions, logger *log.Logger) (*JSONFormatter, error) {
	if opts == nil {
		opts = config.ApplyFormatDefaults(&config.FormatConfig{Type: "json"}).JSONFormatOptions
	}

	return &JSONFormatter{
		config: opts,
		logger: logger,
	}, nil
}

// Format transforms a single record into a JSON byte slice.
func (f *JSONFormatter) Format(rec *core.MessageRecord) ([]byte, error) {
	output := f.fields(rec)

	var result []byte
	var err error
	if f.config.Pretty {
		result, err = json.MarshalIndent(output, "", "  ")
	} else {
		result, err = json.Marshal(output)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return append(result, '\n'), nil
}

func (f *JSONFormatter) fields(rec *core.MessageRecord) map[string]any {
	output := map[string]any{
		f.config.TimestampField: rec.Timestamp.Format(time.RFC3339Nano),
		f.config.LevelField:     rec.CommandType.Level(),
		"index":                 rec.Index,
		"command":               rec.CommandType.String(),
	}

	if rec.Context != "" {
		output[f.config.ContextField] = rec.Context
	}

	// A body that is itself a JSON object is merged, record metadata wins
	var bodyData map[string]any
	if err := json.Unmarshal([]byte(rec.Body), &bodyData); err == nil {
		for k, v := range bodyData {
			if _, exists := output[k]; !exists {
				output[k] = v
			}
		}
		if _, hasTime := bodyData[f.config.TimestampField]; hasTime {
			f.logger.Debug("msg", "Overriding timestamp from JSON body",
				"component", "json_formatter",
				"original", bodyData[f.config.TimestampField],
				"index", rec.Index)
		}
	} else {
		output[f.config.MessageField] = rec.Body
	}

	if rec.FurtherDetails != "" {
		output["details"] = rec.FurtherDetails
	}
	if rec.Method != "" {
		output["method"] = rec.Method
	}
	if rec.File != "" {
		output["file"] = rec.File
		output["line"] = rec.Line
	}
	if rec.MachineName != "" {
		output["machine"] = rec.MachineName
	}
	if rec.ProcessID != 0 {
		output["pid"] = rec.ProcessID
	}
	if rec.ThreadID != 0 {
		output["thread"] = rec.ThreadID
	}
	if len(rec.Tags) > 0 {
		output["tags"] = rec.Tags
	}
	if len(rec.Payload) > 0 {
		output["payload"] = rec.Payload
	}

	return output
}

// Name returns the formatter's type name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// FormatBatch transforms a slice of records into a single JSON array.
func (f *JSONFormatter) FormatBatch(recs []*core.MessageRecord) ([]byte, error) {
	batch := make([]json.RawMessage, 0, len(recs))

	for _, rec := range recs {
		formatted, err := json.Marshal(f.fields(rec))
		if err != nil {
			f.logger.Warn("msg", "Failed to format record in batch",
				"component", "json_formatter",
				"index", rec.Index,
				"error", err)
			continue
		}
		batch = append(batch, formatted)
	}

	if f.config.Pretty {
		return json.MarshalIndent(batch, "", "  ")
	}
	return json.Marshal(batch)
}
