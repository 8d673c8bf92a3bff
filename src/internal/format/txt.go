// FILE: tracewisp/src/internal/format/txt.go
package format

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"tracewisp/src/internal/config"
	"tracewisp/src/internal/core"

	"github.com/lixenwraith/log"
)

// Produces human-readable text records using templates
type TxtFormatter struct {
	config   *config.TextFormatterOptions
	template *template.Template
	logger   *log.Logger
}

// Creates a new text formatter
func NewTxtFormatter(opts *config.TextFormatterOptions, logger *log.Logger) (*TxtFormatter, error) {
	if opts == nil {
		opts = config.ApplyFormatDefaults(&config.FormatConfig{Type: "txt"}).TextFormatOptions
	}

	f := &TxtFormatter{
		config: opts,
		logger: logger,
	}

	// Create template with helper functions
	funcMap := template.FuncMap{
		"FmtTime": func(t time.Time) string {
			return t.Format(f.config.TimestampFormat)
		},
		"ToUpper":   strings.ToUpper,
		"ToLower":   strings.ToLower,
		"TrimSpace": strings.TrimSpace,
	}

	tmpl, err := template.New("record").Funcs(funcMap).Parse(f.config.Template)
	if err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}

	f.template = tmpl
	return f, nil
}

// Formats the record using the template
func (f *TxtFormatter) Format(rec *core.MessageRecord) ([]byte, error) {
	data := map[string]any{
		"Timestamp": rec.Timestamp,
		"Level":     rec.CommandType.Level(),
		"Command":   rec.CommandType.String(),
		"Index":     rec.Index,
		"Context":   rec.Context,
		"Body":      rec.Body,
		"Details":   rec.FurtherDetails,
		"Method":    rec.Method,
		"File":      rec.File,
		"Line":      rec.Line,
		"Machine":   rec.MachineName,
		"PID":       rec.ProcessID,
		"Thread":    rec.ThreadID,
		"Tags":      rec.Tags,
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		// Fallback: return a basic formatted message
		f.logger.Debug("msg", "Template execution failed, using fallback",
			"component", "txt_formatter",
			"error", err)

		fallback := fmt.Sprintf("[%s] [%s] #%d %s\n",
			rec.Timestamp.Format(f.config.TimestampFormat),
			rec.CommandType.Level(),
			rec.Index,
			rec.Body)
		return []byte(fallback), nil
	}

	// Ensure newline at end
	result := buf.Bytes()
	if len(result) == 0 || result[len(result)-1] != '\n' {
		result = append(result, '\n')
	}

	return result, nil
}

// Returns the formatter name
func (f *TxtFormatter) Name() string {
	return "txt"
}
