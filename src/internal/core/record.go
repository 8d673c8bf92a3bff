// FILE: tracewisp/src/internal/core/record.go
package core

import (
	"maps"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Process-wide record index, shared by every router in the process
var recordIndex atomic.Uint64

// CommandType identifies the kind of trace event a record carries
type CommandType int

const (
	CommandLog CommandType = iota
	CommandVerbose
	CommandError
	CommandWarning
	CommandAssertion
	CommandSectionStart
	CommandSectionEnd
	CommandExceptionBlock
	CommandAlert
	CommandCustom
	CommandResetSection
	CommandMoreInfo
)

var commandNames = [...]string{
	CommandLog:            "log",
	CommandVerbose:        "verbose",
	CommandError:          "error",
	CommandWarning:        "warning",
	CommandAssertion:      "assertion",
	CommandSectionStart:   "section_start",
	CommandSectionEnd:     "section_end",
	CommandExceptionBlock: "exception_block",
	CommandAlert:          "alert",
	CommandCustom:         "custom",
	CommandResetSection:   "reset_section",
	CommandMoreInfo:       "more_info",
}

// String returns the lower-case name of the command type
func (c CommandType) String() string {
	if c >= 0 && int(c) < len(commandNames) {
		return commandNames[c]
	}
	return "unknown"
}

// Level maps a command type onto a log level string used by formatters and
// split console output
func (c CommandType) Level() string {
	switch c {
	case CommandError, CommandExceptionBlock, CommandAssertion:
		return "ERROR"
	case CommandWarning, CommandAlert:
		return "WARN"
	case CommandVerbose:
		return "DEBUG"
	default:
		return "INFO"
	}
}

// ParseCommandType resolves a command type from its name, defaulting to CommandLog
func ParseCommandType(name string) (CommandType, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return CommandLog, true
	}
	for i, n := range commandNames {
		if n == name {
			return CommandType(i), true
		}
	}
	return CommandLog, false
}

// MessageRecord is a single trace event flowing from a writer through the
// router to every sink. Records are owned by the router until fan-out and are
// read-only afterwards; sinks that need to transform one work on a Clone.
type MessageRecord struct {
	Index          uint64            `json:"index"`
	Body           string            `json:"body"`
	FurtherDetails string            `json:"further_details,omitempty"`
	CommandType    CommandType       `json:"command_type"`
	Context        string            `json:"context,omitempty"`
	Method         string            `json:"method,omitempty"`
	File           string            `json:"file,omitempty"`
	Line           int               `json:"line,omitempty"`
	MachineName    string            `json:"machine_name,omitempty"`
	ProcessID      int               `json:"process_id,omitempty"`
	ThreadID       int               `json:"thread_id,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
	Tags           map[string]string `json:"tags,omitempty"`
	Payload        []byte            `json:"payload,omitempty"`

	enriched bool
}

// NewRecord creates a record with the next process-wide index, the current
// time and the calling OS thread
func NewRecord(cmd CommandType, body string) *MessageRecord {
	return &MessageRecord{
		Index:       recordIndex.Add(1),
		Body:        body,
		CommandType: cmd,
		Timestamp:   time.Now(),
		ThreadID:    currentThreadID(),
	}
}

// SetTag adds or replaces a tag
func (r *MessageRecord) SetTag(key, value string) *MessageRecord {
	if r.Tags == nil {
		r.Tags = make(map[string]string)
	}
	r.Tags[key] = value
	return r
}

// Clone returns a deep copy, including the enrichment state
func (r *MessageRecord) Clone() *MessageRecord {
	c := *r
	if r.Tags != nil {
		c.Tags = maps.Clone(r.Tags)
	}
	if r.Payload != nil {
		c.Payload = append([]byte(nil), r.Payload...)
	}
	return &c
}

// Enriched reports whether Enrich has already run on the record
func (r *MessageRecord) Enriched() bool {
	return r.enriched
}

// Enrich fills process-wide fields unknown at creation time and substitutes
// replacement tokens. It runs at most once per record.
func (r *MessageRecord) Enrich(env Environment) {
	if r.enriched {
		return
	}
	r.enriched = true

	if r.MachineName == "" {
		r.MachineName = env.MachineName
	}
	if r.ProcessID == 0 {
		r.ProcessID = env.ProcessID
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	if strings.IndexByte(r.Body, '%') >= 0 || strings.IndexByte(r.FurtherDetails, '%') >= 0 {
		replacer := r.tokenReplacer(env)
		r.Body = replacer.Replace(r.Body)
		r.FurtherDetails = replacer.Replace(r.FurtherDetails)
	}
}

func (r *MessageRecord) tokenReplacer(env Environment) *strings.Replacer {
	layout := env.TimestampFormat
	if layout == "" {
		layout = DefaultTimestampFormat
	}
	return strings.NewReplacer(
		TokenTimestamp, r.Timestamp.Format(layout),
		TokenMethod, r.Method,
		TokenMachine, r.MachineName,
		TokenProcess, strconv.Itoa(r.ProcessID),
		TokenThread, strconv.Itoa(r.ThreadID),
		TokenIndex, strconv.FormatUint(r.Index, 10),
		TokenContext, r.Context,
	)
}

// Environment carries the process-wide values applied during enrichment
type Environment struct {
	MachineName     string
	ProcessID       int
	TimestampFormat string
}

// CurrentEnvironment resolves the host name and process id once
func CurrentEnvironment() Environment {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return Environment{
		MachineName:     host,
		ProcessID:       os.Getpid(),
		TimestampFormat: DefaultTimestampFormat,
	}
}
