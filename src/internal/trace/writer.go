// FILE: tracewisp/src/internal/trace/writer.go
package trace

import (
	"fmt"
	"maps"
	"path/filepath"
	"runtime"
	"strings"

	"tracewisp/src/internal/core"
	"tracewisp/src/internal/router"
)

// Writer is the front end application code traces through. It stamps records
// with a context string, tags and the caller location and hands them to the
// router it is bound to. A Writer is immutable; With and WithContext return
// derived copies, so one can be shared across goroutines.
type Writer struct {
	router  router.Router
	context string
	tags    map[string]string
}

// New binds a writer to a router
func New(r router.Router, context string) *Writer {
	return &Writer{router: r, context: context}
}

// Default returns a writer bound to the process-wide default router
func Default() *Writer {
	return New(router.Default(), "")
}

// Router returns the router the writer is bound to
func (w *Writer) Router() router.Router {
	return w.router
}

// WithContext returns a writer stamping records with a different context
func (w *Writer) WithContext(context string) *Writer {
	c := *w
	c.context = context
	return &c
}

// With returns a writer that adds a tag to every record
func (w *Writer) With(key, value string) *Writer {
	c := *w
	c.tags = maps.Clone(w.tags)
	if c.tags == nil {
		c.tags = make(map[string]string, 1)
	}
	c.tags[key] = value
	return &c
}

func (w *Writer) Log(body string) error {
	return w.emit(core.CommandLog, body, "", nil)
}

func (w *Writer) Logf(format string, args ...any) error {
	return w.emit(core.CommandLog, fmt.Sprintf(format, args...), "", nil)
}

func (w *Writer) Verbose(body string) error {
	return w.emit(core.CommandVerbose, body, "", nil)
}

func (w *Writer) Warning(body string) error {
	return w.emit(core.CommandWarning, body, "", nil)
}

func (w *Writer) Error(body string) error {
	return w.emit(core.CommandError, body, "", nil)
}

func (w *Writer) Alert(body string) error {
	return w.emit(core.CommandAlert, body, "", nil)
}

// Fail records an error and flags a failure, releasing trace held by
// write-only-on-failure routers
func (w *Writer) Fail(body string) error {
	err := w.emit(core.CommandError, body, "", nil)
	w.router.FlagFailure()
	return err
}

// Assert records an assertion failure when cond is false
func (w *Writer) Assert(cond bool, body string) error {
	if cond {
		return nil
	}
	return w.emit(core.CommandAssertion, body, "", nil)
}

// Exception records an error value with its formatted detail
func (w *Writer) Exception(err error, details string) error {
	if err == nil {
		return nil
	}
	if details == "" {
		details = fmt.Sprintf("%+v", err)
	}
	return w.emit(core.CommandExceptionBlock, err.Error(), details, nil)
}

func (w *Writer) SectionStart(name string) error {
	return w.emit(core.CommandSectionStart, name, "", nil)
}

func (w *Writer) SectionEnd(name string) error {
	return w.emit(core.CommandSectionEnd, name, "", nil)
}

// Custom records an application-defined event carrying an opaque payload
func (w *Writer) Custom(body string, payload []byte) error {
	return w.emit(core.CommandCustom, body, "", payload)
}

// Section opens a section and returns the function that closes it. Both
// records carry the location of the Section call.
func (w *Writer) Section(name string) func() {
	site := callerSite(2)
	_ = w.emitAt(site, core.CommandSectionStart, name, "", nil)
	return func() {
		_ = w.emitAt(site, core.CommandSectionEnd, name, "", nil)
	}
}

// Write makes the writer usable as an io.Writer, one record per call
func (w *Writer) Write(p []byte) (int, error) {
	body := strings.TrimRight(string(p), "\r\n")
	if body == "" {
		return len(p), nil
	}
	rec := w.record(core.CommandLog, body, "", nil)
	if err := w.router.Enqueue(rec); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Emit stamps and enqueues a record built by the caller. Context and tags
// already set on the record are kept.
func (w *Writer) Emit(rec *core.MessageRecord) error {
	if rec == nil {
		return router.ErrNilRecord
	}
	if rec.Context == "" {
		rec.Context = w.context
	}
	for k, v := range w.tags {
		if _, ok := rec.Tags[k]; !ok {
			rec.SetTag(k, v)
		}
	}
	return w.router.Enqueue(rec)
}

// emit must be called directly by the exported methods so the caller frame
// resolves to application code
func (w *Writer) emit(cmd core.CommandType, body, details string, payload []byte) error {
	return w.emitAt(callerSite(3), cmd, body, details, payload)
}

func (w *Writer) emitAt(site callSite, cmd core.CommandType, body, details string, payload []byte) error {
	rec := w.record(cmd, body, details, payload)
	rec.File, rec.Line, rec.Method = site.file, site.line, site.method
	return w.router.Enqueue(rec)
}

type callSite struct {
	file   string
	line   int
	method string
}

// callerSite wraps runtime.Caller, skip 1 being the function that calls it
func callerSite(skip int) callSite {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return callSite{}
	}
	site := callSite{file: filepath.Base(file), line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		site.method = shortFuncName(fn.Name())
	}
	return site
}

func (w *Writer) record(cmd core.CommandType, body, details string, payload []byte) *core.MessageRecord {
	rec := core.NewRecord(cmd, body)
	rec.FurtherDetails = details
	rec.Context = w.context
	rec.Payload = payload
	if len(w.tags) > 0 {
		rec.Tags = maps.Clone(w.tags)
	}
	return rec
}

// shortFuncName drops the import path, keeping package.(*Type).Method
func shortFuncName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}
