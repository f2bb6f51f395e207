// Package obslog provides the minimal debug/error logging interface used
// throughout rangestream. It deliberately mirrors the shape of a two-method
// Logger interface rather than pulling in a structured-logging library: the
// core only ever needs to narrate fetches, resolver decisions, and request
// dumps, and a heavier dependency buys nothing here.
package obslog

import (
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
)

// Logger is a minimal interface for debug/error logging.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

// LogFunc is a function type that implements Logger.
type LogFunc func(level, msg string, args ...any)

func (f LogFunc) Debug(msg string, args ...any) { f("DEBUG", msg, args...) }
func (f LogFunc) Error(msg string, args ...any) { f("ERROR", msg, args...) }

// StdLogger returns a logger backed by the standard log package.
func StdLogger() Logger {
	return LogFunc(func(level, msg string, args ...any) {
		log.Print(level + ": " + fmt.Sprintln(append([]any{msg}, args...)...))
	})
}

// Noop discards all logs. It is the default when no Logger is configured.
func Noop() Logger { return LogFunc(func(string, string, ...any) {}) }

// DumpRequest logs a full HTTP request (headers + body) at Debug level.
func DumpRequest(l Logger, req *http.Request) {
	if l == nil {
		return
	}
	if dump, err := httputil.DumpRequestOut(req, true); err == nil {
		l.Debug("", string(dump))
	} else {
		l.Error("failed to dump request", err)
	}
}

// DumpResponse logs a full HTTP response (headers + body) at Debug level.
// Callers must not have drained the body irreversibly before calling this.
func DumpResponse(l Logger, resp *http.Response) {
	if l == nil {
		return
	}
	if dump, err := httputil.DumpResponse(resp, true); err == nil {
		l.Debug("", string(dump))
	} else {
		l.Error("failed to dump response", err)
	}
}
