// Package obs assigns correlation ids to rangestream operations and times
// them, the way cognusion/go-rangetripper tags and times a whole download.
package obs

import (
	"io"
	"log"
	"time"

	"github.com/cognusion/go-sequence"
	"github.com/cognusion/go-timings"
	"github.com/google/uuid"
)

// callSeq hands out short correlation ids for individual Add/Fetch calls,
// the same role rt.go's package-level seq plays for whole downloads.
var callSeq = sequence.New(0)

// NextCallID returns a short id to tag one Add or Fetch call's log lines.
func NextCallID() string {
	return callSeq.NextHashID()
}

// NewStreamID returns a stable id for one RangeStream's lifetime, used to
// tag the timing lines of that stream's Add calls.
func NewStreamID() string {
	return uuid.New().String()
}

// discardLogger is used when the caller configured no timing sink; it keeps
// the timings.Track call itself a no-op write instead of a branch at every
// call site.
var discardLogger = log.New(io.Discard, "", 0)

// Track starts a timing span named name and returns a function that stops
// it and writes the elapsed duration to out (or discards it if out is nil).
// It mirrors the defer timings.Track(name, time.Now(), logger) pattern used
// throughout go-rangetripper, wrapped so call sites don't need to depend on
// *log.Logger directly.
func Track(name string, out *log.Logger) func() {
	if out == nil {
		out = discardLogger
	}
	start := time.Now()
	return func() {
		timings.Track(name, start, out)
	}
}
