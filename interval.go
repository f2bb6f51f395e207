package rangestream

import "fmt"

// Interval is a half-open span [Start, Stop) of byte positions within a
// resource. Start and Stop are always non-negative and absolute by the time
// an Interval is constructed with New; negative, end-relative coordinates
// are resolved earlier, by ResolveInterval.
type Interval struct {
	Start int64
	Stop  int64
}

// New builds an Interval, failing with ErrInvalidInterval if start > stop.
func New(start, stop int64) (Interval, error) {
	if start > stop {
		return Interval{}, fmt.Errorf("%w: start %d > stop %d", ErrInvalidInterval, start, stop)
	}
	return Interval{Start: start, Stop: stop}, nil
}

// Len returns stop-start.
func (iv Interval) Len() int64 { return iv.Stop - iv.Start }

// Empty reports whether the interval has zero length.
func (iv Interval) Empty() bool { return iv.Stop == iv.Start }

// Termini returns (start, stop-1), the first and last byte positions
// covered by the interval. It fails with ErrEmptyInterval on an empty
// interval, which has no last byte.
func (iv Interval) Termini() (first, last int64, err error) {
	if iv.Empty() {
		return 0, 0, ErrEmptyInterval
	}
	return iv.Start, iv.Stop - 1, nil
}

// Contains reports whether pos lies within [Start, Stop).
func (iv Interval) Contains(pos int64) bool {
	return pos >= iv.Start && pos < iv.Stop
}

// Intersects reports whether iv and other share at least one byte position.
func (iv Interval) Intersects(other Interval) bool {
	return iv.Start < other.Stop && other.Start < iv.Stop
}

// Span returns the smallest interval containing both a and b.
func Span(a, b Interval) Interval {
	start := a.Start
	if b.Start < start {
		start = b.Start
	}
	stop := a.Stop
	if b.Stop > stop {
		stop = b.Stop
	}
	return Interval{Start: start, Stop: stop}
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%d,%d)", iv.Start, iv.Stop)
}

// ResolveInterval turns possibly end-relative coordinates into an absolute,
// validated Interval. A nil stop means "to the end of the resource" (as in
// Python-style open-ended slicing); totalLength must be known (non-nil) if
// either coordinate is negative or stop is nil.
//
// ResolveInterval never mutates store state; it is a pure function of its
// inputs, matching the design note in SPEC_FULL.md that negatives are
// resolved at add time, never at store time.
func ResolveInterval(start int64, stop *int64, totalLength *int64) (Interval, error) {
	needsLength := start < 0 || stop == nil || *stop < 0
	if needsLength && totalLength == nil {
		return Interval{}, ErrLengthUnknown
	}

	absStart := start
	if absStart < 0 {
		absStart = *totalLength + absStart
	}

	var absStop int64
	switch {
	case stop == nil:
		absStop = *totalLength
	case *stop < 0:
		absStop = *totalLength + *stop
	default:
		absStop = *stop
	}

	if absStart > absStop {
		return Interval{}, fmt.Errorf("%w: start %d > stop %d", ErrInvalidInterval, absStart, absStop)
	}
	if absStart < 0 || absStop < 0 {
		return Interval{}, fmt.Errorf("%w: resolved interval [%d,%d) has a negative endpoint", ErrOutOfRange, absStart, absStop)
	}
	if totalLength != nil && absStop > *totalLength {
		return Interval{}, fmt.Errorf("%w: stop %d exceeds total length %d", ErrOutOfRange, absStop, *totalLength)
	}
	return Interval{Start: absStart, Stop: absStop}, nil
}

// Validate fails with ErrInvalidInterval if the interval is malformed, or
// ErrOutOfRange if either endpoint exceeds a known total length.
func Validate(iv Interval, totalLength *int64) error {
	if iv.Start > iv.Stop || iv.Start < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, iv)
	}
	if totalLength != nil && iv.Stop > *totalLength {
		return fmt.Errorf("%w: %s exceeds total length %d", ErrOutOfRange, iv, *totalLength)
	}
	return nil
}
