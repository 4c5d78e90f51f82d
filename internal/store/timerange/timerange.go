// Package timerange implements the TAMS timerange algebra (C1): parsing the
// two wire syntaxes, overlap/containment checks, and the deterministic
// (year, month, day) key components used by the object store adapter.
//
// Grounded on original_source/app/core/timerange_utils.py.
package timerange

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jesseVast/tamscore/pkg/logger"
)

var log = logger.NewDefault("timerange")

// TimeRange is a half-open interval [Start, End) in seconds. An End of
// +Inf means unbounded.
type TimeRange struct {
	Start float64
	End   float64
}

// Zero is the legacy fallback value returned by ParseLenient on malformed
// input.
var Zero = TimeRange{Start: 0, End: 0}

// Parse parses either wire syntax and returns an error on malformed input,
// giving callers that want strict behavior (spec §9's ParseError /
// lenient-mode-opt-in re-architecture) a way to detect the failure.
func Parse(s string) (TimeRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, fmt.Errorf("timerange: empty input")
	}

	body := s
	body = strings.TrimPrefix(body, "[")
	body = strings.TrimPrefix(body, "(")
	body = strings.TrimSuffix(body, ")")
	body = strings.TrimSuffix(body, "]")

	if strings.Contains(body, "_") {
		return parseCompact(body)
	}
	return parseStandard(body)
}

// ParseLenient preserves the legacy behavior documented in spec §4.1: any
// parse failure yields (0,0) and a logged warning, rather than propagating
// an error, matching parse_tams_timerange's silent-fallback contract. The
// object-store adapter calls Parse and handles its error itself.
func ParseLenient(s string) TimeRange {
	tr, err := Parse(s)
	if err != nil {
		log.WithField("input", s).Warnf("malformed timerange, falling back to (0,0): %v", err)
		return Zero
	}
	return tr
}

// parseCompact parses "[S_E)" where S and E are "sec:subsec".
func parseCompact(body string) (TimeRange, error) {
	parts := strings.SplitN(body, "_", 2)
	start, err := parseCompactTimestamp(parts[0])
	if err != nil {
		return Zero, fmt.Errorf("timerange: compact start: %w", err)
	}

	if len(parts) == 1 || strings.TrimSpace(parts[1]) == "" {
		// Missing end means +Inf; a single timestamp with no separator is a
		// point interval (start == end).
		if len(parts) == 1 {
			return TimeRange{Start: start, End: start}, nil
		}
		return TimeRange{Start: start, End: math.Inf(1)}, nil
	}

	end, err := parseCompactTimestamp(parts[1])
	if err != nil {
		return Zero, fmt.Errorf("timerange: compact end: %w", err)
	}
	return TimeRange{Start: start, End: end}, nil
}

// parseCompactTimestamp parses "sec:subsec" where subsec is a
// nanosecond-scaled fraction.
func parseCompactTimestamp(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	segs := strings.SplitN(s, ":", 2)
	sec, err := strconv.ParseInt(segs[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid seconds %q: %w", segs[0], err)
	}
	if len(segs) == 1 {
		return float64(sec), nil
	}
	subsecStr := segs[1]
	subsec, err := strconv.ParseInt(subsecStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subseconds %q: %w", subsecStr, err)
	}
	// subsec is scaled as a fraction of one second over 1e9 (nanoseconds).
	return float64(sec) + float64(subsec)/1e9, nil
}

// parseStandard parses "S,E" where each side is "MM:SS.mmm" or
// "HH:MM:SS.mmm"; either side may be empty, meaning unbounded.
func parseStandard(body string) (TimeRange, error) {
	parts := strings.SplitN(body, ",", 2)
	if len(parts) != 2 {
		return Zero, fmt.Errorf("standard timerange requires a comma: %q", body)
	}

	var start float64
	if strings.TrimSpace(parts[0]) != "" {
		v, err := parseStandardTimestamp(parts[0])
		if err != nil {
			return Zero, fmt.Errorf("timerange: standard start: %w", err)
		}
		start = v
	}

	if strings.TrimSpace(parts[1]) == "" {
		return TimeRange{Start: start, End: math.Inf(1)}, nil
	}
	end, err := parseStandardTimestamp(parts[1])
	if err != nil {
		return Zero, fmt.Errorf("timerange: standard end: %w", err)
	}
	return TimeRange{Start: start, End: end}, nil
}

// parseStandardTimestamp parses "MM:SS.mmm" or "HH:MM:SS.mmm" into seconds.
func parseStandardTimestamp(s string) (float64, error) {
	s = strings.TrimSpace(s)
	segs := strings.Split(s, ":")
	var hours, minutes int
	var secPart string

	switch len(segs) {
	case 2:
		m, err := strconv.Atoi(segs[0])
		if err != nil {
			return 0, fmt.Errorf("invalid minutes %q: %w", segs[0], err)
		}
		minutes = m
		secPart = segs[1]
	case 3:
		h, err := strconv.Atoi(segs[0])
		if err != nil {
			return 0, fmt.Errorf("invalid hours %q: %w", segs[0], err)
		}
		m, err := strconv.Atoi(segs[1])
		if err != nil {
			return 0, fmt.Errorf("invalid minutes %q: %w", segs[1], err)
		}
		hours, minutes = h, m
		secPart = segs[2]
	default:
		return 0, fmt.Errorf("unrecognized standard timestamp %q", s)
	}

	seconds, err := strconv.ParseFloat(secPart, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid seconds %q: %w", secPart, err)
	}

	return float64(hours*3600+minutes*60) + seconds, nil
}

// Overlaps reports whether a and b intersect: a.Start < b.End && a.End > b.Start.
func Overlaps(a, b TimeRange) bool {
	return a.Start < b.End && a.End > b.Start
}

// Contains reports whether outer fully contains inner.
func Contains(outer, inner TimeRange) bool {
	return outer.Start <= inner.Start && outer.End >= inner.End
}

// DeriveKeyComponents returns the (year, month, day) used to build the
// deterministic object-store key from a timerange start expressed as Unix
// seconds. Any start value is accepted; the object-store adapter falls back
// to the current date only when the timerange fails to parse, per spec
// §4.13.
func DeriveKeyComponents(startUnixSeconds float64) (year, month, day int) {
	t := time.Unix(int64(startUnixSeconds), 0).UTC()
	return t.Year(), int(t.Month()), t.Day()
}

// Render formats tr back into the compact wire syntax, used by generators
// that allocate storage keys from a TimeRange.
func Render(tr TimeRange) string {
	if math.IsInf(tr.End, 1) {
		return fmt.Sprintf("[%s_)", renderCompactTimestamp(tr.Start))
	}
	return fmt.Sprintf("[%s_%s)", renderCompactTimestamp(tr.Start), renderCompactTimestamp(tr.End))
}

func renderCompactTimestamp(seconds float64) string {
	whole := int64(seconds)
	frac := seconds - float64(whole)
	subsec := int64(frac * 1e9)
	if subsec == 0 {
		return strconv.FormatInt(whole, 10)
	}
	return fmt.Sprintf("%d:%d", whole, subsec)
}
