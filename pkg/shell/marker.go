package shell

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const (
	markerPrefix     = "__SHELLDON_EOC_"
	initMarkerPrefix = "__SHELLDON_INIT_"
	recoverySuffix   = "_timeout_recovery"
)

var lastMarkerNano atomic.Int64

// monotonicNano returns a strictly increasing nanosecond timestamp. Coarse
// system clocks can hand out the same reading twice in a tight loop; marker
// uniqueness must hold regardless.
func monotonicNano() int64 {
	for {
		now := time.Now().UnixNano()
		last := lastMarkerNano.Load()
		if now <= last {
			now = last + 1
		}
		if lastMarkerNano.CompareAndSwap(last, now) {
			return now
		}
	}
}

// newMarker builds a single-use end-of-command marker. The timestamp is
// strictly advancing within a run and the subprocess pid changes on every
// restart, so no two markers ever collide, including across restarts.
func newMarker(pid int) string {
	return fmt.Sprintf("%s%d_%d__", markerPrefix, monotonicNano(), pid)
}

// newInitMarker builds the one-shot readiness-handshake marker.
func newInitMarker() string {
	return fmt.Sprintf("%s%d__", initMarkerPrefix, monotonicNano())
}

// frameScanner detects the end-of-command marker in an unstructured line
// stream. It is a two-state machine: awaiting-marker until Feed sees the
// marker, then done. Content preceding the marker on the same line is
// returned to the caller; the exit status echoed after the marker is parsed
// when well-formed and left as -1 otherwise (a malformed status is ordinary
// output, never fatal).
type frameScanner struct {
	marker   string
	done     bool
	exitCode int
}

func newFrameScanner(marker string) *frameScanner {
	return &frameScanner{marker: marker, exitCode: -1}
}

// Feed consumes one line. It returns the portion of the line that belongs to
// the command's output and whether the marker was observed. After the marker
// has been seen, further lines are not consumed.
func (s *frameScanner) Feed(line string) (string, bool) {
	if s.done {
		return "", true
	}

	idx := strings.Index(line, s.marker)
	if idx < 0 {
		return line, false
	}

	s.done = true
	rest := strings.Fields(line[idx+len(s.marker):])
	if len(rest) > 0 {
		if code, err := strconv.Atoi(rest[0]); err == nil {
			s.exitCode = code
		}
	}
	return line[:idx], true
}

// ExitCode returns the exit status parsed from the marker line, or -1.
func (s *frameScanner) ExitCode() int {
	return s.exitCode
}
