// Package stream buffers generated text fragments against a set of
// stop sequences so that a caller never observes a stop sequence's
// prefix leaking through before the match (or non-match) is resolved.
package stream

import "strings"

// TokenStreamer accumulates decoded text fragments and withholds any
// suffix that could still become a stop sequence once more text
// arrives, releasing only text known to be safe to emit.
type TokenStreamer struct {
	stops      []string
	maxStopLen int
	pending    strings.Builder
	emitted    strings.Builder
	stopped    bool
	stopHit    string
}

// NewTokenStreamer builds a streamer for the given stop sequences.
// Empty stop strings are ignored.
func NewTokenStreamer(stops []string) *TokenStreamer {
	s := &TokenStreamer{}

	for _, stop := range stops {
		if stop == "" {
			continue
		}

		s.stops = append(s.stops, stop)

		if len(stop) > s.maxStopLen {
			s.maxStopLen = len(stop)
		}
	}

	return s
}

// Accept appends a newly generated fragment and returns the portion of
// it (if any) that is now safe to emit to the caller. Once a stop
// sequence has been matched, Accept is a no-op returning "".
func (s *TokenStreamer) Accept(fragment string) string {
	if s.stopped {
		return ""
	}

	s.pending.WriteString(fragment)
	buf := s.pending.String()

	for _, stop := range s.stops {
		if idx := strings.Index(buf, stop); idx != -1 {
			safe := buf[:idx]
			s.emitted.WriteString(safe)
			s.pending.Reset()
			s.stopped = true
			s.stopHit = stop

			return safe
		}
	}

	// Withhold the longest trailing suffix that could be a stop sequence prefix.
	withhold := s.maxStopLen - 1
	if withhold < 0 {
		withhold = 0
	}

	if withhold > len(buf) {
		withhold = len(buf)
	}

	safeLen := len(buf)

	for k := withhold; k > 0; k-- {
		if s.isStopPrefix(buf[len(buf)-k:]) {
			safeLen = len(buf) - k
			break
		}
	}

	safe := buf[:safeLen]
	rest := buf[safeLen:]

	s.emitted.WriteString(safe)
	s.pending.Reset()
	s.pending.WriteString(rest)

	return safe
}

func (s *TokenStreamer) isStopPrefix(suffix string) bool {
	for _, stop := range s.stops {
		if strings.HasPrefix(stop, suffix) {
			return true
		}
	}

	return false
}

// Flush releases any remaining withheld text that never matched a stop
// sequence; call this once generation ends.
func (s *TokenStreamer) Flush() string {
	if s.stopped {
		return ""
	}

	rest := s.pending.String()
	s.emitted.WriteString(rest)
	s.pending.Reset()

	return rest
}

// IsStopped reports whether a stop sequence has been matched.
func (s *TokenStreamer) IsStopped() bool {
	return s.stopped
}

// StopSequence returns the stop sequence that was matched, or "" if
// none has been hit yet.
func (s *TokenStreamer) StopSequence() string {
	return s.stopHit
}

// Text returns everything emitted so far, excluding the matched stop
// sequence itself and anything withheld.
func (s *TokenStreamer) Text() string {
	return s.emitted.String()
}
