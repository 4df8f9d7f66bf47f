package stream

import "strings"

// assistantMarker is the role label embedded in the streamed JSON document.
// Tokens before it are protocol scaffolding (field names, role labels,
// escaping) and must never reach the UI.
const assistantMarker = "Assistant: "

type accumPhase int

const (
	phaseAwaitingContent accumPhase = iota
	phaseStreaming
	phaseDone
)

// accumulator maintains the growing-only cumulative token text for one
// in-flight message and carves the assistant-visible substring out of it.
//
// The backend streams the eventual answer as part of one large JSON document,
// so raw tokens interleave visible text with braces, quotes and role labels.
// The accumulator watches for the assistant marker (the scaffold/content
// boundary), then diffs the extracted substring's length against the last
// emission to produce each new delta.
//
// Scanning is incremental: both the marker search and the closing-quote
// search remember their last offset, so long streams are not re-scanned from
// the start on every token.
type accumulator struct {
	buf strings.Builder // accumulated tokens, escaped form as received

	phase     accumPhase
	scanFrom  int // marker search resume offset into buf
	markerEnd int // offset just past the assistant marker
	quoteAt   int // offset of the closing quote, -1 while the string is open
	emitted   int // previousEmittedLength, in escaped bytes past markerEnd

	visible    strings.Builder // un-escaped text emitted so far
	emittedAny bool
}

func newAccumulator() *accumulator {
	return &accumulator{quoteAt: -1}
}

// push appends a token fragment and returns the newly visible un-escaped
// delta ("" when nothing new became visible) plus whether this push crossed
// the scaffold/content boundary.
func (a *accumulator) push(token string) (delta string, started bool) {
	if a.phase == phaseDone || token == "" {
		return "", false
	}

	a.buf.WriteString(token)

	if a.phase == phaseAwaitingContent {
		if !a.findMarker() {
			return "", false
		}
		a.phase = phaseStreaming
		started = true
	}

	return a.extract(), started
}

// findMarker searches the unscanned tail for the assistant marker. On a miss
// the resume offset backs up by len(marker)-1 so a marker split across token
// boundaries is still found.
func (a *accumulator) findMarker() bool {
	s := a.buf.String()

	idx := strings.Index(s[a.scanFrom:], assistantMarker)
	if idx < 0 {
		a.scanFrom = max(0, len(s)-len(assistantMarker)+1)
		return false
	}

	a.markerEnd = a.scanFrom + idx + len(assistantMarker)
	a.quoteAt = -1
	a.emitted = 0
	return true
}

// extract returns the un-escaped suffix of assistant content beyond the
// emission cursor. Content between the marker and the first unescaped quote
// is visible; a still-open string (no closing quote yet) is extracted up to
// the end of the buffer.
func (a *accumulator) extract() string {
	s := a.buf.String()

	if a.quoteAt < 0 {
		a.findClosingQuote(s)
	}

	end := len(s)
	if a.quoteAt >= 0 {
		end = a.quoteAt
	}

	visible := s[a.markerEnd:end]
	if len(visible) <= a.emitted {
		return ""
	}

	raw := visible[a.emitted:]

	// Hold back a trailing lone backslash: it is the first half of an escape
	// sequence whose second half has not arrived. Emitting it now would split
	// the sequence across deltas and corrupt the un-escaped output.
	if trailingBackslashes(raw)%2 == 1 {
		raw = raw[:len(raw)-1]
		if raw == "" {
			return ""
		}
	}

	a.emitted += len(raw)

	delta := unescape(raw)
	if delta != "" {
		a.visible.WriteString(delta)
		a.emittedAny = true
	}
	return delta
}

// findClosingQuote scans forward from the emission cursor for the first
// quote not preceded by an odd run of backslashes.
func (a *accumulator) findClosingQuote(s string) {
	for i := a.markerEnd + a.emitted; i < len(s); i++ {
		if s[i] != '"' {
			continue
		}
		if trailingBackslashes(s[a.markerEnd:i])%2 == 1 {
			continue // escaped quote, part of the content
		}
		a.quoteAt = i
		return
	}
}

// finish seals the accumulator. Further pushes are ignored.
func (a *accumulator) finish() {
	a.phase = phaseDone
}

// streamed reports whether any content delta was emitted. It decides the
// fallback: the final content resolver runs only when no delta ever fired.
func (a *accumulator) streamed() bool {
	return a.emittedAny
}

// text returns the full un-escaped assistant text emitted so far. By
// construction it equals the concatenation of all returned deltas.
func (a *accumulator) text() string {
	return a.visible.String()
}

// trailingBackslashes counts the backslash run at the end of s.
func trailingBackslashes(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n
}

// unescape reverses the JSON string escaping applied by the upstream
// encoder: \n, \", and \\ become their literal forms. Unknown escapes are
// passed through untouched rather than dropped.
func unescape(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i == len(s)-1 {
			b.WriteByte(s[i])
			continue
		}

		switch s[i+1] {
		case 'n':
			b.WriteByte('\n')
			i++
		case 't':
			b.WriteByte('\t')
			i++
		case '"':
			b.WriteByte('"')
			i++
		case '\\':
			b.WriteByte('\\')
			i++
		default:
			b.WriteByte(s[i])
		}
	}

	return b.String()
}
