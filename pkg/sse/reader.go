package sse

import (
	"bufio"
	"io"
	"strings"
)

// dataPrefix marks the payload-carrying lines in the stream.
const dataPrefix = "data: "

// Reader reads data frames from a source io.Reader, splitting on newlines.
// bufio.Scanner operates on raw bytes, so multi-byte UTF-8 characters split
// across chunk boundaries reassemble naturally before a line is surfaced.
type Reader struct {
	scanner *bufio.Scanner
	dest    io.Writer
}

// NewReader returns a Reader that parses data frames from the src io.Reader.
func NewReader(src io.Reader) *Reader {
	return newReader(src, nil)
}

// NewTeeReader returns a Reader that additionally writes all raw lines
// verbatim to dest. The dest writer typically backs a capture file so a
// recorded stream can be replayed later.
func NewTeeReader(src io.Reader, dest io.Writer) *Reader {
	return newReader(src, dest)
}

func newReader(src io.Reader, dest io.Writer) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &Reader{
		scanner: scanner,
		dest:    dest,
	}
}

// Next returns the next data frame from the stream. Lines without the
// "data: " prefix (blank keep-alives, ":" comments, other SSE fields) are
// skipped. Next returns nil, nil when the source is exhausted; a read error
// from the underlying stream is returned as-is so the caller can surface it
// as a terminal decode failure.
func (r *Reader) Next() (*Payload, error) {
	for r.scanner.Scan() {
		raw := r.scanner.Text()

		if r.dest != nil {
			// bufio.Scanner strips the newline from Scan() so we reinsert it here.
			if _, err := io.WriteString(r.dest, raw+"\n"); err != nil {
				return nil, err
			}
		}

		if !strings.HasPrefix(raw, dataPrefix) {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(raw, dataPrefix))
		if payload == DoneSentinel {
			return &Payload{Done: true}, nil
		}
		if payload == "" {
			continue
		}

		return &Payload{Raw: payload}, nil
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	return nil, nil
}
