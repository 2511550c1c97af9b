package interceptor

import (
	"bytes"
	"io"
	"strings"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// sseRewriter applies fn to the data payload of every event of a
// text/event-stream body as the events complete. Multi-line data fields are
// joined with "\n" before fn sees them. Events fn leaves unchanged are
// written back as they were, with line endings normalized to "\n".
type sseRewriter struct {
	w       io.Writer
	fn      func([]byte) []byte
	pending []byte
	cr      bool // the last chunk ended in "\r"
	started bool
}

func newSSERewriter(w io.Writer, fn func([]byte) []byte) *sseRewriter {
	return &sseRewriter{w: w, fn: fn}
}

// Write buffers data and writes out every event it completes.
func (s *sseRewriter) Write(data []byte) (int, error) {
	n := len(data)
	chunk := data
	if s.cr {
		chunk = append([]byte{'\r'}, chunk...)
		s.cr = false
	}
	if len(chunk) > 0 && chunk[len(chunk)-1] == '\r' {
		chunk = chunk[:len(chunk)-1]
		s.cr = true
	}
	s.pending = append(s.pending, normalizeNewlines(chunk)...)

	if !s.started {
		if len(s.pending) < len(utf8BOM) && bytes.HasPrefix(utf8BOM, s.pending) {
			return n, nil
		}
		s.pending = bytes.TrimPrefix(s.pending, utf8BOM)
		s.started = true
	}
	return n, s.drain()
}

func (s *sseRewriter) drain() error {
	for {
		end := bytes.Index(s.pending, []byte("\n\n"))
		if end < 0 {
			return nil
		}
		event := rewriteEvent(string(s.pending[:end]), s.fn) + "\n\n"
		s.pending = s.pending[end+2:]
		if _, err := io.WriteString(s.w, event); err != nil {
			return err
		}
	}
}

// Close writes whatever trails the last complete event, rewritten like an
// event of its own.
func (s *sseRewriter) Close() error {
	if s.cr {
		s.pending = append(s.pending, '\n')
		s.cr = false
		if err := s.drain(); err != nil {
			return err
		}
	}
	if len(s.pending) == 0 {
		return nil
	}
	rest := rewriteEvent(string(s.pending), s.fn)
	s.pending = nil
	_, err := io.WriteString(s.w, rest)
	return err
}

// normalizeNewlines turns "\r\n" and lone "\r" line endings into "\n".
func normalizeNewlines(b []byte) []byte {
	if bytes.IndexByte(b, '\r') < 0 {
		return b
	}
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(b, []byte("\r"), []byte("\n"))
}

// dataValue returns the value of a data field line.
func dataValue(line string) (string, bool) {
	if line == "data" {
		return "", true
	}
	value, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(value, " "), true
}

func rewriteEvent(event string, fn func([]byte) []byte) string {
	lines := strings.Split(event, "\n")

	var data []string
	first := -1
	for n, line := range lines {
		value, ok := dataValue(line)
		if !ok {
			continue
		}
		if first < 0 {
			first = n
		}
		data = append(data, value)
	}
	if first < 0 {
		return event
	}

	payload := []byte(strings.Join(data, "\n"))
	rewritten := fn(payload)
	if bytes.Equal(rewritten, payload) {
		return event
	}

	kept := make([]string, 0, len(lines))
	for n, line := range lines {
		if n == first {
			for _, l := range strings.Split(string(rewritten), "\n") {
				kept = append(kept, "data: "+l)
			}
			continue
		}
		if _, ok := dataValue(line); !ok {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
