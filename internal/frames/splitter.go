package frames

import (
	"bytes"
	"strings"
)

// Splitter reassembles newline-delimited records from arbitrary byte chunks.
// Incomplete trailing data is held until the next chunk or Flush.
type Splitter struct {
	buf []byte
}

// Write appends a chunk and returns every record it completes, blank records
// excluded.
func (s *Splitter) Write(chunk []byte) []string {
	s.buf = append(s.buf, chunk...)

	var records []string
	for {
		i := bytes.IndexByte(s.buf, '\n')
		if i < 0 {
			break
		}
		if rec := clean(s.buf[:i]); rec != "" {
			records = append(records, rec)
		}
		s.buf = s.buf[i+1:]
	}
	// Reclaim the consumed prefix once the buffer drains.
	if len(s.buf) == 0 {
		s.buf = s.buf[:0:0]
	}
	return records
}

// Flush returns the pending unterminated record, if any, and resets the
// splitter.
func (s *Splitter) Flush() (string, bool) {
	rec := clean(s.buf)
	s.buf = nil
	return rec, rec != ""
}

// Pending reports the number of buffered bytes not yet forming a record.
func (s *Splitter) Pending() int {
	return len(s.buf)
}

func clean(line []byte) string {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if strings.TrimSpace(string(line)) == "" {
		return ""
	}
	return string(line)
}
