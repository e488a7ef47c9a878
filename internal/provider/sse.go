package provider

import (
	"bytes"
	"io"
	"strings"
)

// doneSentinel terminates a well-behaved provider stream.
const doneSentinel = "[DONE]"

// SSEScanner incrementally decodes a text/event-stream body into data
// payloads. Events are delimited by blank lines (\r?\n\r?\n); within one
// event, every line starting with "data:" contributes to the payload, other
// lines are ignored, and [DONE] sentinels are skipped. A partial event is
// kept as a remainder across reads, so chunk boundaries landing mid-event
// (or mid-delimiter) never corrupt the payload sequence.
type SSEScanner struct {
	reader    io.Reader
	remainder []byte
	buf       []byte
	eof       bool
}

// NewSSEScanner wraps a response body.
func NewSSEScanner(r io.Reader) *SSEScanner {
	return &SSEScanner{reader: r, buf: make([]byte, 4096)}
}

// Next returns the next data payload. io.EOF signals a cleanly exhausted
// stream; any other error is the underlying read failure.
func (s *SSEScanner) Next() ([]byte, error) {
	for {
		if payload, ok := s.cutEvent(); ok {
			if len(payload) == 0 || string(payload) == doneSentinel {
				continue
			}
			return payload, nil
		}

		if s.eof {
			// Flush a trailing event that was never blank-line terminated.
			if len(s.remainder) > 0 {
				payload := extractData(s.remainder)
				s.remainder = nil
				if len(payload) > 0 && string(payload) != doneSentinel {
					return payload, nil
				}
			}
			return nil, io.EOF
		}

		n, err := s.reader.Read(s.buf)
		if n > 0 {
			s.remainder = append(s.remainder, s.buf[:n]...)
		}
		if err == io.EOF {
			s.eof = true
		} else if err != nil {
			return nil, err
		}
	}
}

// cutEvent splits one complete event off the remainder, if a blank-line
// delimiter is present.
func (s *SSEScanner) cutEvent() ([]byte, bool) {
	idx, dlen := indexDelimiter(s.remainder)
	if idx < 0 {
		return nil, false
	}
	raw := s.remainder[:idx]
	s.remainder = s.remainder[idx+dlen:]
	return extractData(raw), true
}

// indexDelimiter finds the earliest \n\n, \n\r\n, \r\n\n, or \r\n\r\n.
func indexDelimiter(data []byte) (idx, length int) {
	for i := 0; i < len(data); i++ {
		if data[i] != '\n' {
			continue
		}
		j := i + 1
		if j < len(data) && data[j] == '\r' {
			j++
		}
		if j < len(data) && data[j] == '\n' {
			return i, j - i + 1
		}
	}
	return -1, 0
}

// extractData concatenates the data: lines of one raw event.
func extractData(raw []byte) []byte {
	var payload []byte
	for _, line := range bytes.Split(raw, []byte("\n")) {
		text := strings.TrimSuffix(string(line), "\r")
		if !strings.HasPrefix(text, "data:") {
			continue
		}
		value := strings.TrimPrefix(text, "data:")
		value = strings.TrimPrefix(value, " ")
		payload = append(payload, value...)
	}
	return payload
}
