package provider

import (
	"bufio"
	"io"
	"strings"
)

// sseReader is a line-buffered Server-Sent-Events scanner shared by all
// streaming providers (§4.3's "Parsing layer for SSE"). bufio.Reader's
// internal buffer already carries a partial trailing line across network
// reads, satisfying the spec's "maintains a partial line buffer across
// chunks" requirement without extra bookkeeping.
type sseReader struct {
	r *bufio.Reader
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next "data: " payload, stripped of its prefix, or
// io.EOF when the stream ends. Blank lines and non-data fields (event:,
// id:, comments) are skipped.
func (s *sseReader) Next() (string, error) {
	for {
		line, err := s.r.ReadString('\n')
		if line == "" && err != nil {
			return "", err
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			if err != nil {
				return "", err
			}
			continue
		}
		if data, ok := strings.CutPrefix(trimmed, "data:"); ok {
			return strings.TrimSpace(data), nil
		}
		if err != nil {
			return "", err
		}
	}
}

// IsDone reports whether a payload is the SSE stream terminator.
func IsDone(payload string) bool {
	return payload == "[DONE]"
}
