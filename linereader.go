package nutmeg

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// lineReader walks the textual parts of a Nutmeg file while keeping track of
// line numbers and byte offsets, so that every error can point at its
// origin. Binary payloads are skipped over with skip.
type lineReader struct {
	data []byte
	pos  int

	// Number of lines returned so far and the offset where the last one
	// started.
	lineNum   int
	lineStart int
}

func newLineReader(data []byte) *lineReader {
	r := &lineReader{data: data}
	if bytes.HasPrefix(data, utf8BOM) {
		r.pos = len(utf8BOM)
	}
	return r
}

// next returns the next line without its terminator. ok is false at the end
// of the data.
func (r *lineReader) next() (line string, ok bool) {
	if r.pos >= len(r.data) {
		return "", false
	}

	rest := r.data[r.pos:]
	end := bytes.IndexByte(rest, '\n')
	var raw []byte
	if end < 0 {
		raw = rest
		end = len(rest)
	} else {
		raw = rest[:end]
		end++
	}

	r.lineStart = r.pos
	r.pos += end
	r.lineNum++

	return decodeLine(bytes.TrimSuffix(raw, []byte{'\r'})), true
}

// remaining returns the unread bytes.
func (r *lineReader) remaining() []byte {
	return r.data[r.pos:]
}

// skip advances over n bytes of binary payload.
func (r *lineReader) skip(n int) {
	r.pos += n
}

// atEOF reports whether only whitespace is left.
func (r *lineReader) atEOF() bool {
	return len(bytes.TrimSpace(r.remaining())) == 0
}

func (r *lineReader) errorf(kind error, format string, args ...any) *ParseError {
	return &ParseError{
		Kind:   kind,
		Line:   r.lineNum,
		Offset: int64(r.lineStart),
		Msg:    fmt.Sprintf(format, args...),
	}
}

// offsetErrorf reports an error inside a binary payload, where line numbers
// have no meaning.
func (r *lineReader) offsetErrorf(kind error, offset int, format string, args ...any) *ParseError {
	return &ParseError{
		Kind:   kind,
		Offset: int64(offset),
		Msg:    fmt.Sprintf(format, args...),
	}
}

// Simulators running on legacy locales emit Latin-1 in titles and wave
// names. Such lines are transcoded so that the model only carries UTF-8.
func decodeLine(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
