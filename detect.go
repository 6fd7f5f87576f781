package nutmeg

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
)

// Format is the on-disk encoding of a Nutmeg file.
type Format int

const (
	FormatUnknown Format = iota
	FormatASCII
	FormatBinary
)

func (f Format) String() string {
	switch f {
	case FormatASCII:
		return "ascii"
	case FormatBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Read buffer of the detector. Headers may be far larger than this, files
// with thousands of variables are common, so the header is scanned line by
// line until its first payload marker.
const detectBufferSize = 64 << 10

// DetectFormat classifies the file at path as ASCII or binary Nutmeg by
// looking at its content. The file extension is never consulted.
func DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, withPath(path, fileError(err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return FormatUnknown, withPath(path, fileError(err))
	}
	if info.IsDir() {
		return FormatUnknown, &FormatError{Path: path, Reason: "is a directory"}
	}

	br := bufio.NewReaderSize(f, detectBufferSize)
	if bom, _ := br.Peek(len(utf8BOM)); bytes.Equal(bom, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	var c classifier
	continued := false
	for {
		chunk, err := br.ReadSlice('\n')
		if format, reason, done := c.feed(chunk, continued); done {
			if format == FormatUnknown {
				return FormatUnknown, &FormatError{Path: path, Reason: reason}
			}
			return format, nil
		}

		// Lines longer than the buffer arrive in several chunks.
		continued = errors.Is(err, bufio.ErrBufferFull)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !continued {
			return FormatUnknown, withPath(path, fileError(err))
		}
	}

	format, reason := c.finish()
	if format == FormatUnknown {
		return FormatUnknown, &FormatError{Path: path, Reason: reason}
	}
	return format, nil
}

// DetectFormatBytes is DetectFormat for data already in memory.
func DetectFormatBytes(data []byte) (Format, error) {
	format, reason := classify(data)
	if format == FormatUnknown {
		return FormatUnknown, &FormatError{Reason: reason}
	}
	return format, nil
}

// classify walks the textual header of data. The first marker line decides:
// "Binary:" means binary, "Values:" means ASCII. Everything before the
// marker must be text and must open with a Nutmeg header keyword.
func classify(data []byte) (Format, string) {
	data = bytes.TrimPrefix(data, utf8BOM)

	var c classifier
	for len(data) > 0 {
		end := bytes.IndexByte(data, '\n')
		var line []byte
		if end >= 0 {
			line, data = data[:end+1], data[end+1:]
		} else {
			line, data = data, nil
		}

		if format, reason, done := c.feed(line, false); done {
			return format, reason
		}
	}

	return c.finish()
}

// classifier follows the header keywords seen so far.
type classifier struct {
	started      bool
	sawPlotname  bool
	sawVariables bool
}

// feed inspects one line, or the continuation of a line when continued is
// set. done reports that the line settled the format.
func (c *classifier) feed(line []byte, continued bool) (format Format, reason string, done bool) {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	if !isTextLine(line) {
		return FormatUnknown, "binary content before the Nutmeg header", true
	}
	if continued {
		return FormatUnknown, "", false
	}

	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return FormatUnknown, "", false
	}

	if !c.started {
		c.started = true
		if !startsPlot(trimmed) {
			return FormatUnknown, "no Nutmeg header found", true
		}
	}

	switch {
	case bytes.HasPrefix(trimmed, []byte(keyPlotname)):
		c.sawPlotname = true
	case bytes.HasPrefix(trimmed, []byte(keyNumVariables)):
		c.sawVariables = true
	case bytes.HasPrefix(trimmed, []byte(keyBinary)):
		if c.sawPlotname {
			return FormatBinary, "", true
		}
		return FormatUnknown, "Binary: marker without Plotname:", true
	case bytes.HasPrefix(trimmed, []byte(keyValues)):
		if c.sawPlotname {
			return FormatASCII, "", true
		}
		return FormatUnknown, "Values: marker without Plotname:", true
	}
	return FormatUnknown, "", false
}

// finish decides at the end of the data. A header cut short before its
// marker is left to the ASCII parser, which reports the truncation.
func (c *classifier) finish() (Format, string) {
	switch {
	case !c.started:
		return FormatUnknown, "file is empty"
	case c.sawPlotname && c.sawVariables:
		return FormatASCII, ""
	default:
		return FormatUnknown, "no Nutmeg header found"
	}
}

// startsPlot reports whether line opens a plot header.
func startsPlot(line []byte) bool {
	return bytes.HasPrefix(line, []byte(keyTitle)) ||
		bytes.HasPrefix(line, []byte(keyDate)) ||
		bytes.HasPrefix(line, []byte(keyPlotname))
}

// Control characters other than tab, carriage return and form feed never
// occur in the textual parts of a Nutmeg file. Bytes above 0x7f are allowed
// for UTF-8 and Latin-1 titles.
func isTextLine(line []byte) bool {
	for _, b := range line {
		if b < 0x20 && b != '\t' && b != '\r' && b != '\f' {
			return false
		}
		if b == 0x7f {
			return false
		}
	}
	return true
}
