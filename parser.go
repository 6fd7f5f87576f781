package nutmeg

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Parser turns the bytes of a Nutmeg file into plots. A Parser holds no state
// between calls and may be shared by concurrent callers.
type Parser struct {
	// MaxPoints bounds NumPoints × NumWaves of a single plot before its
	// columns are allocated. Zero disables the check.
	MaxPoints int

	logger logrus.FieldLogger
}

func NewParser(maxPoints int) *Parser {
	return &Parser{
		MaxPoints: maxPoints,
		logger:    logrus.WithField("tag", "Parser"),
	}
}

// Parse detects the encoding of data and parses every plot in it.
func Parse(data []byte) ([]*Plot, error) {
	return NewParser(DefaultMaxPoints).Parse(data)
}

// ParseASCII parses data that must be ASCII Nutmeg.
func ParseASCII(data []byte) ([]*Plot, error) {
	return NewParser(DefaultMaxPoints).ParseFormat(data, FormatASCII)
}

// ParseBinary parses data that must be binary Nutmeg.
func ParseBinary(data []byte) ([]*Plot, error) {
	return NewParser(DefaultMaxPoints).ParseFormat(data, FormatBinary)
}

func (p *Parser) Parse(data []byte) ([]*Plot, error) {
	format, err := DetectFormatBytes(data)
	if err != nil {
		return nil, err
	}
	return p.ParseFormat(data, format)
}

// ParseFormat parses data whose encoding is already known. Every plot must use
// that encoding. The result is all-or-nothing: on error no plots are
// returned.
func (p *Parser) ParseFormat(data []byte, format Format) ([]*Plot, error) {
	if format != FormatASCII && format != FormatBinary {
		return nil, &FormatError{Reason: "cannot parse format " + format.String()}
	}

	r := newLineReader(data)
	plots := make([]*Plot, 0)

	for {
		h, err := readHeader(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if h.payload != format {
			return nil, &ParseError{
				Kind:   ErrMalformedRecord,
				Line:   h.markerLine,
				Offset: h.markerOffset,
				Msg:    fmt.Sprintf("plot %q has a %v payload in a %v file", h.name, h.payload, format),
			}
		}

		if err := p.checkLimits(h); err != nil {
			return nil, err
		}

		logger := p.log().WithFields(logrus.Fields{
			"plot":   h.name,
			"kind":   h.kind,
			"points": h.numPoints,
			"waves":  h.numVars,
		})
		logger.Debug("parsing plot")

		if err := checkPayloadFits(r, h); err != nil {
			return nil, err
		}

		plot := newPlot(h)
		if format == FormatBinary {
			err = readBinaryValues(r, h, plot)
		} else {
			err = readASCIIValues(r, h, plot)
		}
		if err != nil {
			return nil, err
		}

		if err := plot.Validate(); err != nil {
			return nil, &ParseError{Kind: ErrMalformedRecord, Line: h.markerLine, Offset: h.markerOffset, Msg: err.Error()}
		}

		plots = append(plots, plot)
	}

	if len(plots) == 0 {
		return nil, &FormatError{Reason: "no plots found"}
	}

	p.log().WithField("plots", len(plots)).Debug("parsed file")
	return plots, nil
}

func (p *Parser) checkLimits(h *header) error {
	if p.MaxPoints <= 0 {
		return nil
	}

	if h.numPoints > p.MaxPoints/h.numVars {
		return &ParseError{
			Kind:   ErrLimitExceeded,
			Line:   h.markerLine,
			Offset: h.markerOffset,
			Msg:    fmt.Sprintf("plot %q holds %d points of %d waves, limit is %d values", h.name, h.numPoints, h.numVars, p.MaxPoints),
		}
	}
	return nil
}

// checkPayloadFits rejects headers declaring more points than the rest of the
// data can hold, before any column is allocated.
func checkPayloadFits(r *lineReader, h *header) error {
	rest := len(r.remaining())
	if h.numVars > rest {
		return r.errorf(ErrTruncatedFile, "%d bytes left for %d waves of plot %q", rest, h.numVars, h.name)
	}

	var capacity int
	if h.payload == FormatBinary {
		capacity = rest / payloadSize(h.kind, 1, h.numVars)
	} else {
		// Every token needs at least one character and one separator.
		capacity = (rest + 1) / 2 / (h.numVars + 1)
	}

	if h.numPoints > capacity {
		return r.errorf(ErrTruncatedFile, "%d bytes left for %d points of %d waves of plot %q", rest, h.numPoints, h.numVars, h.name)
	}
	return nil
}

func (p *Parser) log() logrus.FieldLogger {
	if p.logger == nil {
		return logrus.WithField("tag", "Parser")
	}
	return p.logger
}
