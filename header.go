package nutmeg

import (
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Header keywords, case-sensitive.
const (
	keyTitle        = "Title:"
	keyDate         = "Date:"
	keyPlotname     = "Plotname:"
	keyFlags        = "Flags:"
	keyNumVariables = "No. Variables:"
	keyNumPoints    = "No. Points:"
	keyVariables    = "Variables:"
	keyValues       = "Values:"
	keyBinary       = "Binary:"
)

var headerKeys = []string{
	keyTitle,
	keyDate,
	keyPlotname,
	keyFlags,
	keyNumVariables,
	keyNumPoints,
	keyVariables,
	keyValues,
	keyBinary,
}

type varDecl struct {
	name string
	unit string
}

// header is the textual part of one plot, up to and including the payload
// marker.
type header struct {
	title string
	date  string
	name  string
	kind  Kind

	numVars   int
	numPoints int
	vars      []varDecl

	// Encoding of the payload following the header.
	payload Format

	// Position of the payload marker line, for error reports.
	markerLine   int
	markerOffset int64
}

// readHeader reads the next plot header. It returns io.EOF when only
// whitespace is left.
func readHeader(r *lineReader) (*header, error) {
	h := &header{numVars: -1, numPoints: -1}
	started := false
	sawFlags := false

	for {
		line, ok := r.next()
		if !ok {
			if !started {
				return nil, io.EOF
			}
			return nil, r.errorf(ErrTruncatedFile, "file ends inside the header of plot %q", h.name)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, found := cutKeyword(line)
		if !found {
			return nil, r.errorf(ErrMalformedRecord, "unexpected header line %q", abbreviate(line))
		}
		started = true

		switch key {
		case keyTitle:
			if h.name != "" {
				return nil, r.errorf(ErrMalformedRecord, "Title: after Plotname: in plot %q", h.name)
			}
			h.title = value
		case keyDate:
			if h.name != "" {
				return nil, r.errorf(ErrMalformedRecord, "Date: after Plotname: in plot %q", h.name)
			}
			h.date = value
		case keyPlotname:
			if h.name != "" {
				return nil, r.errorf(ErrMalformedRecord, "plot %q has no Values: or Binary: section", h.name)
			}
			if value == "" {
				return nil, r.errorf(ErrMalformedRecord, "empty Plotname:")
			}
			h.name = value
		case keyFlags:
			kind, ok := parseFlags(value)
			if !ok {
				return nil, r.errorf(ErrMalformedRecord, "Flags: %q names neither real nor complex", value)
			}
			h.kind = kind
			sawFlags = true
		case keyNumVariables:
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return nil, r.errorf(ErrMalformedRecord, "invalid No. Variables: %q", value)
			}
			h.numVars = n
		case keyNumPoints:
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return nil, r.errorf(ErrMalformedRecord, "invalid No. Points: %q", value)
			}
			// Operating point dumps declare zero points but carry one.
			if n == 0 {
				n = 1
			}
			h.numPoints = n
		case keyVariables:
			if h.numVars < 0 {
				return nil, r.errorf(ErrMalformedRecord, "Variables: before No. Variables:")
			}
			if err := readVariables(r, h, value); err != nil {
				return nil, err
			}
		case keyValues, keyBinary:
			if key == keyValues {
				h.payload = FormatASCII
			} else {
				h.payload = FormatBinary
			}
			h.markerLine = r.lineNum
			h.markerOffset = int64(r.lineStart)

			switch {
			case h.name == "":
				return nil, r.errorf(ErrMalformedRecord, "%s without Plotname:", key)
			case !sawFlags:
				return nil, r.errorf(ErrMalformedRecord, "plot %q has no Flags:", h.name)
			case h.numVars < 0:
				return nil, r.errorf(ErrMalformedRecord, "plot %q has no No. Variables:", h.name)
			case h.numPoints < 0:
				return nil, r.errorf(ErrMalformedRecord, "plot %q has no No. Points:", h.name)
			case len(h.vars) != h.numVars:
				return nil, r.errorf(ErrMalformedRecord, "plot %q declares %d of %d variables", h.name, len(h.vars), h.numVars)
			}
			return h, nil
		default:
			// Command:, Option:, Dimensions: and vendor extensions.
		}
	}
}

// readVariables reads numVars declarations "<index> <name> <unit> [...]".
// The first one may share the line with the Variables: keyword.
func readVariables(r *lineReader, h *header, first string) error {
	h.vars = make([]varDecl, 0, h.numVars)
	seen := make(map[string]struct{}, h.numVars)

	for i := 0; i < h.numVars; i++ {
		var line string
		if i == 0 && first != "" {
			line = first
		} else {
			for {
				next, ok := r.next()
				if !ok {
					return r.errorf(ErrTruncatedFile, "file ends after %d of %d variable declarations", i, h.numVars)
				}
				line = strings.TrimSpace(next)
				if line != "" {
					break
				}
			}
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			return r.errorf(ErrMalformedRecord, "variable declaration %q needs index, name and unit", abbreviate(line))
		}

		index, err := strconv.Atoi(fields[0])
		if err != nil || index != i {
			return r.errorf(ErrMalformedRecord, "variable index %q, want %d", fields[0], i)
		}

		name := fields[1]
		if _, ok := seen[name]; ok {
			return r.errorf(ErrMalformedRecord, "variable %q declared twice", name)
		}
		seen[name] = struct{}{}

		h.vars = append(h.vars, varDecl{name: name, unit: fields[2]})
	}

	return nil
}

// cutKeyword splits a header line into its keyword and trimmed value. Lines
// of the form "Word [Word...]: value" are accepted as unknown keywords.
func cutKeyword(line string) (key, value string, ok bool) {
	for _, k := range headerKeys {
		if strings.HasPrefix(line, k) {
			return k, strings.TrimSpace(line[len(k):]), true
		}
	}

	colon := strings.IndexByte(line, ':')
	if colon <= 0 {
		return "", "", false
	}
	for _, c := range line[:colon] {
		if !(c == ' ' || c == '.' || c == '-' || c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')) {
			return "", "", false
		}
	}
	return line[:colon+1], strings.TrimSpace(line[colon+1:]), true
}

// parseFlags accepts "real" or "complex" among other words such as
// "forward" or "padded".
func parseFlags(value string) (Kind, bool) {
	for _, word := range strings.Fields(value) {
		switch strings.ToLower(word) {
		case "real":
			return KindReal, true
		case "complex":
			return KindComplex, true
		}
	}
	return KindReal, false
}

func abbreviate(s string) string {
	const limit = 40
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
