package nutmeg

import (
	"regexp"
	"strconv"
	"strings"
)

// Split on any number of spaces or tabs.
var valueSplitter = regexp.MustCompile("[ \t]+")

// valueTokenizer hands out the whitespace separated tokens of a Values:
// section, pulling lines from the underlying lineReader as needed.
type valueTokenizer struct {
	r      *lineReader
	fields []string

	// Current position in the section, for error messages.
	point int
	wave  string
}

func newValueTokenizer(r *lineReader) *valueTokenizer {
	return &valueTokenizer{r: r}
}

func (t *valueTokenizer) at(point int, wave string) {
	t.point = point
	t.wave = wave
}

// next returns the next token, or a TruncatedFile error at the end of data.
func (t *valueTokenizer) next() (string, error) {
	for len(t.fields) == 0 {
		line, ok := t.r.next()
		if !ok {
			return "", t.r.errorf(ErrTruncatedFile, "file ends before point %d of %s", t.point, t.wave)
		}

		t.fields = Filter(valueSplitter.Split(strings.TrimSpace(line), -1), func(value string) bool {
			return len(value) > 0
		})
	}

	token := t.fields[0]
	t.fields = t.fields[1:]
	return token, nil
}

// finish fails if the line holding the last value carries more tokens.
func (t *valueTokenizer) finish() error {
	if len(t.fields) > 0 {
		return t.r.errorf(ErrMalformedRecord, "unexpected token %q after the last value", abbreviate(t.fields[0]))
	}
	return nil
}

func (t *valueTokenizer) float(token string) (float64, error) {
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, t.r.errorf(ErrMalformedRecord, "point %d of %s: %q is not a number", t.point, t.wave, abbreviate(token))
	}
	return v, nil
}

func (t *valueTokenizer) real() (float64, error) {
	token, err := t.next()
	if err != nil {
		return 0, err
	}
	return t.float(token)
}

// complex reads "re,im" as one token or "re im" as two.
func (t *valueTokenizer) complex() (complex128, error) {
	token, err := t.next()
	if err != nil {
		return 0, err
	}

	var reToken, imToken string
	if before, after, found := strings.Cut(token, ","); found {
		reToken, imToken = before, after
	} else {
		reToken = token
		imToken, err = t.next()
		if err != nil {
			return 0, err
		}
	}

	re, err := t.float(reToken)
	if err != nil {
		return 0, err
	}
	im, err := t.float(imToken)
	if err != nil {
		return 0, err
	}
	return complex(re, im), nil
}

// readASCIIValues fills the columns of plot from a Values: section. Each
// point is "<index> <value of wave 0>" followed by one value per remaining
// wave, usually one per line.
func readASCIIValues(r *lineReader, h *header, plot *Plot) error {
	t := newValueTokenizer(r)
	for point := 0; point < h.numPoints; point++ {
		t.at(point, "index")
		token, err := t.next()
		if err != nil {
			return err
		}

		index, err := strconv.Atoi(token)
		if err != nil {
			return r.errorf(ErrMalformedRecord, "point index %q is not an integer", abbreviate(token))
		}
		if index != point {
			return r.errorf(ErrMalformedRecord, "point index %d, want %d", index, point)
		}

		for _, w := range plot.Waves {
			t.at(point, w.Name)

			if h.kind == KindComplex {
				v, err := t.complex()
				if err != nil {
					return err
				}
				w.Complex[point] = v
				continue
			}

			v, err := t.real()
			if err != nil {
				return err
			}
			w.Real[point] = v
		}
	}

	return t.finish()
}
