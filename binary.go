package nutmeg

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Every binary sample is a big-endian IEEE-754 double.
const bytesPerValue = 8

// payloadSize is the number of bytes following "Binary:" for one plot.
func payloadSize(kind Kind, numPoints, numVars int) int {
	n := numPoints * numVars * bytesPerValue
	if kind == KindComplex {
		n *= 2
	}
	return n
}

// decodeBinaryValues fills the columns of plot from a point-major payload:
// all waves of point 0, then all waves of point 1 and so on. Complex values
// are stored as the real part immediately followed by the imaginary part.
func decodeBinaryValues(buf []byte, plot *Plot) error {
	expectedSize := payloadSize(plot.Kind, plot.NumPoints, len(plot.Waves))
	if len(buf) != expectedSize {
		return fmt.Errorf("buffer size mismatch: expected %d bytes for %d points of %d waves, got %d", expectedSize, plot.NumPoints, len(plot.Waves), len(buf))
	}

	offset := 0
	for point := 0; point < plot.NumPoints; point++ {
		for _, w := range plot.Waves {
			re := math.Float64frombits(binary.BigEndian.Uint64(buf[offset : offset+8]))
			offset += 8

			if plot.Kind == KindReal {
				w.Real[point] = re
				continue
			}

			im := math.Float64frombits(binary.BigEndian.Uint64(buf[offset : offset+8]))
			offset += 8
			w.Complex[point] = complex(re, im)
		}
	}

	return nil
}

// encodeBinaryValues is the inverse of decodeBinaryValues.
func encodeBinaryValues(plot *Plot) []byte {
	buf := make([]byte, payloadSize(plot.Kind, plot.NumPoints, len(plot.Waves)))

	offset := 0
	for point := 0; point < plot.NumPoints; point++ {
		for _, w := range plot.Waves {
			if plot.Kind == KindReal {
				binary.BigEndian.PutUint64(buf[offset:offset+8], math.Float64bits(w.Real[point]))
				offset += 8
				continue
			}

			v := w.Complex[point]
			binary.BigEndian.PutUint64(buf[offset:offset+8], math.Float64bits(real(v)))
			binary.BigEndian.PutUint64(buf[offset+8:offset+16], math.Float64bits(imag(v)))
			offset += 16
		}
	}

	return buf
}

// readBinaryValues decodes the payload following a Binary: marker and moves
// the reader past it. After the payload only whitespace or the header of
// another plot may follow.
func readBinaryValues(r *lineReader, h *header, plot *Plot) error {
	start := r.pos
	size := payloadSize(h.kind, h.numPoints, h.numVars)

	rest := r.remaining()
	if len(rest) < size {
		return r.offsetErrorf(ErrTruncatedFile, start, "binary payload of plot %q holds %d bytes, want %d for %d points of %d waves", h.name, len(rest), size, h.numPoints, h.numVars)
	}

	if err := decodeBinaryValues(rest[:size], plot); err != nil {
		return r.offsetErrorf(ErrMalformedRecord, start, "%v", err)
	}
	r.skip(size)

	if r.atEOF() {
		return nil
	}

	next := bytes.TrimLeft(r.remaining(), " \t\r\n")
	if !startsPlot(next) {
		return r.offsetErrorf(ErrTrailingData, start+size, "%d bytes after the binary payload of plot %q do not start another plot", len(r.remaining()), h.name)
	}
	return nil
}
