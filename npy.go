package nutmeg

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
)

// array is one flat float64 column of an array container. Complex waves are
// split into a ".re" and an ".im" array.
type array struct {
	name string
	wave string
	part string
	unit string
	data []float64
}

func plotArrays(plot *Plot) []array {
	arrays := make([]array, 0, len(plot.Waves))
	for _, w := range plot.Waves {
		if plot.Kind == KindReal {
			arrays = append(arrays, array{name: w.Name, wave: w.Name, unit: w.Unit, data: w.Real})
			continue
		}

		re := make([]float64, len(w.Complex))
		im := make([]float64, len(w.Complex))
		for i, v := range w.Complex {
			re[i] = real(v)
			im[i] = imag(v)
		}
		arrays = append(arrays,
			array{name: w.Name + ".re", wave: w.Name, part: "re", unit: w.Unit, data: re},
			array{name: w.Name + ".im", wave: w.Name, part: "im", unit: w.Unit, data: im},
		)
	}
	return arrays
}

// arrayNames lists the names plotArrays gives the waves of plot, without
// copying any data.
func arrayNames(plot *Plot) []string {
	names := make([]string, 0, len(plot.Waves))
	for _, w := range plot.Waves {
		if plot.Kind == KindReal {
			names = append(names, w.Name)
			continue
		}
		names = append(names, w.Name+".re", w.Name+".im")
	}
	return names
}

// npy header must be a multiple of 64 bytes
const npyHeaderUnits = 64

// Magic string and format version 1.0, followed by the 2 byte header length.
var npyMagic = []byte{0x93, 'N', 'U', 'M', 'P', 'Y', 0x01, 0x00}

const npyPreambleSize = 10

// writeNPY writes data as a one-dimensional little-endian float64 .npy
// array.
func writeNPY(w io.Writer, data []float64) error {
	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%d,), }", len(data))

	// Pad with spaces plus one newline so that the data starts on a 64 byte
	// boundary.
	npad := npyHeaderUnits - (npyPreambleSize+len(header)+1)%npyHeaderUnits
	if npad == npyHeaderUnits {
		npad = 0
	}
	header += strings.Repeat(" ", npad) + "\n"

	buf := make([]byte, 0, npyPreambleSize+len(header)+8*len(data))
	buf = append(buf, npyMagic...)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(header)))
	buf = append(buf, header...)
	for _, v := range data {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}

	_, err := w.Write(buf)
	return err
}

// readNPY decodes what writeNPY produces.
func readNPY(buf []byte) ([]float64, error) {
	if len(buf) < npyPreambleSize || string(buf[:len(npyMagic)]) != string(npyMagic) {
		return nil, fmt.Errorf("%w: not a version 1.0 npy array", ErrUnsupportedFormat)
	}

	headerLen := int(binary.LittleEndian.Uint16(buf[8:10]))
	if len(buf) < npyPreambleSize+headerLen {
		return nil, fmt.Errorf("%w: npy header of %d bytes exceeds the array", ErrTruncatedFile, headerLen)
	}

	header := string(buf[npyPreambleSize : npyPreambleSize+headerLen])
	if !strings.Contains(header, "'descr': '<f8'") {
		return nil, fmt.Errorf("%w: npy array is not little-endian float64", ErrUnsupportedFormat)
	}

	start := strings.Index(header, "'shape': (")
	if start < 0 {
		return nil, fmt.Errorf("%w: npy header has no shape", ErrMalformedRecord)
	}

	var n int
	if _, err := fmt.Sscanf(header[start:], "'shape': (%d,)", &n); err != nil {
		return nil, fmt.Errorf("%w: npy shape: %v", ErrMalformedRecord, err)
	}

	payload := buf[npyPreambleSize+headerLen:]
	if len(payload) != 8*n {
		return nil, fmt.Errorf("%w: npy payload has %d bytes, want %d", ErrTruncatedFile, len(payload), 8*n)
	}

	data := make([]float64, n)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(payload[8*i:]))
	}
	return data, nil
}
