package nutmeg

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
)

// WriteText writes plot as delimited text: a header row "index,<waves...>"
// then one row per point. Complex values are rendered as "a+bj".
func WriteText(w io.Writer, plot *Plot, delimiter rune) error {
	csvWriter := csv.NewWriter(w)
	csvWriter.Comma = delimiter

	header := append([]string{"index"}, plot.WaveNames()...)
	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]string, len(plot.Waves)+1)
	for point := 0; point < plot.NumPoints; point++ {
		row[0] = strconv.Itoa(point)
		for i, w := range plot.Waves {
			if plot.Kind == KindComplex {
				row[i+1] = formatComplex(w.Complex[point])
			} else {
				row[i+1] = formatFloat(w.Real[point])
			}
		}

		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write point %d: %w", point, err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

func writeTextFile(path string, plot *Plot, delimiter rune) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}

	if err := WriteText(f, plot, delimiter); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatComplex(v complex128) string {
	re, im := real(v), imag(v)
	if math.Signbit(im) {
		return formatFloat(re) + "-" + formatFloat(-im) + "j"
	}
	return formatFloat(re) + "+" + formatFloat(im) + "j"
}
