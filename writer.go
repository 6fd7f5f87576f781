package nutmeg

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteASCII encodes plots as ASCII Nutmeg. Values are written with the
// shortest representation that parses back to the same float64.
func WriteASCII(w io.Writer, plots []*Plot) error {
	return writePlots(w, plots, FormatASCII)
}

// WriteBinary encodes plots as binary Nutmeg with big-endian doubles.
func WriteBinary(w io.Writer, plots []*Plot) error {
	return writePlots(w, plots, FormatBinary)
}

// Write encodes plots in the given format.
func Write(w io.Writer, plots []*Plot, format Format) error {
	switch format {
	case FormatASCII, FormatBinary:
		return writePlots(w, plots, format)
	default:
		return fmt.Errorf("%w: cannot encode format %v", ErrUnsupportedFormat, format)
	}
}

func writePlots(w io.Writer, plots []*Plot, format Format) error {
	for _, plot := range plots {
		if err := plot.Validate(); err != nil {
			return err
		}
		if err := checkEncodable(plot); err != nil {
			return err
		}
	}

	bw := bufio.NewWriter(w)
	for _, plot := range plots {
		writeHeader(bw, plot)

		if format == FormatBinary {
			bw.WriteString(keyBinary + "\n")
			bw.Write(encodeBinaryValues(plot))
			continue
		}

		bw.WriteString(keyValues + "\n")
		writeASCIIValues(bw, plot)
	}

	return bw.Flush()
}

func writeHeader(bw *bufio.Writer, plot *Plot) {
	if plot.Title != "" {
		fmt.Fprintf(bw, "%s %s\n", keyTitle, plot.Title)
	}
	if plot.Date != "" {
		fmt.Fprintf(bw, "%s %s\n", keyDate, plot.Date)
	}
	fmt.Fprintf(bw, "%s %s\n", keyPlotname, plot.Name)
	fmt.Fprintf(bw, "%s %s\n", keyFlags, plot.Kind)
	fmt.Fprintf(bw, "%s %d\n", keyNumVariables, len(plot.Waves))
	fmt.Fprintf(bw, "%s %d\n", keyNumPoints, plot.NumPoints)
	bw.WriteString(keyVariables + "\n")
	for i, wave := range plot.Waves {
		fmt.Fprintf(bw, "\t%d\t%s\t%s\n", i, wave.Name, wave.Unit)
	}
}

// One line per value: the first wave of a point shares its line with the
// point index, the others are indented.
func writeASCIIValues(bw *bufio.Writer, plot *Plot) {
	for point := 0; point < plot.NumPoints; point++ {
		for i, wave := range plot.Waves {
			if i == 0 {
				bw.WriteString(strconv.Itoa(point))
			}
			bw.WriteByte('\t')

			if plot.Kind == KindComplex {
				v := wave.Complex[point]
				bw.WriteString(formatFloat(real(v)))
				bw.WriteByte(',')
				bw.WriteString(formatFloat(imag(v)))
			} else {
				bw.WriteString(formatFloat(wave.Real[point]))
			}
			bw.WriteByte('\n')
		}
		bw.WriteByte('\n')
	}
}

// Names and units are whitespace separated in the header, plot names and
// titles are single lines.
func checkEncodable(plot *Plot) error {
	for _, s := range []string{plot.Title, plot.Date, plot.Name} {
		if strings.ContainsAny(s, "\r\n") {
			return fmt.Errorf("%w: header value %q spans lines", ErrMalformedRecord, s)
		}
	}
	for _, wave := range plot.Waves {
		if strings.ContainsAny(wave.Name, " \t\r\n") || strings.ContainsAny(wave.Unit, " \t\r\n") {
			return fmt.Errorf("%w: wave %q or its unit %q contains whitespace", ErrMalformedRecord, wave.Name, wave.Unit)
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
