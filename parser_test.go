package nutmeg

import (
	"bytes"
	"errors"
	"math/cmplx"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

const ngspiceTran = `Title: rc circuit
Date: Thu Jan  1 00:00:00 2026
Plotname: Transient Analysis ` + "`tran'" + `
Flags: real
No. Variables: 3
No. Points: 2
Variables:
	0	time	time
	1	v(in)	voltage
	2	v(out)	voltage
Values:
 0	0.000000000000000e+00
	1.000000000000000e+00
	0.000000000000000e+00

 1	1.000000000000000e-06
	1.000000000000000e+00
	6.321205588285577e-01

`

// TestParseASCII tests the accepted variants of the ASCII encoding.
func TestParseASCII(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []*Plot
	}{
		{
			name:  "ngspice layout",
			input: ngspiceTran,
			want: []*Plot{{
				Title:     "rc circuit",
				Date:      "Thu Jan  1 00:00:00 2026",
				Name:      "Transient Analysis `tran'",
				Kind:      KindReal,
				NumPoints: 2,
				Waves: []*Wave{
					{Name: "time", Unit: "time", Real: []float64{0, 1e-6}},
					{Name: "v(in)", Unit: "voltage", Real: []float64{1, 1}},
					{Name: "v(out)", Unit: "voltage", Real: []float64{0, 6.321205588285577e-01}},
				},
			}},
		},
		{
			name: "first variable inline and one point per line",
			input: "Plotname: Transient Analysis\n" +
				"Flags: real\n" +
				"No. Variables: 2\n" +
				"No. Points: 2\n" +
				"Variables: 0 time s\n" +
				"\t1 v(out) V\n" +
				"Values:\n" +
				"0 0.0 1.5\n" +
				"1 2e-9 -1.5\n",
			want: []*Plot{{
				Name:      "Transient Analysis",
				Kind:      KindReal,
				NumPoints: 2,
				Waves: []*Wave{
					{Name: "time", Unit: "s", Real: []float64{0, 2e-9}},
					{Name: "v(out)", Unit: "V", Real: []float64{1.5, -1.5}},
				},
			}},
		},
		{
			name: "complex with comma",
			input: "Plotname: AC Analysis `ac'\n" +
				"Flags: complex\n" +
				"No. Variables: 2\n" +
				"No. Points: 1\n" +
				"Variables:\n" +
				"\t0\tfrequency\tfrequency\n" +
				"\t1\tv(out)\tvoltage\n" +
				"Values:\n" +
				" 0\t1.0e3,0.0e0\n" +
				"\t3,-4\n",
			want: []*Plot{{
				Name:      "AC Analysis `ac'",
				Kind:      KindComplex,
				NumPoints: 1,
				Waves: []*Wave{
					{Name: "frequency", Unit: "frequency", Complex: []complex128{complex(1000, 0)}},
					{Name: "v(out)", Unit: "voltage", Complex: []complex128{complex(3, -4)}},
				},
			}},
		},
		{
			name: "complex as two tokens",
			input: "Plotname: AC Analysis `ac'\n" +
				"Flags: complex\n" +
				"No. Variables: 2\n" +
				"No. Points: 1\n" +
				"Variables:\n" +
				"\t0\tfrequency\tfrequency\n" +
				"\t1\tv(out)\tvoltage\n" +
				"Values:\n" +
				" 0\t1.0e3 0\n" +
				"\t3 4\n",
			want: []*Plot{{
				Name:      "AC Analysis `ac'",
				Kind:      KindComplex,
				NumPoints: 1,
				Waves: []*Wave{
					{Name: "frequency", Unit: "frequency", Complex: []complex128{complex(1000, 0)}},
					{Name: "v(out)", Unit: "voltage", Complex: []complex128{complex(3, 4)}},
				},
			}},
		},
		{
			name: "extra flags and unknown keywords",
			input: "Title: * netlist\n" +
				"Date: today\n" +
				"Plotname: DC transfer characteristic `dc'\n" +
				"Flags: real forward\n" +
				"No. Variables: 1\n" +
				"No. Points: 2\n" +
				"Command: version 41\n" +
				"Variables:\n" +
				"\t0\tv-sweep\tvoltage\tdims=1\n" +
				"Values:\n" +
				" 0\t0\n" +
				" 1\t0.5\n",
			want: []*Plot{{
				Title:     "* netlist",
				Date:      "today",
				Name:      "DC transfer characteristic `dc'",
				Kind:      KindReal,
				NumPoints: 2,
				Waves: []*Wave{
					{Name: "v-sweep", Unit: "voltage", Real: []float64{0, 0.5}},
				},
			}},
		},
		{
			name: "zero points holds one",
			input: "Plotname: Operating Point\n" +
				"Flags: real\n" +
				"No. Variables: 2\n" +
				"No. Points: 0\n" +
				"Variables:\n" +
				"\t0\tv(1)\tvoltage\n" +
				"\t1\ti(v1)\tcurrent\n" +
				"Values:\n" +
				" 0\t5\n" +
				"\t-0.001\n",
			want: []*Plot{{
				Name:      "Operating Point",
				Kind:      KindReal,
				NumPoints: 1,
				Waves: []*Wave{
					{Name: "v(1)", Unit: "voltage", Real: []float64{5}},
					{Name: "i(v1)", Unit: "current", Real: []float64{-0.001}},
				},
			}},
		},
		{
			name: "CRLF line endings",
			input: strings.ReplaceAll("Plotname: Operating Point\n"+
				"Flags: real\n"+
				"No. Variables: 1\n"+
				"No. Points: 1\n"+
				"Variables:\n"+
				"\t0\tv(1)\tvoltage\n"+
				"Values:\n"+
				" 0\t2.5\n", "\n", "\r\n"),
			want: []*Plot{{
				Name:      "Operating Point",
				Kind:      KindReal,
				NumPoints: 1,
				Waves: []*Wave{
					{Name: "v(1)", Unit: "voltage", Real: []float64{2.5}},
				},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.input))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Parse mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestParseASCIIErrors tests that grammar violations report the right kind.
func TestParseASCIIErrors(t *testing.T) {
	const head = "Plotname: Transient Analysis `tran'\n" +
		"Flags: real\n" +
		"No. Variables: 2\n" +
		"No. Points: 2\n" +
		"Variables:\n" +
		"\t0\ttime\ttime\n" +
		"\t1\tv(out)\tvoltage\n" +
		"Values:\n"

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{
			name:  "wrong point index",
			input: head + " 0\t0\n\t1\n 2\t1\n\t2\n",
			want:  ErrMalformedRecord,
		},
		{
			name:  "non-numeric value",
			input: head + " 0\t0\n\tabc\n 1\t1\n\t2\n",
			want:  ErrMalformedRecord,
		},
		{
			name:  "file ends inside the values",
			input: head + " 0\t0.000001\n\t1.000001\n 1\t2.000001\n",
			want:  ErrTruncatedFile,
		},
		{
			name:  "extra token after the last value",
			input: head + " 0\t0\n\t1\n 1\t1\n\t2 3\n",
			want:  ErrMalformedRecord,
		},
		{
			name: "duplicate wave",
			input: strings.Replace(head, "\t1\tv(out)\tvoltage", "\t1\ttime\ttime", 1) +
				" 0\t0\n\t1\n 1\t1\n\t2\n",
			want: ErrMalformedRecord,
		},
		{
			name:  "missing flags",
			input: strings.Replace(head, "Flags: real\n", "", 1) + " 0\t0\n\t1\n 1\t1\n\t2\n",
			want:  ErrMalformedRecord,
		},
		{
			name:  "unknown flags",
			input: strings.Replace(head, "Flags: real", "Flags: padded", 1) + " 0\t0\n\t1\n 1\t1\n\t2\n",
			want:  ErrMalformedRecord,
		},
		{
			name:  "variable index out of order",
			input: strings.Replace(head, "\t1\tv(out)", "\t2\tv(out)", 1) + " 0\t0\n\t1\n 1\t1\n\t2\n",
			want:  ErrMalformedRecord,
		},
		{
			name:  "fewer declarations than variables",
			input: strings.Replace(head, "No. Variables: 2", "No. Variables: 3", 1) + " 0\t0\n\t1\n 1\t1\n\t2\n",
			want:  ErrMalformedRecord,
		},
		{
			name:  "non-numeric point count",
			input: strings.Replace(head, "No. Points: 2", "No. Points: many", 1) + " 0\t0\n\t1\n 1\t1\n\t2\n",
			want:  ErrMalformedRecord,
		},
		{
			name:  "garbage header line",
			input: strings.Replace(head, "Flags: real\n", "Flags: real\nthis is not a header\n", 1) + " 0\t0\n\t1\n 1\t1\n\t2\n",
			want:  ErrMalformedRecord,
		},
		{
			name:  "file ends inside the header",
			input: "Plotname: Transient Analysis `tran'\nFlags: real\nNo. Variables: 2\n",
			want:  ErrTruncatedFile,
		},
		{
			name:  "binary plot in an ascii file",
			input: head + " 0\t0\n\t1\n 1\t1\n\t2\n" + strings.Replace(head, "Values:", "Binary:", 1) + strings.Repeat("\x00", 32),
			want:  ErrMalformedRecord,
		},
		{
			name:  "empty input",
			input: "",
			want:  ErrUnsupportedFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plots, err := ParseASCII([]byte(tt.input))
			if !errors.Is(err, tt.want) {
				t.Fatalf("ParseASCII error = %v, want %v", err, tt.want)
			}
			if plots != nil {
				t.Fatalf("ParseASCII returned %d plots along with an error", len(plots))
			}
		})
	}
}

// TestParseErrorLocation tests that errors point at the offending line.
func TestParseErrorLocation(t *testing.T) {
	input := strings.Replace(ngspiceTran, "\t1.000000000000000e+00\n\t0.0", "\tnope\n\t0.0", 1)

	_, err := Parse([]byte(input))

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Parse error = %v, want a *ParseError", err)
	}
	if parseErr.Line != 13 {
		t.Fatalf("ParseError.Line = %d, want 13", parseErr.Line)
	}
	wantOffset := int64(strings.Index(input, "\tnope"))
	if parseErr.Offset != wantOffset {
		t.Fatalf("ParseError.Offset = %d, want %d", parseErr.Offset, wantOffset)
	}
	if !strings.Contains(err.Error(), "line 13") {
		t.Fatalf("error %q does not mention line 13", err)
	}
}

func TestParseMultiplePlots(t *testing.T) {
	want := fixturePlots()

	for _, format := range []Format{FormatASCII, FormatBinary} {
		t.Run(format.String(), func(t *testing.T) {
			got, err := Parse(encodePlots(t, want, format))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}

			if len(got) != 4 {
				t.Fatalf("Parse returned %d plots, want 4", len(got))
			}

			points := []int{1, 51, 51, 56}
			waves := []int{6, 6, 5, 6}
			for i, plot := range got {
				if plot.NumPoints != points[i] || plot.NumWaves() != waves[i] {
					t.Fatalf("plot %d has %d points of %d waves, want %d of %d", i, plot.NumPoints, plot.NumWaves(), points[i], waves[i])
				}
			}

			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("Parse mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestParseEncodingsAgree tests that the ASCII and binary encodings of the
// same plots parse to the same model.
func TestParseEncodingsAgree(t *testing.T) {
	plots := fixturePlots()

	ascii, err := ParseASCII(encodePlots(t, plots, FormatASCII))
	if err != nil {
		t.Fatalf("ParseASCII failed: %v", err)
	}
	binary, err := ParseBinary(encodePlots(t, plots, FormatBinary))
	if err != nil {
		t.Fatalf("ParseBinary failed: %v", err)
	}

	if diff := cmp.Diff(ascii, binary); diff != "" {
		t.Fatalf("ascii and binary disagree (-ascii +binary):\n%s", diff)
	}
}

func TestParseBinaryErrors(t *testing.T) {
	valid := encodePlots(t, fixturePlots(), FormatBinary)

	tests := []struct {
		name  string
		input []byte
		want  error
	}{
		{
			name:  "payload cut short",
			input: valid[:len(valid)-5],
			want:  ErrTruncatedFile,
		},
		{
			name:  "garbage after the payload",
			input: append(append([]byte{}, valid...), "garbage\n"...),
			want:  ErrTrailingData,
		},
		{
			name:  "ascii plot in a binary file",
			input: append(append([]byte{}, valid...), ngspiceTran...),
			want:  ErrMalformedRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plots, err := ParseBinary(tt.input)
			if !errors.Is(err, tt.want) {
				t.Fatalf("ParseBinary error = %v, want %v", err, tt.want)
			}
			if plots != nil {
				t.Fatalf("ParseBinary returned %d plots along with an error", len(plots))
			}
		})
	}

	t.Run("trailing whitespace", func(t *testing.T) {
		input := append(append([]byte{}, valid...), " \n\n"...)
		plots, err := ParseBinary(input)
		if err != nil {
			t.Fatalf("ParseBinary failed: %v", err)
		}
		if len(plots) != 4 {
			t.Fatalf("ParseBinary returned %d plots, want 4", len(plots))
		}
	})
}

func TestParseComplexMagnitude(t *testing.T) {
	input := "Plotname: AC Analysis `ac'\n" +
		"Flags: complex\n" +
		"No. Variables: 1\n" +
		"No. Points: 1\n" +
		"Variables:\n" +
		"\t0\tv(out)\tvoltage\n" +
		"Values:\n" +
		" 0\t3,4\n"

	plots, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	wave, ok := plots[0].Wave("v(out)")
	if !ok {
		t.Fatalf("wave v(out) not found")
	}
	if got := cmplx.Abs(wave.Complex[0]); got != 5 {
		t.Fatalf("|v(out)| = %v, want 5", got)
	}
}

func TestParseMaxPoints(t *testing.T) {
	data := encodePlots(t, fixturePlots(), FormatBinary)

	_, err := NewParser(100).Parse(data)
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("Parse error = %v, want %v", err, ErrLimitExceeded)
	}

	plots, err := NewParser(0).Parse(data)
	if err != nil {
		t.Fatalf("Parse without limit failed: %v", err)
	}
	if len(plots) != 4 {
		t.Fatalf("Parse returned %d plots, want 4", len(plots))
	}
}

// TestParseHugePointCount tests that absurd point counts fail before any
// allocation.
func TestParseHugePointCount(t *testing.T) {
	input := strings.Replace(ngspiceTran, "No. Points: 2", "No. Points: 4000000000000", 1)

	_, err := NewParser(0).Parse([]byte(input))
	if !errors.Is(err, ErrTruncatedFile) {
		t.Fatalf("Parse error = %v, want %v", err, ErrTruncatedFile)
	}
}

func TestParseLatin1Title(t *testing.T) {
	input := strings.Replace(ngspiceTran, "Title: rc circuit", "Title: caf\xe9 circuit", 1)

	plots, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if plots[0].Title != "café circuit" {
		t.Fatalf("Title = %q, want %q", plots[0].Title, "café circuit")
	}
}

func TestParseByteOrderMark(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, ngspiceTran...)

	plots, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if plots[0].Title != "rc circuit" {
		t.Fatalf("Title = %q, want %q", plots[0].Title, "rc circuit")
	}
}

func TestWriteRejectsUnencodablePlots(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Plot)
	}{
		{name: "space in wave name", modify: func(p *Plot) { p.Waves[1].Name = "v out" }},
		{name: "newline in title", modify: func(p *Plot) { p.Title = "a\nb" }},
		{name: "short column", modify: func(p *Plot) { p.Waves[1].Real = p.Waves[1].Real[:3] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plot := makeRealPlot("Transient Analysis `tran'", 5, "time", "v(out)")
			tt.modify(plot)

			var buf bytes.Buffer
			err := WriteASCII(&buf, []*Plot{plot})
			if !errors.Is(err, ErrMalformedRecord) {
				t.Fatalf("WriteASCII error = %v, want %v", err, ErrMalformedRecord)
			}
		})
	}
}

func TestAbbreviate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "short", input: "v(out)", want: "v(out)"},
		{name: "ascii", input: strings.Repeat("x", 50), want: strings.Repeat("x", 40) + "..."},
		{name: "cut inside a rune", input: "x" + strings.Repeat("é", 30), want: "x" + strings.Repeat("é", 19) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := abbreviate(tt.input)
			if got != tt.want {
				t.Fatalf("abbreviate = %q, want %q", got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("abbreviate(%q) = %q is not valid UTF-8", tt.input, got)
			}
		})
	}
}

func TestParseErrorQuotesWholeRunes(t *testing.T) {
	input := "Title: rc\nPlotname: Transient Analysis\nNo. Variables: 1\nBogus! " + strings.Repeat("é", 30) + "\n"

	_, err := Parse([]byte(input))
	if !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("Parse error = %v, want %v", err, ErrMalformedRecord)
	}
	if !utf8.ValidString(err.Error()) {
		t.Fatalf("error %q is not valid UTF-8", err)
	}
}
