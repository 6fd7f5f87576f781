package nutmeg

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// makeRealPlot builds a plot whose first wave is a linear sweep and whose
// other waves are sines of it.
func makeRealPlot(name string, numPoints int, waves ...string) *Plot {
	plot := &Plot{
		Title:     "fixture circuit",
		Date:      "Thu Jan  1 00:00:00 2026",
		Name:      name,
		Kind:      KindReal,
		NumPoints: numPoints,
	}

	for i, wave := range waves {
		w := &Wave{Name: wave, Unit: "voltage", Real: make([]float64, numPoints)}
		if i == 0 {
			w.Unit = "time"
		}
		for p := range w.Real {
			x := float64(p) * 1e-6
			if i == 0 {
				w.Real[p] = x
			} else {
				w.Real[p] = float64(i) * math.Sin(x*1e5+float64(i))
			}
		}
		plot.Waves = append(plot.Waves, w)
	}
	return plot
}

// makeComplexPlot builds an AC style plot over a frequency sweep.
func makeComplexPlot(name string, numPoints int, waves ...string) *Plot {
	plot := &Plot{
		Title:     "fixture circuit",
		Date:      "Thu Jan  1 00:00:00 2026",
		Name:      name,
		Kind:      KindComplex,
		NumPoints: numPoints,
	}

	for i, wave := range waves {
		w := &Wave{Name: wave, Unit: "voltage", Complex: make([]complex128, numPoints)}
		if i == 0 {
			w.Unit = "frequency"
		}
		for p := range w.Complex {
			f := math.Pow(10, float64(p)/10)
			if i == 0 {
				w.Complex[p] = complex(f, 0)
			} else {
				w.Complex[p] = complex(1/(1+f*float64(i)), -f/(1+f*f))
			}
		}
		plot.Waves = append(plot.Waves, w)
	}
	return plot
}

// fixturePlots mirrors a typical ngspice run: an operating point, a
// transient, an AC and a DC analysis.
func fixturePlots() []*Plot {
	op := makeRealPlot("Operating Point `op'", 1, "v(in)", "v(out)", "v(mid)", "v(bias)", "i(vdd)", "i(vin)")
	op.Waves[0].Unit = "voltage"

	return []*Plot{
		op,
		makeRealPlot("Transient Analysis `tran'", 51, "time", "v(in)", "v(out)", "v(mid)", "i(vdd)", "i(vin)"),
		makeComplexPlot("AC Analysis `ac'", 51, "frequency", "v(in)", "v(out)", "v(mid)", "i(vdd)"),
		makeRealPlot("DC transfer characteristic `dc'", 56, "v-sweep", "v(in)", "v(out)", "v(mid)", "i(vdd)", "i(vin)"),
	}
}

func encodePlots(t *testing.T, plots []*Plot, format Format) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := Write(&buf, plots, format); err != nil {
		t.Fatalf("Write(%v) failed: %v", format, err)
	}
	return buf.Bytes()
}

// writeRaw stores data under name in a fresh temporary directory.
func writeRaw(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("unable to write %s: %v", path, err)
	}
	return path
}

// wideTranPlot is a transient with enough nodes that its header alone
// spans several detector buffers.
func wideTranPlot(numWaves int) *Plot {
	waves := []string{"time"}
	for i := 1; i < numWaves; i++ {
		waves = append(waves, fmt.Sprintf("v(x%d.node%d)", i/100, i))
	}
	return makeRealPlot("Transient Analysis `tran'", 2, waves...)
}
