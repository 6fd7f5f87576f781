package nutmeg

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// Kind tells whether every wave of a plot holds real or complex samples.
type Kind int

const (
	KindReal Kind = iota
	KindComplex
)

func (k Kind) String() string {
	switch k {
	case KindReal:
		return "real"
	case KindComplex:
		return "complex"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Wave is one named column of a plot. Exactly one of Real and Complex is set,
// depending on the Kind of the owning plot.
type Wave struct {
	Name string
	Unit string

	Real    []float64
	Complex []complex128
}

// Len returns the number of samples in the wave.
func (w *Wave) Len() int {
	if w.Complex != nil {
		return len(w.Complex)
	}
	return len(w.Real)
}

// Plot is one Plotname section of a Nutmeg file.
type Plot struct {
	Title string
	Date  string

	// Free-form plot title as declared by "Plotname:", usually carrying the
	// analysis kind in backticks, e.g. "Transient Analysis `tran'".
	Name string

	Kind      Kind
	NumPoints int

	// Declaration order. The first wave is the independent variable (time,
	// frequency, sweep).
	Waves []*Wave
}

func (p *Plot) IsComplex() bool {
	return p.Kind == KindComplex
}

func (p *Plot) NumWaves() int {
	return len(p.Waves)
}

func (p *Plot) WaveNames() []string {
	names := make([]string, len(p.Waves))
	for i, w := range p.Waves {
		names[i] = w.Name
	}
	return names
}

func (p *Plot) Units() map[string]string {
	units := make(map[string]string, len(p.Waves))
	for _, w := range p.Waves {
		units[w.Name] = w.Unit
	}
	return units
}

// Wave looks up a wave by name.
func (p *Plot) Wave(name string) (*Wave, bool) {
	i := slices.IndexFunc(p.Waves, func(w *Wave) bool {
		return w.Name == name
	})
	if i < 0 {
		return nil, false
	}
	return p.Waves[i], true
}

// Reference returns the independent variable of the plot.
func (p *Plot) Reference() *Wave {
	if len(p.Waves) == 0 {
		return nil
	}
	return p.Waves[0]
}

// Columns maps every wave name to its samples, either []float64 or
// []complex128.
func (p *Plot) Columns() map[string]any {
	columns := make(map[string]any, len(p.Waves))
	for _, w := range p.Waves {
		if p.Kind == KindComplex {
			columns[w.Name] = w.Complex
		} else {
			columns[w.Name] = w.Real
		}
	}
	return columns
}

// Validate checks the shape invariants of the plot: at least one wave and
// one point, distinct names, one unit per wave and every column holding
// NumPoints samples of the plot's kind.
func (p *Plot) Validate() error {
	if p.NumPoints < 1 {
		return fmt.Errorf("%w: plot %q has %d points", ErrMalformedRecord, p.Name, p.NumPoints)
	}

	if len(p.Waves) == 0 {
		return fmt.Errorf("%w: plot %q has no waves", ErrMalformedRecord, p.Name)
	}

	seen := make(map[string]struct{}, len(p.Waves))
	for _, w := range p.Waves {
		if _, ok := seen[w.Name]; ok {
			return fmt.Errorf("%w: plot %q declares wave %q twice", ErrMalformedRecord, p.Name, w.Name)
		}
		seen[w.Name] = struct{}{}

		if w.Unit == "" {
			return fmt.Errorf("%w: wave %q has no unit", ErrMalformedRecord, w.Name)
		}

		switch p.Kind {
		case KindReal:
			if w.Complex != nil || len(w.Real) != p.NumPoints {
				return fmt.Errorf("%w: real wave %q has %d samples, want %d", ErrMalformedRecord, w.Name, len(w.Real), p.NumPoints)
			}
		case KindComplex:
			if w.Real != nil || len(w.Complex) != p.NumPoints {
				return fmt.Errorf("%w: complex wave %q has %d samples, want %d", ErrMalformedRecord, w.Name, len(w.Complex), p.NumPoints)
			}
		default:
			return fmt.Errorf("%w: unknown plot kind %v", ErrMalformedRecord, p.Kind)
		}
	}

	return nil
}

// newPlot allocates the columns for a header.
func newPlot(h *header) *Plot {
	plot := &Plot{
		Title:     h.title,
		Date:      h.date,
		Name:      h.name,
		Kind:      h.kind,
		NumPoints: h.numPoints,
		Waves:     make([]*Wave, len(h.vars)),
	}

	for i, v := range h.vars {
		w := &Wave{Name: v.name, Unit: v.unit}
		if h.kind == KindComplex {
			w.Complex = make([]complex128, h.numPoints)
		} else {
			w.Real = make([]float64, h.numPoints)
		}
		plot.Waves[i] = w
	}

	return plot
}
