package nutmeg

type WaveInfo struct {
	Name string
	Unit string

	// Range of the real part, absent for waves holding only NaNs.
	Min *float64 `json:",omitempty"`
	Max *float64 `json:",omitempty"`
}

type PlotInfo struct {
	Key       string
	Title     string `json:",omitempty"`
	Date      string `json:",omitempty"`
	Plotname  string
	Kind      string
	NumPoints int
	NumWaves  int
	Waves     []WaveInfo
}

type FileInfo struct {
	Path   string
	Format string
	Size   int64
	Plots  []PlotInfo
}

// Info summarizes the result without its samples.
func (r *Result) Info() []PlotInfo {
	infos := make([]PlotInfo, len(r.Entries))
	for i, e := range r.Entries {
		plot := e.Plot
		info := PlotInfo{
			Key:       e.Key,
			Title:     plot.Title,
			Date:      plot.Date,
			Plotname:  plot.Name,
			Kind:      plot.Kind.String(),
			NumPoints: plot.NumPoints,
			NumWaves:  plot.NumWaves(),
			Waves:     make([]WaveInfo, len(plot.Waves)),
		}

		for j, w := range plot.Waves {
			info.Waves[j] = waveInfo(plot.Kind, w)
		}
		infos[i] = info
	}
	return infos
}

func waveInfo(kind Kind, w *Wave) WaveInfo {
	info := WaveInfo{Name: w.Name, Unit: w.Unit}

	values := w.Real
	if kind == KindComplex {
		values = make([]float64, len(w.Complex))
		for i, v := range w.Complex {
			values[i] = real(v)
		}
	}

	if lo, hi, ok := MinMax(values); ok {
		info.Min = &lo
		info.Max = &hi
	}
	return info
}
