// Package export writes analysis results to disk: the aligned ROI segment
// as CSV, the full metrics block as JSON, and waveform/template plots as
// PNG images.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"cardiosync/pkg/analysis"
	"cardiosync/pkg/template"
)

var (
	ecgColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	ppgColor  = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	peakColor = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	bandColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}
)

// WriteSegmentCSV writes the aligned, filtered ROI waveforms as
// time,ecg,ppg rows.
func WriteSegmentCSV(res *analysis.Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", "ecg", "ppg"}); err != nil {
		return err
	}
	times := res.Times()
	for i, t := range times {
		row := []string{
			strconv.FormatFloat(t, 'f', 6, 64),
			strconv.FormatFloat(res.ECG.Filtered[i], 'g', -1, 64),
			strconv.FormatFloat(res.PPG.Filtered[i], 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteResultJSON writes the metrics block as indented JSON. Waveforms and
// templates are excluded; use WriteSegmentCSV for the sample data.
func WriteResultJSON(res *analysis.Result, path string) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("export: encoding result: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// SaveSignalPlot renders both filtered channels with their detected peaks
// into a single PNG.
func SaveSignalPlot(res *analysis.Result, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s  ROI [%.2fs, %.2fs)", res.Source, res.ROI.Start, res.ROI.End)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Amplitude (filtered)"

	times := res.Times()
	if err := addChannel(p, times, res.ECG.Filtered, res.ECG.Peaks, "ECG", ecgColor); err != nil {
		return err
	}
	// Offset the PPG trace below the ECG so the two stay readable.
	offset := traceOffset(res.ECG.Filtered, res.PPG.Filtered)
	shifted := make([]float64, len(res.PPG.Filtered))
	for i, v := range res.PPG.Filtered {
		shifted[i] = v - offset
	}
	if err := addChannel(p, times, shifted, res.PPG.Peaks, "PPG", ppgColor); err != nil {
		return err
	}

	p.Legend.Top = true
	return p.Save(12*vg.Inch, 5*vg.Inch, path)
}

// SaveTemplatePlot renders a beat template as mean waveform plus upper and
// lower one-SD bands.
func SaveTemplatePlot(tpl *template.Template, title, path string) error {
	if tpl == nil {
		return fmt.Errorf("export: no template to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time from peak (s)"
	p.Y.Label.Text = "Amplitude (z-scored)"

	times := tpl.Times()
	mean, err := plotter.NewLine(xys(times, tpl.Mean))
	if err != nil {
		return err
	}
	mean.Color = ecgColor
	mean.Width = vg.Points(2)
	p.Add(mean)
	p.Legend.Add(fmt.Sprintf("mean of %d beats", len(tpl.Beats)), mean)

	for _, sign := range []float64{1, -1} {
		band := make([]float64, len(tpl.Mean))
		for i := range band {
			band[i] = tpl.Mean[i] + sign*tpl.SD[i]
		}
		line, err := plotter.NewLine(xys(times, band))
		if err != nil {
			return err
		}
		line.Color = bandColor
		line.Width = vg.Points(1)
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(line)
		if sign > 0 {
			p.Legend.Add("±1 SD", line)
		}
	}

	p.Legend.Top = true
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// SaveAll writes the CSV segment, JSON metrics and all plots into dir using
// a common base name. It returns the list of files written.
func SaveAll(res *analysis.Result, dir, base string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("export: creating output dir: %w", err)
	}
	var written []string
	steps := []struct {
		name string
		run  func(string) error
	}{
		{base + "_segment.csv", func(p string) error { return WriteSegmentCSV(res, p) }},
		{base + "_metrics.json", func(p string) error { return WriteResultJSON(res, p) }},
		{base + "_signals.png", func(p string) error { return SaveSignalPlot(res, p) }},
	}
	if res.ECG.Template != nil {
		steps = append(steps, struct {
			name string
			run  func(string) error
		}{base + "_template_ecg.png", func(p string) error {
			return SaveTemplatePlot(res.ECG.Template, "ECG beat template", p)
		}})
	}
	if res.PPG.Template != nil {
		steps = append(steps, struct {
			name string
			run  func(string) error
		}{base + "_template_ppg.png", func(p string) error {
			return SaveTemplatePlot(res.PPG.Template, "PPG beat template", p)
		}})
	}
	for _, s := range steps {
		path := filepath.Join(dir, s.name)
		if err := s.run(path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// addChannel draws one waveform plus scatter markers at its peaks.
func addChannel(p *plot.Plot, times, samples []float64, peakIdx []int, label string, c color.Color) error {
	line, err := plotter.NewLine(xys(times, samples))
	if err != nil {
		return err
	}
	line.Color = c
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add(label, line)

	if len(peakIdx) == 0 {
		return nil
	}
	pts := make(plotter.XYs, 0, len(peakIdx))
	for _, idx := range peakIdx {
		if idx >= 0 && idx < len(samples) {
			pts = append(pts, plotter.XY{X: times[idx], Y: samples[idx]})
		}
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Color = peakColor
	scatter.GlyphStyle.Radius = vg.Points(3)
	p.Add(scatter)
	p.Legend.Add(label+" peaks", scatter)
	return nil
}

// traceOffset computes a vertical shift that separates two traces.
func traceOffset(a, b []float64) float64 {
	return (rangeOf(a) + rangeOf(b)) * 0.6
}

func rangeOf(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	lo, hi := x[0], x[0]
	for _, v := range x {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return hi - lo
}

func xys(times, values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for i := range values {
		pts[i] = plotter.XY{X: times[i], Y: values[i]}
	}
	return pts
}
