// Package report renders a self-contained HTML summary of an analysis run
// using go-echarts: interactive waveform charts with detected peaks, beat
// templates and a metrics overview.
package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"cardiosync/pkg/analysis"
	"cardiosync/pkg/template"
)

// maxChartPoints bounds the per-series payload; longer waveforms are
// downsampled by stride.
const maxChartPoints = 4000

// Render writes the full HTML report for res to w.
func Render(res *analysis.Result, w io.Writer) error {
	page := components.NewPage()
	page.PageTitle = "CardioSync report: " + res.Source

	page.AddCharts(
		waveformChart(res, "ECG (filtered)", res.ECG.Filtered, res.ECG.Peaks, "R-peaks"),
		waveformChart(res, "PPG (filtered)", res.PPG.Filtered, res.PPG.Peaks, "pulse peaks"),
		metricsChart(res),
	)
	if res.ECG.Template != nil {
		page.AddCharts(templateChart(res.ECG.Template, "ECG beat template"))
	}
	if res.PPG.Template != nil {
		page.AddCharts(templateChart(res.PPG.Template, "PPG beat template"))
	}

	return page.Render(w)
}

// WriteFile renders the report into an HTML file at path.
func WriteFile(res *analysis.Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: creating %s: %w", path, err)
	}
	defer f.Close()
	return Render(res, f)
}

// waveformChart builds one channel chart: the waveform as a line and the
// detected peaks as a scatter overlay on the same time axis.
func waveformChart(res *analysis.Result, title string, samples []float64, peakIdx []int, peakLabel string) components.Charter {
	times := res.Times()

	// Downsample by stride to stay within maxChartPoints.
	stride := 1
	if len(samples) > maxChartPoints {
		stride = int(math.Ceil(float64(len(samples)) / float64(maxChartPoints)))
	}

	x := make([]string, 0, len(samples)/stride+1)
	lineData := make([]opts.LineData, 0, len(samples)/stride+1)
	for i := 0; i < len(samples); i += stride {
		x = append(x, strconv.FormatFloat(times[i], 'f', 3, 64))
		lineData = append(lineData, opts.LineData{Value: samples[i]})
	}

	scatterData := peakMarkers(samples, peakIdx, stride, len(lineData))

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%s  ROI [%.2fs, %.2fs)  fs=%g Hz  %d peaks", res.Source, res.ROI.Start, res.ROI.End, res.SampleRate, len(peakIdx)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(x).AddSeries("waveform", lineData,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	scatter := charts.NewScatter()
	scatter.AddSeries(peakLabel, scatterData,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	line.Overlap(scatter)
	return line
}

// peakMarkers places each detected peak on the nearest retained sample of
// the downsampled grid, so markers sit on the rendered waveform instead of
// drifting off the decimated time axis. Missing categories render as gaps.
func peakMarkers(samples []float64, peakIdx []int, stride, nRetained int) []opts.ScatterData {
	peakAt := make(map[int]float64, len(peakIdx))
	for _, idx := range peakIdx {
		bucket := (idx + stride/2) / stride
		if bucket >= nRetained {
			bucket = nRetained - 1
		}
		peakAt[bucket] = samples[bucket*stride]
	}

	out := make([]opts.ScatterData, nRetained)
	for i := range out {
		if v, ok := peakAt[i]; ok {
			out[i] = opts.ScatterData{Value: v}
		} else {
			out[i] = opts.ScatterData{Value: "-"}
		}
	}
	return out
}

// templateChart plots the mean beat with its ±1 SD envelope.
func templateChart(tpl *template.Template, title string) components.Charter {
	times := tpl.Times()
	x := make([]string, len(times))
	mean := make([]opts.LineData, len(times))
	upper := make([]opts.LineData, len(times))
	lower := make([]opts.LineData, len(times))
	for i, t := range times {
		x[i] = strconv.FormatFloat(t, 'f', 3, 64)
		mean[i] = opts.LineData{Value: tpl.Mean[i]}
		upper[i] = opts.LineData{Value: tpl.Mean[i] + tpl.SD[i]}
		lower[i] = opts.LineData{Value: tpl.Mean[i] - tpl.SD[i]}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "600px", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%d beats, mean r=%.3f, mean DTW=%.3f", len(tpl.Beats), tpl.MeanCorrelation, tpl.MeanDTW),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t from peak (s)"}),
	)
	line.SetXAxis(x).
		AddSeries("mean", mean, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)})).
		AddSeries("+1 SD", upper, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)})).
		AddSeries("-1 SD", lower, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}

// metricsChart summarizes the scalar metrics as a bar chart. NaN values
// (short or degenerate ROIs) are shown as zero-height bars.
func metricsChart(res *analysis.Result) components.Charter {
	labels := []string{
		"HR (bpm)", "SDNN (ms)", "RMSSD (ms)", "pNN50 (%)",
		"LF/HF", "PTT mean (ms)", "xcorr delay (ms)",
	}
	values := []float64{
		res.ECG.Rate.BPM,
		res.HRV.SDNN * 1000,
		res.HRV.RMSSD * 1000,
		res.HRV.PNN50 * 100,
		res.HRV.LFHF,
		res.PTT.Mean * 1000,
		res.DelaySec * 1000,
	}
	data := make([]opts.BarData, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		data[i] = opts.BarData{Value: v}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Metrics",
			Subtitle: fmt.Sprintf("%d R-peaks, %d pulse peaks, %d PTT pairs", len(res.ECG.Peaks), len(res.PPG.Peaks), res.PTT.Count),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).AddSeries("value", data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}
