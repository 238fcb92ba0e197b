// Package template extracts beat-centered waveform templates for
// morphology comparison across modalities.
//
// Each detected beat contributes a fixed window around its peak,
// z-scored so that amplitude drift does not dominate shape. The
// point-wise mean is the template; per-beat agreement is scored with
// Pearson correlation and with Dynamic Time Warping distance, which
// stays meaningful when beats are slightly compressed or stretched.
package template

import (
	"errors"
	"fmt"

	"github.com/katalvlaran/lvlath/dtw"
	"gonum.org/v1/gonum/stat"

	"cardiosync/pkg/filter"
)

// ErrNoBeats indicates that no peak had a full window inside the signal.
var ErrNoBeats = errors.New("template: no complete beat windows in signal")

// Template is the averaged beat waveform of one channel with per-beat
// morphology scores.
type Template struct {
	// SampleRate of the underlying windows in Hz
	SampleRate float64

	// PreSec and PostSec are the window extents around the peak in seconds
	PreSec  float64
	PostSec float64

	// Mean is the point-wise average of the normalized beats
	Mean []float64

	// SD is the point-wise population standard deviation across beats
	SD []float64

	// Beats holds the individual normalized beat windows
	Beats [][]float64

	// PeakIndexes are the source peak indices of the retained beats
	PeakIndexes []int

	// Correlations is the Pearson r of each beat against Mean
	Correlations []float64

	// MeanCorrelation summarizes beat-to-template agreement
	MeanCorrelation float64

	// DTWDistances is the per-beat DTW distance to Mean, normalized by
	// window length
	DTWDistances []float64

	// MeanDTW summarizes rate-insensitive shape deviation
	MeanDTW float64
}

// Times returns the window time axis in seconds relative to the peak.
func (t *Template) Times() []float64 {
	out := make([]float64, len(t.Mean))
	pre := int(t.PreSec * t.SampleRate)
	for i := range out {
		out[i] = float64(i-pre) / t.SampleRate
	}
	return out
}

// Extract builds a template from the beats at peakIdx. Windows that would
// extend past either end of the signal are skipped; ErrNoBeats is
// returned when none remain.
func Extract(x []float64, peakIdx []int, fs, preSec, postSec float64) (*Template, error) {
	if preSec < 0 || postSec <= 0 {
		return nil, fmt.Errorf("template: invalid window [-%g, +%g]", preSec, postSec)
	}
	pre := int(preSec * fs)
	post := int(postSec * fs)
	width := pre + post + 1

	var beats [][]float64
	var kept []int
	for _, p := range peakIdx {
		if p-pre < 0 || p+post >= len(x) {
			continue
		}
		beats = append(beats, filter.ZScore(x[p-pre:p+post+1]))
		kept = append(kept, p)
	}
	if len(beats) == 0 {
		return nil, ErrNoBeats
	}

	mean := make([]float64, width)
	sd := make([]float64, width)
	col := make([]float64, len(beats))
	for i := 0; i < width; i++ {
		for j, b := range beats {
			col[j] = b[i]
		}
		mean[i] = stat.Mean(col, nil)
		sd[i] = stat.PopStdDev(col, nil)
	}

	tpl := &Template{
		SampleRate:   fs,
		PreSec:       preSec,
		PostSec:      postSec,
		Mean:         mean,
		SD:           sd,
		Beats:        beats,
		PeakIndexes:  kept,
		Correlations: make([]float64, len(beats)),
		DTWDistances: make([]float64, len(beats)),
	}

	// Sakoe-Chiba band: allow each beat to warp by up to 10% of the window.
	window := width / 10
	if window < 2 {
		window = 2
	}
	opts := &dtw.DTWOptions{Window: window, MemoryMode: dtw.RollingArray}

	var corrSum, dtwSum float64
	for j, b := range beats {
		tpl.Correlations[j] = stat.Correlation(b, mean, nil)
		corrSum += tpl.Correlations[j]

		dist, _, err := dtw.DTW(b, mean, opts)
		if err != nil {
			return nil, fmt.Errorf("template: dtw on beat %d: %w", j, err)
		}
		tpl.DTWDistances[j] = dist / float64(width)
		dtwSum += tpl.DTWDistances[j]
	}
	tpl.MeanCorrelation = corrSum / float64(len(beats))
	tpl.MeanDTW = dtwSum / float64(len(beats))
	return tpl, nil
}
