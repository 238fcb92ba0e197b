package template

import (
	"math"
	"testing"
)

// makeBeatTrain places identical gaussian beats at regular intervals and
// returns the signal plus the true peak indices.
func makeBeatTrain(fs float64, nBeats int, periodSec float64) ([]float64, []int) {
	period := int(periodSec * fs)
	n := period * (nBeats + 1)
	x := make([]float64, n)
	var peaks []int
	for b := 0; b < nBeats; b++ {
		center := period/2 + b*period
		peaks = append(peaks, center)
		for i := 0; i < n; i++ {
			d := float64(i-center) / (0.02 * fs)
			x[i] += math.Exp(-0.5 * d * d)
		}
	}
	return x, peaks
}

func TestExtractIdenticalBeats(t *testing.T) {
	fs := 128.0
	x, peaks := makeBeatTrain(fs, 8, 0.8)

	tpl, err := Extract(x, peaks, fs, 0.2, 0.4)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	wantWidth := int(0.2*fs) + int(0.4*fs) + 1
	if len(tpl.Mean) != wantWidth {
		t.Errorf("template width = %d, want %d", len(tpl.Mean), wantWidth)
	}
	if len(tpl.Beats) != 8 {
		t.Errorf("retained %d beats, want 8", len(tpl.Beats))
	}

	// Identical beats agree perfectly with their mean.
	if tpl.MeanCorrelation < 0.999 {
		t.Errorf("mean correlation = %g, want ~1", tpl.MeanCorrelation)
	}
	for i, sd := range tpl.SD {
		if sd > 1e-9 {
			t.Fatalf("SD[%d] = %g, want ~0 for identical beats", i, sd)
		}
	}
	if tpl.MeanDTW > 1e-9 {
		t.Errorf("mean DTW = %g, want ~0 for identical beats", tpl.MeanDTW)
	}
}

func TestExtractSkipsEdgeBeats(t *testing.T) {
	fs := 100.0
	x := make([]float64, 200)
	// Peaks too close to either edge for a [-0.5s, +0.5s] window.
	peaks := []int{10, 100, 195}

	tpl, err := Extract(x2(x, peaks), peaks, fs, 0.5, 0.5)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(tpl.Beats) != 1 {
		t.Errorf("retained %d beats, want only the interior one", len(tpl.Beats))
	}
	if tpl.PeakIndexes[0] != 100 {
		t.Errorf("retained peak at %d, want 100", tpl.PeakIndexes[0])
	}
}

// x2 adds small bumps so the retained beat is non-constant.
func x2(x []float64, peaks []int) []float64 {
	out := append([]float64(nil), x...)
	for _, p := range peaks {
		for i := -5; i <= 5; i++ {
			if p+i >= 0 && p+i < len(out) {
				out[p+i] += math.Exp(-0.5 * float64(i*i) / 4.0)
			}
		}
	}
	return out
}

func TestExtractNoCompleteWindows(t *testing.T) {
	x := make([]float64, 50)
	if _, err := Extract(x, []int{2, 48}, 100.0, 0.5, 0.5); err != ErrNoBeats {
		t.Errorf("expected ErrNoBeats, got %v", err)
	}
}

func TestExtractInvalidWindow(t *testing.T) {
	x := make([]float64, 100)
	if _, err := Extract(x, []int{50}, 100.0, -0.1, 0.3); err == nil {
		t.Error("expected error for negative pre window")
	}
	if _, err := Extract(x, []int{50}, 100.0, 0.1, 0); err == nil {
		t.Error("expected error for zero post window")
	}
}

func TestTemplateTimes(t *testing.T) {
	fs := 100.0
	x, peaks := makeBeatTrain(fs, 4, 1.0)
	tpl, err := Extract(x, peaks, fs, 0.2, 0.3)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	times := tpl.Times()
	if len(times) != len(tpl.Mean) {
		t.Fatalf("time axis length %d != template length %d", len(times), len(tpl.Mean))
	}
	if math.Abs(times[0]+0.2) > 1e-9 {
		t.Errorf("first time = %g, want -0.2", times[0])
	}
	// Peak sample sits at t=0.
	pre := int(0.2 * fs)
	if times[pre] != 0 {
		t.Errorf("time at peak index = %g, want 0", times[pre])
	}
}

func TestExtractDistortedBeatScoresLower(t *testing.T) {
	fs := 128.0
	x, peaks := makeBeatTrain(fs, 6, 0.8)

	// Corrupt the last beat with a second bump.
	p := peaks[len(peaks)-1]
	for i := 0; i < len(x); i++ {
		d := float64(i-(p+20)) / (0.02 * fs)
		x[i] += 1.5 * math.Exp(-0.5*d*d)
	}

	tpl, err := Extract(x, peaks, fs, 0.2, 0.4)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	last := len(tpl.Correlations) - 1
	for i := 0; i < last; i++ {
		if tpl.Correlations[last] >= tpl.Correlations[i] {
			t.Errorf("distorted beat correlation %g should be below clean beat %d (%g)",
				tpl.Correlations[last], i, tpl.Correlations[i])
		}
		if tpl.DTWDistances[last] <= tpl.DTWDistances[i] {
			t.Errorf("distorted beat DTW %g should exceed clean beat %d (%g)",
				tpl.DTWDistances[last], i, tpl.DTWDistances[i])
		}
	}
}
