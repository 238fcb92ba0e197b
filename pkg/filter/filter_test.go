package filter

import (
	"math"
	"testing"
)

// makeSine generates a sine wave at freq Hz sampled at fs Hz for dur seconds.
func makeSine(freq, fs, dur float64) []float64 {
	n := int(dur * fs)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / fs)
	}
	return out
}

// rms computes the root mean square of x.
func rms(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func TestDetrendRemovesLine(t *testing.T) {
	n := 256
	x := make([]float64, n)
	for i := range x {
		x[i] = 3.0 + 0.5*float64(i)
	}

	out := Detrend(x)
	for i, v := range out {
		if math.Abs(v) > 1e-9 {
			t.Fatalf("sample %d: expected ~0 after detrending a line, got %g", i, v)
		}
	}
}

func TestDetrendPreservesOscillation(t *testing.T) {
	fs := 128.0
	sine := makeSine(2.0, fs, 4.0)
	x := make([]float64, len(sine))
	for i := range x {
		x[i] = sine[i] + 10.0 + 0.01*float64(i)
	}

	out := Detrend(x)
	if r := rms(out); math.Abs(r-rms(sine)) > 0.05 {
		t.Errorf("detrend changed oscillation energy: rms=%g, want ~%g", r, rms(sine))
	}
}

func TestDetrendResidualOrthogonalToTrend(t *testing.T) {
	n := 300
	x := make([]float64, n)
	for i := range x {
		x[i] = 40.0 - 0.25*float64(i) + math.Sin(0.7*float64(i)) + 0.3*math.Cos(0.11*float64(i))
	}

	out := Detrend(x)

	// Least-squares residuals have zero mean and zero covariance with time.
	var sum, slopeDot float64
	for i, v := range out {
		sum += v
		slopeDot += float64(i) * v
	}
	if mean := sum / float64(n); math.Abs(mean) > 1e-9 {
		t.Errorf("residual mean = %g, want 0", mean)
	}
	if dot := slopeDot / float64(n); math.Abs(dot) > 1e-6 {
		t.Errorf("residual still correlates with time: %g", dot)
	}
}

func TestDetrendShortInput(t *testing.T) {
	if out := Detrend([]float64{7.5}); len(out) != 1 || out[0] != 7.5 {
		t.Errorf("single sample should pass through, got %v", out)
	}
	if out := Detrend(nil); len(out) != 0 {
		t.Errorf("empty input should stay empty, got %v", out)
	}
}

func TestZScore(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6}
	out := ZScore(x)

	var mean float64
	for _, v := range out {
		mean += v
	}
	mean /= float64(len(out))
	if math.Abs(mean) > 1e-12 {
		t.Errorf("z-scored mean = %g, want 0", mean)
	}

	var variance float64
	for _, v := range out {
		variance += (v - mean) * (v - mean)
	}
	sd := math.Sqrt(variance / float64(len(out)))
	if math.Abs(sd-1.0) > 1e-12 {
		t.Errorf("z-scored sd = %g, want 1", sd)
	}
}

func TestZScoreConstantSignal(t *testing.T) {
	x := []float64{5, 5, 5, 5}
	out := ZScore(x)
	for i, v := range out {
		if v != 0 {
			t.Errorf("sample %d: constant signal should z-score to 0, got %g", i, v)
		}
	}
}

func TestZScoreSingleSample(t *testing.T) {
	if out := ZScore([]float64{3.2}); out[0] != 0 {
		t.Errorf("single sample should z-score to 0, got %g", out[0])
	}
}

func TestMedianRemovesImpulse(t *testing.T) {
	x := make([]float64, 21)
	x[10] = 100.0

	out, err := Median(x, 5)
	if err != nil {
		t.Fatalf("Median returned error: %v", err)
	}
	if out[10] != 0 {
		t.Errorf("median filter should remove isolated impulse, got %g", out[10])
	}
}

func TestMedianRejectsEvenWindow(t *testing.T) {
	if _, err := Median([]float64{1, 2, 3}, 4); err == nil {
		t.Error("expected error for even window")
	}
	if _, err := Median([]float64{1, 2, 3}, 0); err == nil {
		t.Error("expected error for zero window")
	}
}

func TestBandpassFrequencyResponse(t *testing.T) {
	fs := 128.0
	dur := 8.0

	cases := []struct {
		name    string
		freq    float64
		minGain float64
		maxGain float64
	}{
		{"passband center", 10.0, 0.8, 1.1},
		{"below stopband", 0.2, 0.0, 0.05},
		{"above stopband", 45.0, 0.0, 0.05},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x := makeSine(tc.freq, fs, dur)
			y, err := Bandpass(x, fs, 5.0, 15.0, 4)
			if err != nil {
				t.Fatalf("Bandpass returned error: %v", err)
			}

			// Measure gain on the central half to avoid edge transients.
			n := len(x)
			gain := rms(y[n/4:3*n/4]) / rms(x[n/4:3*n/4])
			if gain < tc.minGain || gain > tc.maxGain {
				t.Errorf("gain at %g Hz = %g, want in [%g, %g]", tc.freq, gain, tc.minGain, tc.maxGain)
			}
		})
	}
}

func TestBandpassValidation(t *testing.T) {
	x := makeSine(1.0, 128.0, 1.0)

	cases := []struct {
		name      string
		fs        float64
		low, high float64
		order     int
	}{
		{"low above high", 128, 15, 5, 4},
		{"high above nyquist", 128, 5, 70, 4},
		{"zero low cutoff", 128, 0, 5, 4},
		{"odd order", 128, 5, 15, 3},
		{"zero sample rate", 0, 5, 15, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Bandpass(x, tc.fs, tc.low, tc.high, tc.order); err == nil {
				t.Error("expected design error, got nil")
			}
		})
	}
}

func TestFiltFiltZeroPhase(t *testing.T) {
	fs := 128.0
	n := int(4 * fs)
	x := make([]float64, n)

	// Gaussian bump centered mid-signal.
	center := n / 2
	for i := range x {
		d := float64(i-center) / (0.1 * fs)
		x[i] = math.Exp(-0.5 * d * d)
	}

	y, err := Bandpass(x, fs, 0.5, 5.0, 4)
	if err != nil {
		t.Fatalf("Bandpass returned error: %v", err)
	}

	peak := 0
	for i, v := range y {
		if v > y[peak] {
			peak = i
		}
	}
	if abs := peak - center; abs < -3 || abs > 3 {
		t.Errorf("zero-phase filtering shifted peak from %d to %d", center, peak)
	}
}

func TestFiltFiltShortInput(t *testing.T) {
	sections, err := BandpassSections(128.0, 5.0, 15.0, 4)
	if err != nil {
		t.Fatalf("BandpassSections returned error: %v", err)
	}

	// Shorter than the preferred reflection pad; must not panic.
	out := FiltFilt(sections, []float64{1, 2, 3})
	if len(out) != 3 {
		t.Errorf("expected output length 3, got %d", len(out))
	}
	if out := FiltFilt(sections, nil); out != nil {
		t.Errorf("expected nil output for empty input")
	}
}
