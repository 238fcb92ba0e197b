package metrics

import (
	"math"
	"testing"
)

func TestIntervalStatsRegularBeats(t *testing.T) {
	fs := 128.0
	// Peaks exactly 1 s apart: 60 bpm, zero variability.
	peaks := []int{0, 128, 256, 384, 512}

	got := IntervalStats(peaks, fs)
	if math.Abs(got.BPM-60.0) > 1e-9 {
		t.Errorf("BPM = %g, want 60", got.BPM)
	}
	if math.Abs(got.MeanRR-1.0) > 1e-9 {
		t.Errorf("MeanRR = %g, want 1.0", got.MeanRR)
	}
	if got.SDRR != 0 {
		t.Errorf("SDRR = %g, want 0", got.SDRR)
	}
	if got.Count != 4 {
		t.Errorf("Count = %d, want 4", got.Count)
	}
}

func TestIntervalStatsTooFewPeaks(t *testing.T) {
	for _, peaks := range [][]int{nil, {100}} {
		got := IntervalStats(peaks, 128.0)
		if !math.IsNaN(got.BPM) || !math.IsNaN(got.MeanRR) || !math.IsNaN(got.SDRR) {
			t.Errorf("peaks=%v: expected NaN stats, got %+v", peaks, got)
		}
		if got.Count != 0 {
			t.Errorf("peaks=%v: Count = %d, want 0", peaks, got.Count)
		}
	}
}

func TestPTTMatching(t *testing.T) {
	fs := 128.0
	rIdx := []int{100, 228, 356}
	pulseIdx := []int{130, 260, 390}

	vals, stats := PTT(rIdx, pulseIdx, fs, 1.5)
	if stats.Count != 3 {
		t.Fatalf("Count = %d, want 3; vals=%v", stats.Count, vals)
	}
	wantFirst := 30.0 / fs
	if math.Abs(vals[0]-wantFirst) > 1e-12 {
		t.Errorf("first PTT = %g, want %g", vals[0], wantFirst)
	}
	if stats.Mean <= 0.2 || stats.Mean >= 0.3 {
		t.Errorf("mean PTT = %g, want ~0.24", stats.Mean)
	}
}

func TestPTTSkipsOutOfWindow(t *testing.T) {
	fs := 100.0
	// Second pair is 2 s apart, beyond the 1.5 s window; third R-peak
	// has no following pulse peak.
	rIdx := []int{0, 500, 2000}
	pulseIdx := []int{20, 700}

	vals, stats := PTT(rIdx, pulseIdx, fs, 1.5)
	if stats.Count != 1 {
		t.Fatalf("Count = %d, want 1; vals=%v", stats.Count, vals)
	}
	if math.Abs(vals[0]-0.2) > 1e-12 {
		t.Errorf("PTT = %g, want 0.2", vals[0])
	}
}

func TestPTTNoMatches(t *testing.T) {
	_, stats := PTT([]int{500}, []int{100}, 128.0, 1.5)
	if stats.Count != 0 || !math.IsNaN(stats.Mean) {
		t.Errorf("expected NaN mean with no matches, got %+v", stats)
	}
}

func TestComputeSQIFlatline(t *testing.T) {
	x := make([]float64, 200)
	for i := range x {
		x[i] = 2.5
	}
	got := ComputeSQI(x)
	if got.Flatness != 1.0 {
		t.Errorf("Flatness = %g, want 1.0", got.Flatness)
	}
	if got.Saturation != 1.0 {
		t.Errorf("Saturation = %g, want 1.0 for constant signal", got.Saturation)
	}
}

func TestComputeSQICleanWaveform(t *testing.T) {
	x := make([]float64, 512)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * float64(i) / 64.0)
	}
	got := ComputeSQI(x)
	if got.Flatness > 0.05 {
		t.Errorf("Flatness = %g, want near 0 for a moving sine", got.Flatness)
	}
	if got.SNRLike <= 1.0 {
		t.Errorf("SNRLike = %g, want > 1 for a smooth waveform", got.SNRLike)
	}
}

func TestComputeHRVTimeDomain(t *testing.T) {
	// Alternating intervals: diffs are exactly ±0.06 s.
	rr := make([]float64, 40)
	for i := range rr {
		if i%2 == 0 {
			rr[i] = 0.80
		} else {
			rr[i] = 0.86
		}
	}

	got := ComputeHRV(rr)
	if math.Abs(got.SDNN-0.03) > 1e-9 {
		t.Errorf("SDNN = %g, want 0.03", got.SDNN)
	}
	if math.Abs(got.RMSSD-0.06) > 1e-9 {
		t.Errorf("RMSSD = %g, want 0.06", got.RMSSD)
	}
	if got.PNN50 != 1.0 {
		t.Errorf("PNN50 = %g, want 1.0", got.PNN50)
	}
}

// modulatedRR builds ~150 beats whose interval oscillates at modHz.
func modulatedRR(modHz float64) []float64 {
	rr := make([]float64, 150)
	tm := 0.0
	for i := range rr {
		rr[i] = 0.8 + 0.05*math.Sin(2*math.Pi*modHz*tm)
		tm += rr[i]
	}
	return rr
}

func TestComputeHRVSpectralBands(t *testing.T) {
	// Respiration-like 0.30 Hz modulation concentrates power in HF.
	hfDominant := ComputeHRV(modulatedRR(0.30))
	if math.IsNaN(hfDominant.LFHF) {
		t.Fatal("expected spectral HRV for a 2-minute series")
	}
	if hfDominant.LFHF >= 1.0 {
		t.Errorf("LF/HF = %g for HF-modulated series, want < 1", hfDominant.LFHF)
	}

	// Slow 0.08 Hz modulation concentrates power in LF.
	lfDominant := ComputeHRV(modulatedRR(0.08))
	if lfDominant.LFHF <= 1.0 {
		t.Errorf("LF/HF = %g for LF-modulated series, want > 1", lfDominant.LFHF)
	}
}

func TestComputeHRVShortSeries(t *testing.T) {
	got := ComputeHRV([]float64{0.8, 0.82, 0.81})
	if math.IsNaN(got.SDNN) {
		t.Error("time-domain HRV should be available for 3 intervals")
	}
	if !math.IsNaN(got.LF) || !math.IsNaN(got.HF) || !math.IsNaN(got.LFHF) {
		t.Error("spectral HRV should be NaN for a short series")
	}
}

func TestComputeHRVEmpty(t *testing.T) {
	got := ComputeHRV(nil)
	if !math.IsNaN(got.SDNN) || !math.IsNaN(got.RMSSD) {
		t.Errorf("expected all-NaN HRV for empty input, got %+v", got)
	}
}
