package metrics

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// Frequency bands and tachogram parameters for spectral HRV.
const (
	lfLow  = 0.04 // Hz
	lfHigh = 0.15
	hfLow  = 0.15
	hfHigh = 0.40

	// tachogramFs is the rate the unevenly spaced RR series is resampled
	// to before the periodogram.
	tachogramFs = 4.0

	// minSpectralDuration is the shortest RR series (seconds) for which
	// the LF band is resolvable enough to report.
	minSpectralDuration = 30.0

	// minSpectralBeats is the minimum interval count for spectral HRV.
	minSpectralBeats = 10
)

// HRV holds time- and frequency-domain heart rate variability measures.
// Frequency-domain fields are NaN when the RR series is too short.
type HRV struct {
	// SDNN is the standard deviation of all intervals in seconds
	SDNN float64

	// RMSSD is the root mean square of successive differences in seconds
	RMSSD float64

	// PNN50 is the fraction of successive differences exceeding 50 ms
	PNN50 float64

	// LF is the low-frequency (0.04-0.15 Hz) tachogram power in s^2
	LF float64

	// HF is the high-frequency (0.15-0.40 Hz) tachogram power in s^2
	HF float64

	// LFHF is the LF/HF sympathovagal balance ratio
	LFHF float64
}

// ComputeHRV derives variability measures from beat intervals in seconds.
func ComputeHRV(rr []float64) HRV {
	out := HRV{
		SDNN:  math.NaN(),
		RMSSD: math.NaN(),
		PNN50: math.NaN(),
		LF:    math.NaN(),
		HF:    math.NaN(),
		LFHF:  math.NaN(),
	}
	if len(rr) < 2 {
		return out
	}

	out.SDNN = stat.PopStdDev(rr, nil)

	var sumSq float64
	var over50 int
	for i := 1; i < len(rr); i++ {
		d := rr[i] - rr[i-1]
		sumSq += d * d
		if math.Abs(d) > 0.050 {
			over50++
		}
	}
	nd := float64(len(rr) - 1)
	out.RMSSD = math.Sqrt(sumSq / nd)
	out.PNN50 = float64(over50) / nd

	lf, hf, ok := spectralPower(rr)
	if ok {
		out.LF = lf
		out.HF = hf
		if hf > 0 {
			out.LFHF = lf / hf
		}
	}
	return out
}

// spectralPower resamples the RR tachogram to a uniform grid, applies a
// Hann window and integrates the periodogram over the LF and HF bands.
func spectralPower(rr []float64) (lf, hf float64, ok bool) {
	if len(rr) < minSpectralBeats {
		return 0, 0, false
	}

	// Beat times: interval i ends at the cumulative sum of intervals.
	beatT := make([]float64, len(rr))
	var acc float64
	for i, v := range rr {
		acc += v
		beatT[i] = acc
	}
	duration := beatT[len(beatT)-1] - beatT[0]
	if duration < minSpectralDuration {
		return 0, 0, false
	}

	// Linear interpolation of the tachogram onto the uniform grid.
	n := int(duration * tachogramFs)
	grid := make([]float64, n)
	j := 0
	for i := range grid {
		t := beatT[0] + float64(i)/tachogramFs
		for j < len(beatT)-2 && beatT[j+1] < t {
			j++
		}
		t0, t1 := beatT[j], beatT[j+1]
		frac := 0.0
		if t1 > t0 {
			frac = (t - t0) / (t1 - t0)
		}
		grid[i] = rr[j] + frac*(rr[j+1]-rr[j])
	}

	// Remove the mean and apply a Hann window.
	mean := stat.Mean(grid, nil)
	var windowPower float64
	for i := range grid {
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		grid[i] = (grid[i] - mean) * w
		windowPower += w * w
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, grid)

	// One-sided PSD in s^2/Hz, integrated per frequency bin.
	df := tachogramFs / float64(n)
	for k := 1; k < len(coeffs); k++ {
		f := float64(k) * df
		p := cmplxAbs2(coeffs[k]) / (tachogramFs * windowPower)
		if k != n/2 {
			p *= 2 // fold negative frequencies
		}
		switch {
		case f >= lfLow && f < lfHigh:
			lf += p * df
		case f >= hfLow && f < hfHigh:
			hf += p * df
		}
	}
	return lf, hf, true
}

func cmplxAbs2(c complex128) float64 {
	return real(c)*real(c) + imag(c)*imag(c)
}
