// Package filter provides the preprocessing stage of the analysis pipeline:
// detrending, z-score normalization, median filtering and zero-phase
// Butterworth bandpass filtering.
//
// The bandpass is built from cascaded second-order sections (Direct Form II
// Transposed) and applied forward and backward so that detected event
// positions are not shifted by filter group delay.
package filter

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mode selects which channels are bandpass filtered during analysis.
type Mode string

const (
	// ModeDefault filters both channels: ECG 5-15 Hz, PPG 0.5-5 Hz
	ModeDefault Mode = "default"

	// ModePPGOnly filters the PPG channel and leaves the ECG untouched
	ModePPGOnly Mode = "ppg_only"

	// ModeOff disables bandpass filtering on both channels
	ModeOff Mode = "off"
)

// ParseMode validates a mode string from config or CLI flags.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDefault, ModePPGOnly, ModeOff:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown filter mode %q", s)
}

// Detrend removes the least-squares straight line from x and returns the
// residual. The input is not modified.
func Detrend(x []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n < 2 {
		copy(out, x)
		return out
	}

	// Fit y = a + b*t with t = 0..n-1 by ordinary least squares.
	t := make([]float64, n)
	for i := range t {
		t[i] = float64(i)
	}
	a, b := stat.LinearRegression(t, x, nil, false)

	for i, v := range x {
		out[i] = v - (a + b*float64(i))
	}
	return out
}

// ZScore returns (x - mean) / std. A near-zero standard deviation
// (constant signal) degrades to mean removal instead of dividing by zero.
func ZScore(x []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	mean := stat.Mean(x, nil)
	sd := stat.PopStdDev(x, nil)
	if sd < 1e-12 || math.IsNaN(sd) {
		sd = 1.0
	}

	for i, v := range x {
		out[i] = (v - mean) / sd
	}
	return out
}

// Median applies a sliding median filter with the given odd window length.
// Window samples are clamped at the signal edges.
func Median(x []float64, window int) ([]float64, error) {
	if window < 1 || window%2 == 0 {
		return nil, fmt.Errorf("median window must be a positive odd number, got %d", window)
	}
	n := len(x)
	out := make([]float64, n)
	if window == 1 || n == 0 {
		copy(out, x)
		return out, nil
	}

	half := window / 2
	buf := make([]float64, 0, window)
	for i := 0; i < n; i++ {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half + 1
		if hi > n {
			hi = n
		}
		buf = append(buf[:0], x[lo:hi]...)
		sort.Float64s(buf)
		m := len(buf)
		if m%2 == 1 {
			out[i] = buf[m/2]
		} else {
			out[i] = 0.5 * (buf[m/2-1] + buf[m/2])
		}
	}
	return out, nil
}

// Biquad is a single second-order IIR section with normalized coefficients
// (a0 == 1), processed in Direct Form II Transposed.
type Biquad struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Apply runs the section over x and returns the filtered output.
func (s Biquad) Apply(x []float64) []float64 {
	out := make([]float64, len(x))
	var z1, z2 float64
	for i, v := range x {
		y := s.B0*v + z1
		z1 = s.B1*v - s.A1*y + z2
		z2 = s.B2*v - s.A2*y
		out[i] = y
	}
	return out
}

// butterQ returns the Q factors of the second-order sections of an
// even-order Butterworth filter.
func butterQ(order int) []float64 {
	qs := make([]float64, order/2)
	for k := range qs {
		phi := math.Pi * float64(2*k+1) / float64(2*order)
		qs[k] = 1.0 / (2.0 * math.Cos(phi))
	}
	return qs
}

// lowpassSection designs one Butterworth low-pass biquad with the given Q
// via the bilinear transform.
func lowpassSection(fs, fc, q float64) Biquad {
	w0 := 2 * math.Pi * fc / fs
	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	a0 := 1 + alpha
	return Biquad{
		B0: (1 - cw) / 2 / a0,
		B1: (1 - cw) / a0,
		B2: (1 - cw) / 2 / a0,
		A1: -2 * cw / a0,
		A2: (1 - alpha) / a0,
	}
}

// highpassSection designs one Butterworth high-pass biquad with the given Q.
func highpassSection(fs, fc, q float64) Biquad {
	w0 := 2 * math.Pi * fc / fs
	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	a0 := 1 + alpha
	return Biquad{
		B0: (1 + cw) / 2 / a0,
		B1: -(1 + cw) / a0,
		B2: (1 + cw) / 2 / a0,
		A1: -2 * cw / a0,
		A2: (1 - alpha) / a0,
	}
}

// BandpassSections designs a Butterworth bandpass as a cascade of
// high-pass sections at the low cutoff and low-pass sections at the high
// cutoff. order is the Butterworth order of each edge and must be even.
func BandpassSections(fs, low, high float64, order int) ([]Biquad, error) {
	if fs <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %g", fs)
	}
	nyq := fs / 2
	if low <= 0 || high <= low || high >= nyq {
		return nil, fmt.Errorf("bandpass cutoffs must satisfy 0 < low < high < fs/2, got [%g, %g] at fs=%g", low, high, fs)
	}
	if order < 2 || order%2 != 0 {
		return nil, fmt.Errorf("filter order must be a positive even number, got %d", order)
	}

	sections := make([]Biquad, 0, order)
	for _, q := range butterQ(order) {
		sections = append(sections, highpassSection(fs, low, q))
	}
	for _, q := range butterQ(order) {
		sections = append(sections, lowpassSection(fs, high, q))
	}
	return sections, nil
}

// FiltFilt applies the section cascade forward and backward over x,
// giving a zero-phase response with squared magnitude. The signal is
// extended by odd reflection at both ends to reduce edge transients.
func FiltFilt(sections []Biquad, x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}

	pad := 3 * 2 * (len(sections) + 1)
	if pad > n-1 {
		pad = n - 1
	}

	ext := make([]float64, 0, n+2*pad)
	for i := pad; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := n - 2; i >= n-1-pad; i-- {
		ext = append(ext, 2*x[n-1]-x[i])
	}

	y := ext
	for _, s := range sections {
		y = s.Apply(y)
	}
	reverse(y)
	for _, s := range sections {
		y = s.Apply(y)
	}
	reverse(y)

	out := make([]float64, n)
	copy(out, y[pad:pad+n])
	return out
}

// Bandpass is the convenience wrapper used by the pipeline: design the
// cascade and run it zero-phase over x.
func Bandpass(x []float64, fs, low, high float64, order int) ([]float64, error) {
	sections, err := BandpassSections(fs, low, high, order)
	if err != nil {
		return nil, err
	}
	return FiltFilt(sections, x), nil
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
