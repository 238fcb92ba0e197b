// Package peaks implements cardiac event detection on filtered waveforms.
//
// Detection is a local-maximum search constrained by a minimum peak
// distance (refractory period) and a minimum topographic prominence,
// evaluated on the z-scored signal so that thresholds are amplitude
// independent.
package peaks

import (
	"sort"

	"cardiosync/pkg/filter"
)

// Config holds the detector thresholds for one signal modality.
type Config struct {
	// MinDistanceSec is the minimum spacing between accepted peaks in
	// seconds. Acts as a refractory period.
	MinDistanceSec float64

	// MinProminence is the minimum peak prominence on the z-scored
	// signal. Peaks rising less than this above their surrounding
	// contour are rejected.
	MinProminence float64
}

// RPeakDefaults are the ECG R-peak thresholds: sharp, high-prominence
// deflections at most 240 bpm.
var RPeakDefaults = Config{MinDistanceSec: 0.25, MinProminence: 1.0}

// PulseDefaults are the PPG pulse-peak thresholds: smoother, lower
// prominence waves at most 200 bpm.
var PulseDefaults = Config{MinDistanceSec: 0.30, MinProminence: 0.3}

// Detect z-scores x and returns the indices of peaks satisfying cfg,
// in ascending order.
func Detect(x []float64, fs float64, cfg Config) []int {
	z := filter.ZScore(x)
	minDist := int(cfg.MinDistanceSec * fs)
	return Find(z, minDist, cfg.MinProminence)
}

// Find returns the indices of local maxima of x with at least the given
// sample distance between them and at least the given prominence.
// Plateau maxima report their middle sample.
func Find(x []float64, minDistance int, minProminence float64) []int {
	maxima := localMaxima(x)
	if minProminence > 0 {
		kept := maxima[:0]
		for _, p := range maxima {
			if Prominence(x, p) >= minProminence {
				kept = append(kept, p)
			}
		}
		maxima = kept
	}
	if minDistance > 1 {
		maxima = enforceDistance(x, maxima, minDistance)
	}
	return maxima
}

// localMaxima finds strict local maxima, resolving flat plateaus to their
// middle sample.
func localMaxima(x []float64) []int {
	var out []int
	n := len(x)
	i := 1
	for i < n-1 {
		if x[i] <= x[i-1] {
			i++
			continue
		}
		// Ascending edge found; scan across a possible plateau.
		j := i
		for j < n-1 && x[j+1] == x[j] {
			j++
		}
		if j < n-1 && x[j+1] < x[j] {
			out = append(out, (i+j)/2)
		}
		i = j + 1
	}
	return out
}

// Prominence computes the topographic prominence of the peak at index p:
// the height of p above the higher of the two valley floors separating it
// from the nearest higher terrain (or the signal edge).
func Prominence(x []float64, p int) float64 {
	leftMin := x[p]
	for i := p - 1; i >= 0; i-- {
		if x[i] > x[p] {
			break
		}
		if x[i] < leftMin {
			leftMin = x[i]
		}
	}

	rightMin := x[p]
	for i := p + 1; i < len(x); i++ {
		if x[i] > x[p] {
			break
		}
		if x[i] < rightMin {
			rightMin = x[i]
		}
	}

	base := leftMin
	if rightMin > base {
		base = rightMin
	}
	return x[p] - base
}

// enforceDistance keeps the highest peaks first and drops any remaining
// peak closer than minDistance samples to an already accepted one.
func enforceDistance(x []float64, candidates []int, minDistance int) []int {
	order := append([]int(nil), candidates...)
	sort.Slice(order, func(a, b int) bool {
		return x[order[a]] > x[order[b]]
	})

	accepted := make([]int, 0, len(order))
	for _, p := range order {
		ok := true
		for _, q := range accepted {
			d := p - q
			if d < 0 {
				d = -d
			}
			if d < minDistance {
				ok = false
				break
			}
		}
		if ok {
			accepted = append(accepted, p)
		}
	}

	sort.Ints(accepted)
	return accepted
}
