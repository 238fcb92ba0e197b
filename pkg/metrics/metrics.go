// Package metrics derives clinical summary numbers from detected cardiac
// events: heart rate, beat-interval statistics, heart rate variability,
// pulse transit time and basic signal quality indices.
//
// Metrics that cannot be computed from the available events (fewer than
// two peaks, no matched beat pairs) are reported as NaN rather than an
// error, matching how a reviewer reads an analysis table.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// RRStats summarizes beat-to-beat intervals from one event train.
type RRStats struct {
	// BPM is 60 / mean(RR), NaN with fewer than 2 peaks
	BPM float64

	// MeanRR is the mean beat interval in seconds
	MeanRR float64

	// SDRR is the population standard deviation of intervals in seconds
	SDRR float64

	// Count is the number of intervals
	Count int
}

// Intervals converts peak sample indices to inter-beat intervals in
// seconds.
func Intervals(peakIdx []int, fs float64) []float64 {
	if len(peakIdx) < 2 {
		return nil
	}
	rr := make([]float64, len(peakIdx)-1)
	for i := 1; i < len(peakIdx); i++ {
		rr[i-1] = float64(peakIdx[i]-peakIdx[i-1]) / fs
	}
	return rr
}

// IntervalStats computes heart rate and interval statistics from peak
// indices.
func IntervalStats(peakIdx []int, fs float64) RRStats {
	rr := Intervals(peakIdx, fs)
	if len(rr) == 0 {
		return RRStats{BPM: math.NaN(), MeanRR: math.NaN(), SDRR: math.NaN()}
	}

	mean := stat.Mean(rr, nil)
	out := RRStats{
		MeanRR: mean,
		SDRR:   stat.PopStdDev(rr, nil),
		Count:  len(rr),
	}
	if mean > 0 {
		out.BPM = 60.0 / mean
	} else {
		out.BPM = math.NaN()
	}
	return out
}

// PTTStats summarizes pulse transit times over matched beat pairs.
type PTTStats struct {
	// Mean transit time in seconds, NaN when no pairs matched
	Mean float64

	// SD is the population standard deviation in seconds
	SD float64

	// Count is the number of matched R-peak/pulse-peak pairs
	Count int
}

// PTT matches every ECG R-peak with the first PPG pulse peak at or after
// it and keeps transit times inside (0, maxPTT) seconds. Both index
// slices must refer to the same sample grid. The individual transit
// times are returned alongside their statistics.
func PTT(rIdx, pulseIdx []int, fs, maxPTT float64) ([]float64, PTTStats) {
	var ptts []float64
	j := 0
	for _, r := range rIdx {
		for j < len(pulseIdx) && pulseIdx[j] < r {
			j++
		}
		if j >= len(pulseIdx) {
			break
		}
		ptt := float64(pulseIdx[j]-r) / fs
		if ptt > 0 && ptt < maxPTT {
			ptts = append(ptts, ptt)
		}
	}

	if len(ptts) == 0 {
		return nil, PTTStats{Mean: math.NaN(), SD: math.NaN()}
	}
	return ptts, PTTStats{
		Mean:  stat.Mean(ptts, nil),
		SD:    stat.PopStdDev(ptts, nil),
		Count: len(ptts),
	}
}

// SQI holds simple per-channel signal quality indices.
type SQI struct {
	// Saturation is the fraction of samples within 1% of the signal's
	// range extremes (clipping indicator)
	Saturation float64 `json:"saturation"`

	// Flatness is the fraction of successive differences below 1e-4
	// (dropout / flatline indicator)
	Flatness float64 `json:"flatness"`

	// SNRLike is var(x) / mean(|diff(x)|), large for smooth
	// well-resolved waveforms
	SNRLike float64 `json:"snr_like"`
}

// ComputeSQI evaluates the quality indices over x.
func ComputeSQI(x []float64) SQI {
	n := len(x)
	if n < 2 {
		return SQI{}
	}

	min, max := x[0], x[0]
	for _, v := range x {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	rng := max - min + 1e-9

	var saturated int
	for _, v := range x {
		if v > max-0.01*rng || v < min+0.01*rng {
			saturated++
		}
	}

	var flat int
	var absDiffSum float64
	for i := 1; i < n; i++ {
		d := math.Abs(x[i] - x[i-1])
		if d < 1e-4 {
			flat++
		}
		absDiffSum += d
	}
	meanAbsDiff := absDiffSum / float64(n-1)

	return SQI{
		Saturation: float64(saturated) / float64(n),
		Flatness:   float64(flat) / float64(n-1),
		SNRLike:    stat.PopVariance(x, nil) / (meanAbsDiff + 1e-9),
	}
}
