// Package align crops signals to a region of interest and places
// differently clocked channels onto a common time base.
//
// Alignment is a three step process: per-channel ROI crop, resampling to a
// shared target rate (cubic interpolation), and truncation to the common
// overlap. A cross-correlation delay estimate between the aligned channels
// is provided for clock-offset diagnostics.
package align

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"

	"cardiosync/internal/models"
	"cardiosync/pkg/filter"
)

// ErrEmptyROI indicates an ROI that does not overlap the signal or spans
// fewer than two samples.
var ErrEmptyROI = errors.New("align: ROI does not cover any samples")

// sameRateTol is the relative rate difference below which resampling is
// skipped entirely.
const sameRateTol = 1e-6

// CropROI returns the portion of s inside the ROI. Bounds are clamped to
// the signal extent; an ROI that misses the signal entirely returns
// ErrEmptyROI.
func CropROI(s *models.Signal, roi models.ROI) (*models.Signal, error) {
	if roi.End <= roi.Start {
		return nil, fmt.Errorf("align: ROI end %.3fs must be after start %.3fs", roi.End, roi.Start)
	}

	start := int(math.Round((roi.Start - s.StartTime) * s.SampleRate))
	end := int(math.Round((roi.End - s.StartTime) * s.SampleRate))
	if start < 0 {
		start = 0
	}
	if end > len(s.Samples) {
		end = len(s.Samples)
	}
	if end-start < 2 {
		return nil, ErrEmptyROI
	}

	return &models.Signal{
		Channel:    s.Channel,
		Samples:    append([]float64(nil), s.Samples[start:end]...),
		SampleRate: s.SampleRate,
		StartTime:  s.TimeAt(start),
	}, nil
}

// TruncateCommon cuts both slices to their shared minimum length,
// discarding trailing samples of the longer one.
func TruncateCommon(a, b []float64) ([]float64, []float64) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	return a[:n], b[:n]
}

// Resample interpolates s onto a uniform grid at targetFs. Rates already
// matching within tolerance return a copy unchanged. Short signals fall
// back from cubic to linear interpolation.
func Resample(s *models.Signal, targetFs float64) (*models.Signal, error) {
	if targetFs <= 0 {
		return nil, fmt.Errorf("align: target rate must be positive, got %g", targetFs)
	}
	if math.Abs(s.SampleRate-targetFs) < sameRateTol*targetFs {
		return s.Clone(), nil
	}
	if len(s.Samples) < 2 {
		return nil, fmt.Errorf("align: need at least 2 samples to resample, got %d", len(s.Samples))
	}

	xs := s.Times()
	pred, err := fitPredictor(xs, s.Samples)
	if err != nil {
		return nil, fmt.Errorf("align: fitting interpolant: %w", err)
	}

	tEnd := xs[len(xs)-1]
	n := int(math.Floor((tEnd-s.StartTime)*targetFs)) + 1
	out := make([]float64, n)
	for i := range out {
		t := s.StartTime + float64(i)/targetFs
		// Keep queries inside the fitted range.
		if t > tEnd {
			t = tEnd
		}
		out[i] = pred.Predict(t)
	}

	return &models.Signal{
		Channel:    s.Channel,
		Samples:    out,
		SampleRate: targetFs,
		StartTime:  s.StartTime,
	}, nil
}

// fitPredictor picks a cubic interpolant when the signal is long enough
// and degrades to linear otherwise.
func fitPredictor(xs, ys []float64) (interp.Predictor, error) {
	if len(xs) >= 5 {
		var ak interp.AkimaSpline
		if err := ak.Fit(xs, ys); err != nil {
			return nil, err
		}
		return &ak, nil
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, err
	}
	return &pl, nil
}

// CommonGrid resamples every channel of rec to targetFs, crops all of them
// to the overlapping time range and truncates to a common sample count.
// The returned recording shares no storage with the input.
func CommonGrid(rec *models.Recording, targetFs float64) (*models.Recording, error) {
	chans := rec.Channels()
	if len(chans) < 2 {
		return nil, errors.New("align: need at least two channels to build a common grid")
	}

	resampled := make([]*models.Signal, len(chans))
	latestStart := math.Inf(-1)
	earliestEnd := math.Inf(1)
	for i, s := range chans {
		rs, err := Resample(s, targetFs)
		if err != nil {
			return nil, fmt.Errorf("align: channel %s: %w", s.Channel, err)
		}
		resampled[i] = rs
		if rs.StartTime > latestStart {
			latestStart = rs.StartTime
		}
		if end := rs.StartTime + rs.Duration(); end < earliestEnd {
			earliestEnd = end
		}
	}
	if earliestEnd-latestStart <= 1.0/targetFs {
		return nil, errors.New("align: channels do not overlap in time")
	}

	minLen := math.MaxInt
	for i, rs := range resampled {
		skip := int(math.Round((latestStart - rs.StartTime) * targetFs))
		if skip < 0 {
			skip = 0
		}
		rs.Samples = rs.Samples[skip:]
		rs.StartTime = latestStart
		if len(rs.Samples) < minLen {
			minLen = len(rs.Samples)
		}
		resampled[i] = rs
	}
	for _, rs := range resampled {
		rs.Samples = rs.Samples[:minLen]
	}

	out := &models.Recording{Source: rec.Source}
	for _, rs := range resampled {
		switch rs.Channel {
		case models.ChannelECG:
			out.ECG = rs
		case models.ChannelPPG:
			out.PPG = rs
		case models.ChannelAux:
			out.Aux = rs
		}
	}
	return out, nil
}

// DelaySeconds estimates how far y lags x (positive: y later), searching
// lags within ±maxLagSec. Both inputs are z-scored and the normalized
// correlation at the best lag is returned alongside the delay.
//
// Lags leaving less than a quarter of the samples overlapping are not
// considered, so a short spurious edge match cannot win.
func DelaySeconds(x, y []float64, fs, maxLagSec float64) (delay, corr float64) {
	x, y = TruncateCommon(x, y)
	n := len(x)
	if n < 2 {
		return 0, 0
	}

	xz := filter.ZScore(x)
	yz := filter.ZScore(y)

	maxLag := n - 1
	if maxLagSec > 0 {
		if l := int(maxLagSec * fs); l < maxLag {
			maxLag = l
		}
	}
	minOverlap := n / 4
	if minOverlap < 2 {
		minOverlap = 2
	}

	bestLag := 0
	bestCorr := math.Inf(-1)
	for lag := -maxLag; lag <= maxLag; lag++ {
		var sum float64
		count := 0
		for t := 0; t < n; t++ {
			u := t + lag
			if u < 0 || u >= n {
				continue
			}
			sum += xz[t] * yz[u]
			count++
		}
		if count < minOverlap {
			continue
		}
		c := sum / float64(count)
		if c > bestCorr {
			bestCorr = c
			bestLag = lag
		}
	}
	if math.IsInf(bestCorr, -1) {
		return 0, 0
	}
	return float64(bestLag) / fs, bestCorr
}
