// Package analysis ties the pipeline stages together: ROI cropping,
// common-grid alignment, filtering, event detection, metrics and beat
// templates, in that order.
//
// The Analyzer is a stateless batch transform: raw recording plus ROI in,
// Result out. ECG and PPG preprocessing run concurrently since the
// branches are independent until the pulse-pairing stage.
package analysis

import (
	"errors"
	"fmt"

	"cardiosync/internal/models"
	"cardiosync/pkg/align"
	"cardiosync/pkg/config"
	"cardiosync/pkg/filter"
	"cardiosync/pkg/metrics"
	"cardiosync/pkg/peaks"
	"cardiosync/pkg/template"
)

// ErrMissingChannel indicates a recording without both required channels.
var ErrMissingChannel = errors.New("analysis: recording must have ECG and PPG channels")

// Params holds the analysis configuration for one run.
type Params struct {
	// ROI is the window to analyze in recording-relative seconds
	ROI models.ROI

	// TargetRate is the common grid rate in Hz; 0 uses the ECG rate
	TargetRate float64

	// FilterMode selects which channels are bandpass filtered
	FilterMode filter.Mode

	// Detrend removes the least-squares trend before filtering
	Detrend bool

	// FilterOrder is the Butterworth order of each band edge
	FilterOrder int

	// MedianWindowSec applies a median prefilter when positive
	MedianWindowSec float64

	// ECGLow, ECGHigh, PPGLow, PPGHigh are the passbands in Hz
	ECGLow, ECGHigh float64
	PPGLow, PPGHigh float64

	// RPeak and Pulse are the detector thresholds per channel
	RPeak peaks.Config
	Pulse peaks.Config

	// MaxPTTSec bounds plausible pulse transit times
	MaxPTTSec float64

	// MaxLagSec bounds the cross-correlation delay search
	MaxLagSec float64

	// TemplatePreSec and TemplatePostSec are the beat window extents
	TemplatePreSec  float64
	TemplatePostSec float64

	// Verbose enables stage progress output
	Verbose bool
}

// ParamsFromConfig builds run parameters from the loaded configuration.
func ParamsFromConfig(cfg *config.Config, roi models.ROI) (*Params, error) {
	mode, err := filter.ParseMode(cfg.Filter.Mode)
	if err != nil {
		return nil, err
	}
	return &Params{
		ROI:             roi,
		TargetRate:      cfg.Signal.TargetRate,
		FilterMode:      mode,
		Detrend:         cfg.Filter.Detrend,
		FilterOrder:     cfg.Filter.Order,
		MedianWindowSec: cfg.Filter.MedianWindowSec,
		ECGLow:          cfg.Filter.ECGLow,
		ECGHigh:         cfg.Filter.ECGHigh,
		PPGLow:          cfg.Filter.PPGLow,
		PPGHigh:         cfg.Filter.PPGHigh,
		RPeak: peaks.Config{
			MinDistanceSec: cfg.Detector.RPeakDistanceSec,
			MinProminence:  cfg.Detector.RPeakProminence,
		},
		Pulse: peaks.Config{
			MinDistanceSec: cfg.Detector.PulseDistanceSec,
			MinProminence:  cfg.Detector.PulseProminence,
		},
		MaxPTTSec:       cfg.Analysis.MaxPTTSec,
		MaxLagSec:       cfg.Analysis.MaxLagSec,
		TemplatePreSec:  cfg.Analysis.TemplatePreSec,
		TemplatePostSec: cfg.Analysis.TemplatePostSec,
		Verbose:         cfg.Output.Verbose,
	}, nil
}

// Analyzer runs the ROI analysis pipeline.
type Analyzer struct {
	params *Params
}

// New creates an analyzer with the provided parameters.
func New(params *Params) *Analyzer {
	return &Analyzer{params: params}
}

// Process runs the full pipeline over rec and returns the analysis result.
func (a *Analyzer) Process(rec *models.Recording) (*Result, error) {
	if rec == nil || rec.ECG == nil || rec.PPG == nil {
		return nil, ErrMissingChannel
	}
	p := a.params

	// Step 1: crop every channel to the ROI.
	a.logf("Step 1: Cropping channels to ROI [%.2fs, %.2fs)...", p.ROI.Start, p.ROI.End)
	cropped := &models.Recording{Source: rec.Source}
	for _, s := range rec.Channels() {
		c, err := align.CropROI(s, p.ROI)
		if err != nil {
			return nil, fmt.Errorf("analysis: cropping %s: %w", s.Channel, err)
		}
		switch s.Channel {
		case models.ChannelECG:
			cropped.ECG = c
		case models.ChannelPPG:
			cropped.PPG = c
		case models.ChannelAux:
			cropped.Aux = c
		}
	}

	// Step 2: resample onto the common time grid.
	targetRate := p.TargetRate
	if targetRate <= 0 {
		targetRate = cropped.ECG.SampleRate
	}
	a.logf("Step 2: Aligning channels on a %.6g Hz grid...", targetRate)
	aligned, err := align.CommonGrid(cropped, targetRate)
	if err != nil {
		return nil, fmt.Errorf("analysis: aligning channels: %w", err)
	}
	fs := targetRate
	n := len(aligned.ECG.Samples)

	// Step 3: preprocess both branches concurrently.
	a.logf("Step 3: Filtering (mode=%s, detrend=%v)...", p.FilterMode, p.Detrend)
	type branch struct {
		ch       models.Channel
		filtered []float64
		err      error
	}
	results := make(chan branch, 2)
	go func() {
		f, err := a.preprocess(aligned.ECG.Samples, fs, p.ECGLow, p.ECGHigh,
			p.FilterMode == filter.ModeDefault)
		results <- branch{models.ChannelECG, f, err}
	}()
	go func() {
		f, err := a.preprocess(aligned.PPG.Samples, fs, p.PPGLow, p.PPGHigh,
			p.FilterMode == filter.ModeDefault || p.FilterMode == filter.ModePPGOnly)
		results <- branch{models.ChannelPPG, f, err}
	}()

	var ecgF, ppgF []float64
	for i := 0; i < 2; i++ {
		b := <-results
		if b.err != nil {
			return nil, fmt.Errorf("analysis: filtering %s: %w", b.ch, b.err)
		}
		if b.ch == models.ChannelECG {
			ecgF = b.filtered
		} else {
			ppgF = b.filtered
		}
	}

	// Step 4: detect cardiac events.
	a.logf("Step 4: Detecting peaks...")
	rIdx := peaks.Detect(ecgF, fs, p.RPeak)
	pulseIdx := peaks.Detect(ppgF, fs, p.Pulse)
	a.logf("Detected %d R-peaks and %d pulse peaks", len(rIdx), len(pulseIdx))

	// Step 5: metrics and beat templates.
	a.logf("Step 5: Computing metrics and templates...")
	res := &Result{
		Source:     rec.Source,
		ROI:        p.ROI,
		SampleRate: fs,
		NumSamples: n,
		StartTime:  aligned.ECG.StartTime,
		ECG: ChannelResult{
			Channel:  models.ChannelECG,
			Filtered: ecgF,
			Peaks:    rIdx,
			Rate:     metrics.IntervalStats(rIdx, fs),
			SQI:      metrics.ComputeSQI(ecgF),
		},
		PPG: ChannelResult{
			Channel:  models.ChannelPPG,
			Filtered: ppgF,
			Peaks:    pulseIdx,
			Rate:     metrics.IntervalStats(pulseIdx, fs),
			SQI:      metrics.ComputeSQI(ppgF),
		},
	}

	res.HRV = metrics.ComputeHRV(metrics.Intervals(rIdx, fs))
	res.PTTValues, res.PTT = metrics.PTT(rIdx, pulseIdx, fs, p.MaxPTTSec)
	res.DelaySec, res.DelayCorr = align.DelaySeconds(ecgF, ppgF, fs, p.MaxLagSec)

	res.ECG.Template = a.extractTemplate(ecgF, rIdx, fs)
	res.PPG.Template = a.extractTemplate(ppgF, pulseIdx, fs)

	if aligned.Aux != nil {
		sqi := metrics.ComputeSQI(aligned.Aux.Samples)
		res.AuxSQI = &sqi
	}
	return res, nil
}

// preprocess runs the per-channel filter chain: optional median filter,
// optional detrend, optional bandpass.
func (a *Analyzer) preprocess(x []float64, fs, low, high float64, bandpass bool) ([]float64, error) {
	p := a.params
	out := x
	copied := false

	if p.MedianWindowSec > 0 {
		w := int(p.MedianWindowSec * fs)
		if w%2 == 0 {
			w++
		}
		var err error
		out, err = filter.Median(out, w)
		if err != nil {
			return nil, err
		}
		copied = true
	}
	if p.Detrend {
		out = filter.Detrend(out)
		copied = true
	}
	if bandpass {
		return filter.Bandpass(out, fs, low, high, p.FilterOrder)
	}
	if !copied {
		out = append([]float64(nil), x...)
	}
	return out, nil
}

// extractTemplate tolerates ROIs too short for a full beat window.
func (a *Analyzer) extractTemplate(x []float64, peakIdx []int, fs float64) *template.Template {
	tpl, err := template.Extract(x, peakIdx, fs, a.params.TemplatePreSec, a.params.TemplatePostSec)
	if err != nil {
		a.logf("No beat template: %v", err)
		return nil
	}
	return tpl
}

func (a *Analyzer) logf(format string, args ...any) {
	if a.params.Verbose {
		fmt.Printf(format+"\n", args...)
	}
}
