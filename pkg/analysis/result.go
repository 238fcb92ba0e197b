package analysis

import (
	"encoding/json"

	"cardiosync/internal/models"
	"cardiosync/pkg/metrics"
	"cardiosync/pkg/template"
)

// ChannelResult holds the per-channel outcome of an ROI analysis.
type ChannelResult struct {
	// Channel identifies the modality
	Channel models.Channel `json:"channel"`

	// Filtered is the preprocessed waveform on the common grid
	Filtered []float64 `json:"-"`

	// Peaks are sample indices of detected events on the common grid
	Peaks []int `json:"peaks"`

	// Rate holds BPM and beat-interval statistics for this channel
	Rate metrics.RRStats `json:"rate"`

	// SQI holds the quality indices of the filtered waveform
	SQI metrics.SQI `json:"sqi"`

	// Template is the averaged beat waveform; nil when no complete beat
	// window fit inside the ROI
	Template *template.Template `json:"-"`
}

// Result is the complete outcome of one ROI analysis.
type Result struct {
	// Source names the input recording
	Source string `json:"source"`

	// ROI is the analyzed window in recording-relative seconds
	ROI models.ROI `json:"roi"`

	// SampleRate is the common grid rate in Hz
	SampleRate float64 `json:"fs"`

	// NumSamples is the per-channel length on the common grid
	NumSamples int `json:"n_samples"`

	// StartTime is the common grid origin in seconds
	StartTime float64 `json:"start_time"`

	// ECG and PPG are the per-channel results
	ECG ChannelResult `json:"ecg"`
	PPG ChannelResult `json:"ppg"`

	// AuxSQI holds quality indices of the optional third channel
	AuxSQI *metrics.SQI `json:"aux_sqi,omitempty"`

	// HRV is derived from the ECG beat intervals
	HRV metrics.HRV `json:"hrv"`

	// PTTValues are the matched per-beat transit times in seconds
	PTTValues []float64 `json:"ptt_values,omitempty"`

	// PTT summarizes the transit times
	PTT metrics.PTTStats `json:"ptt"`

	// DelaySec is the cross-correlation delay of PPG relative to ECG
	// (positive: PPG lags)
	DelaySec float64 `json:"delay_xcorr_s"`

	// DelayCorr is the normalized correlation at the best lag
	DelayCorr float64 `json:"delay_xcorr_r"`
}

// resultAlias avoids method recursion in the JSON round trip.
type resultAlias Result

type resultJSON struct {
	resultAlias
	DelaySec  *float64 `json:"delay_xcorr_s"`
	DelayCorr *float64 `json:"delay_xcorr_r"`
}

// MarshalJSON encodes NaN delay values as null, matching the metrics
// types.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		resultAlias: resultAlias(r),
		DelaySec:    metrics.NullableFloat(r.DelaySec),
		DelayCorr:   metrics.NullableFloat(r.DelayCorr),
	})
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var raw resultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Result(raw.resultAlias)
	r.DelaySec = metrics.FloatOrNaN(raw.DelaySec)
	r.DelayCorr = metrics.FloatOrNaN(raw.DelayCorr)
	return nil
}

// Times returns the common grid time axis of the result.
func (r *Result) Times() []float64 {
	out := make([]float64, r.NumSamples)
	for i := range out {
		out[i] = r.StartTime + float64(i)/r.SampleRate
	}
	return out
}
