package models

// Channel identifies a physiological signal modality.
type Channel string

const (
	// ChannelECG is the electrocardiogram channel
	ChannelECG Channel = "ecg"

	// ChannelPPG is the photoplethysmogram channel
	ChannelPPG Channel = "ppg"

	// ChannelAux is an optional auxiliary channel (e.g. IMU magnitude)
	ChannelAux Channel = "aux"
)

// Signal represents a single uniformly sampled waveform with metadata
type Signal struct {
	// Channel identifies the modality of this signal
	Channel Channel

	// Samples is the waveform amplitude data
	Samples []float64

	// SampleRate is the sampling frequency in Hz
	SampleRate float64

	// StartTime is the time offset of the first sample in seconds,
	// relative to the start of the recording
	StartTime float64
}

// Duration returns the length of the signal in seconds.
func (s *Signal) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / s.SampleRate
}

// TimeAt returns the recording-relative time of sample i in seconds.
func (s *Signal) TimeAt(i int) float64 {
	return s.StartTime + float64(i)/s.SampleRate
}

// Times returns the full time axis of the signal in seconds.
func (s *Signal) Times() []float64 {
	t := make([]float64, len(s.Samples))
	for i := range t {
		t[i] = s.TimeAt(i)
	}
	return t
}

// Clone returns a deep copy of the signal.
func (s *Signal) Clone() *Signal {
	out := *s
	out.Samples = append([]float64(nil), s.Samples...)
	return &out
}

// Recording holds the simultaneously captured channels of one session
type Recording struct {
	// ECG is the electrocardiogram channel
	ECG *Signal

	// PPG is the photoplethysmogram channel
	PPG *Signal

	// Aux is an optional third channel; nil when absent
	Aux *Signal

	// Source is the file or generator the recording was loaded from
	Source string
}

// Channels returns the non-nil channels of the recording in a stable order.
func (r *Recording) Channels() []*Signal {
	out := make([]*Signal, 0, 3)
	for _, s := range []*Signal{r.ECG, r.PPG, r.Aux} {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// ROI is a user-selected time window in recording-relative seconds.
// Start is inclusive, End exclusive.
type ROI struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Width returns the ROI length in seconds.
func (r ROI) Width() float64 {
	return r.End - r.Start
}
