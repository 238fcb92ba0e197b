package metrics

import (
	"encoding/json"
	"math"
)

// NaN metrics encode as JSON null so results stay valid JSON; decoding
// maps null back to NaN.

// NullableFloat converts a possibly-NaN metric to its JSON representation.
func NullableFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// FloatOrNaN converts a decoded JSON value back to a metric.
func FloatOrNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

type rrStatsJSON struct {
	BPM    *float64 `json:"bpm"`
	MeanRR *float64 `json:"mean_rr_s"`
	SDRR   *float64 `json:"sd_rr_s"`
	Count  int      `json:"count"`
}

func (s RRStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(rrStatsJSON{
		BPM:    NullableFloat(s.BPM),
		MeanRR: NullableFloat(s.MeanRR),
		SDRR:   NullableFloat(s.SDRR),
		Count:  s.Count,
	})
}

func (s *RRStats) UnmarshalJSON(data []byte) error {
	var raw rrStatsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.BPM = FloatOrNaN(raw.BPM)
	s.MeanRR = FloatOrNaN(raw.MeanRR)
	s.SDRR = FloatOrNaN(raw.SDRR)
	s.Count = raw.Count
	return nil
}

type pttStatsJSON struct {
	Mean  *float64 `json:"mean_s"`
	SD    *float64 `json:"sd_s"`
	Count int      `json:"count"`
}

func (s PTTStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(pttStatsJSON{
		Mean:  NullableFloat(s.Mean),
		SD:    NullableFloat(s.SD),
		Count: s.Count,
	})
}

func (s *PTTStats) UnmarshalJSON(data []byte) error {
	var raw pttStatsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Mean = FloatOrNaN(raw.Mean)
	s.SD = FloatOrNaN(raw.SD)
	s.Count = raw.Count
	return nil
}

type hrvJSON struct {
	SDNN  *float64 `json:"sdnn"`
	RMSSD *float64 `json:"rmssd"`
	PNN50 *float64 `json:"pnn50"`
	LF    *float64 `json:"lf"`
	HF    *float64 `json:"hf"`
	LFHF  *float64 `json:"lf_hf"`
}

func (h HRV) MarshalJSON() ([]byte, error) {
	return json.Marshal(hrvJSON{
		SDNN:  NullableFloat(h.SDNN),
		RMSSD: NullableFloat(h.RMSSD),
		PNN50: NullableFloat(h.PNN50),
		LF:    NullableFloat(h.LF),
		HF:    NullableFloat(h.HF),
		LFHF:  NullableFloat(h.LFHF),
	})
}

func (h *HRV) UnmarshalJSON(data []byte) error {
	var raw hrvJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	h.SDNN = FloatOrNaN(raw.SDNN)
	h.RMSSD = FloatOrNaN(raw.RMSSD)
	h.PNN50 = FloatOrNaN(raw.PNN50)
	h.LF = FloatOrNaN(raw.LF)
	h.HF = FloatOrNaN(raw.HF)
	h.LFHF = FloatOrNaN(raw.LFHF)
	return nil
}
