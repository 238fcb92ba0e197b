// Package loader reads paired ECG/PPG recordings from CSV and JSON files.
//
// CSV columns are auto-detected by common name candidates when not given
// explicitly, and the sample rate is inferred from the median spacing of
// the time column when present. All channels are truncated to a common
// length.
package loader

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"cardiosync/internal/models"
)

// DefaultSampleRate is assumed when neither a time column nor an explicit
// rate is available.
const DefaultSampleRate = 128.0

// Column name candidates, checked case-insensitively and in order.
var (
	timeCandidates = []string{"time", "t", "sec", "seconds", "timestamp"}
	ecgCandidates  = []string{"ecg", "ecg_raw", "ecgsignal", "ecg_signal"}
	ppgCandidates  = []string{"ppg", "ppg_raw", "ppgsignal", "ppg_signal"}
	auxCandidates  = []string{"aux", "imu", "accel", "accel_mag"}
)

// CSVOptions overrides column auto-detection and rate inference.
// Zero values mean "detect".
type CSVOptions struct {
	TimeColumn string
	ECGColumn  string
	PPGColumn  string
	AuxColumn  string
	SampleRate float64
}

// LoadCSV reads a recording from a CSV file with a header row.
func LoadCSV(path string, opts CSVOptions) (*models.Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("loader: parsing %s: %w", path, err)
	}
	if len(rows) < 3 {
		return nil, fmt.Errorf("loader: %s has no data rows", path)
	}

	header := rows[0]
	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		colIdx[strings.ToLower(strings.TrimSpace(name))] = i
	}

	ecgCol, err := resolveColumn(colIdx, opts.ECGColumn, ecgCandidates, "ECG")
	if err != nil {
		return nil, err
	}
	ppgCol, err := resolveColumn(colIdx, opts.PPGColumn, ppgCandidates, "PPG")
	if err != nil {
		return nil, err
	}
	timeCol := optionalColumn(colIdx, opts.TimeColumn, timeCandidates)
	auxCol := optionalColumn(colIdx, opts.AuxColumn, auxCandidates)

	data := rows[1:]
	ecg, err := parseColumn(data, ecgCol, "ECG")
	if err != nil {
		return nil, err
	}
	ppg, err := parseColumn(data, ppgCol, "PPG")
	if err != nil {
		return nil, err
	}

	n := len(ecg)
	if len(ppg) < n {
		n = len(ppg)
	}

	var times []float64
	if timeCol >= 0 {
		times, err = parseColumn(data, timeCol, "time")
		if err != nil {
			return nil, err
		}
		if len(times) < n {
			n = len(times)
		}
	}

	fs := opts.SampleRate
	start := 0.0
	if times != nil {
		if fs == 0 {
			fs = inferRate(times[:n])
		}
		start = times[0]
	}
	if fs == 0 {
		fs = DefaultSampleRate
	}

	rec := &models.Recording{
		Source: path,
		ECG: &models.Signal{
			Channel: models.ChannelECG, Samples: ecg[:n],
			SampleRate: fs, StartTime: start,
		},
		PPG: &models.Signal{
			Channel: models.ChannelPPG, Samples: ppg[:n],
			SampleRate: fs, StartTime: start,
		},
	}
	if auxCol >= 0 {
		aux, err := parseColumn(data, auxCol, "aux")
		if err != nil {
			return nil, err
		}
		if len(aux) > n {
			aux = aux[:n]
		}
		rec.Aux = &models.Signal{
			Channel: models.ChannelAux, Samples: aux,
			SampleRate: fs, StartTime: start,
		}
	}
	return rec, nil
}

// resolveColumn finds a required column by explicit name or candidates.
func resolveColumn(colIdx map[string]int, explicit string, candidates []string, label string) (int, error) {
	if explicit != "" {
		if i, ok := colIdx[strings.ToLower(explicit)]; ok {
			return i, nil
		}
		return -1, fmt.Errorf("loader: column %q not found for %s", explicit, label)
	}
	for _, c := range candidates {
		if i, ok := colIdx[c]; ok {
			return i, nil
		}
	}
	names := make([]string, 0, len(colIdx))
	for k := range colIdx {
		names = append(names, k)
	}
	sort.Strings(names)
	return -1, fmt.Errorf("loader: no %s column found (columns: %s)", label, strings.Join(names, ", "))
}

// optionalColumn is like resolveColumn but returns -1 when absent.
func optionalColumn(colIdx map[string]int, explicit string, candidates []string) int {
	if explicit != "" {
		if i, ok := colIdx[strings.ToLower(explicit)]; ok {
			return i
		}
		return -1
	}
	for _, c := range candidates {
		if i, ok := colIdx[c]; ok {
			return i
		}
	}
	return -1
}

func parseColumn(rows [][]string, col int, label string) ([]float64, error) {
	out := make([]float64, 0, len(rows))
	for i, row := range rows {
		if col >= len(row) {
			break
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
		if err != nil {
			return nil, fmt.Errorf("loader: %s row %d: %w", label, i+2, err)
		}
		out = append(out, v)
	}
	if len(out) < 2 {
		return nil, fmt.Errorf("loader: %s column has fewer than 2 values", label)
	}
	return out, nil
}

// inferRate estimates the sample rate as the reciprocal of the median
// time delta. Returns 0 when the deltas are unusable.
func inferRate(times []float64) float64 {
	if len(times) < 3 {
		return 0
	}
	diffs := make([]float64, len(times)-1)
	for i := 1; i < len(times); i++ {
		diffs[i-1] = times[i] - times[i-1]
	}
	sort.Float64s(diffs)
	dt := diffs[len(diffs)/2]
	if dt <= 0 {
		return 0
	}
	return 1.0 / dt
}

// jsonRecording is the on-disk JSON recording format.
type jsonRecording struct {
	SampleRate float64   `json:"fs"`
	StartTime  float64   `json:"start_time,omitempty"`
	ECG        []float64 `json:"ecg"`
	PPG        []float64 `json:"ppg"`
	Aux        []float64 `json:"aux,omitempty"`
}

// LoadJSON reads a recording from the JSON format produced by SaveJSON.
func LoadJSON(path string) (*models.Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: reading %s: %w", path, err)
	}
	var jr jsonRecording
	if err := json.Unmarshal(data, &jr); err != nil {
		return nil, fmt.Errorf("loader: parsing %s: %w", path, err)
	}
	if jr.SampleRate <= 0 {
		return nil, fmt.Errorf("loader: %s: fs must be positive, got %g", path, jr.SampleRate)
	}
	if len(jr.ECG) < 2 || len(jr.PPG) < 2 {
		return nil, fmt.Errorf("loader: %s: ecg and ppg must each have at least 2 samples", path)
	}

	n := len(jr.ECG)
	if len(jr.PPG) < n {
		n = len(jr.PPG)
	}

	rec := &models.Recording{
		Source: path,
		ECG: &models.Signal{
			Channel: models.ChannelECG, Samples: jr.ECG[:n],
			SampleRate: jr.SampleRate, StartTime: jr.StartTime,
		},
		PPG: &models.Signal{
			Channel: models.ChannelPPG, Samples: jr.PPG[:n],
			SampleRate: jr.SampleRate, StartTime: jr.StartTime,
		},
	}
	if len(jr.Aux) >= 2 {
		aux := jr.Aux
		if len(aux) > n {
			aux = aux[:n]
		}
		rec.Aux = &models.Signal{
			Channel: models.ChannelAux, Samples: aux,
			SampleRate: jr.SampleRate, StartTime: jr.StartTime,
		}
	}
	return rec, nil
}

// SaveJSON writes a recording in the JSON format read by LoadJSON.
func SaveJSON(rec *models.Recording, path string) error {
	jr := jsonRecording{
		SampleRate: rec.ECG.SampleRate,
		StartTime:  rec.ECG.StartTime,
		ECG:        rec.ECG.Samples,
		PPG:        rec.PPG.Samples,
	}
	if rec.Aux != nil {
		jr.Aux = rec.Aux.Samples
	}
	data, err := json.MarshalIndent(&jr, "", "  ")
	if err != nil {
		return fmt.Errorf("loader: marshaling recording: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("loader: writing %s: %w", path, err)
	}
	return nil
}

// Load dispatches on the file extension: .csv or .json.
func Load(path string, opts CSVOptions) (*models.Recording, error) {
	switch {
	case strings.HasSuffix(strings.ToLower(path), ".csv"):
		return LoadCSV(path, opts)
	case strings.HasSuffix(strings.ToLower(path), ".json"):
		return LoadJSON(path)
	}
	return nil, fmt.Errorf("loader: unsupported file type: %s", path)
}
