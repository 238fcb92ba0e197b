package loader

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCSV writes rows to a temp file and returns its path.
func writeCSV(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rec.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0644))
	return path
}

func TestLoadCSVAutoDetect(t *testing.T) {
	rows := []string{"Time,ECG,PPG"}
	for i := 0; i < 100; i++ {
		rows = append(rows, fmt.Sprintf("%.4f,%.3f,%.3f", float64(i)/100.0, float64(i), float64(-i)))
	}
	path := writeCSV(t, rows...)

	rec, err := LoadCSV(path, CSVOptions{})
	require.NoError(t, err)

	assert.Len(t, rec.ECG.Samples, 100)
	assert.Len(t, rec.PPG.Samples, 100)
	assert.Nil(t, rec.Aux)
	assert.InDelta(t, 100.0, rec.ECG.SampleRate, 0.01, "rate inferred from time column")
	assert.Equal(t, 0.0, rec.ECG.StartTime)
	assert.Equal(t, 5.0, rec.ECG.Samples[5])
	assert.Equal(t, -5.0, rec.PPG.Samples[5])
}

func TestLoadCSVExplicitColumns(t *testing.T) {
	rows := []string{"a,b,c"}
	for i := 0; i < 10; i++ {
		rows = append(rows, fmt.Sprintf("%d,%d,%d", i, i*2, i*3))
	}
	path := writeCSV(t, rows...)

	rec, err := LoadCSV(path, CSVOptions{ECGColumn: "b", PPGColumn: "c", SampleRate: 250})
	require.NoError(t, err)

	assert.Equal(t, 250.0, rec.ECG.SampleRate)
	assert.Equal(t, 6.0, rec.ECG.Samples[3])
	assert.Equal(t, 9.0, rec.PPG.Samples[3])
}

func TestLoadCSVWithAuxChannel(t *testing.T) {
	rows := []string{"time,ecg,ppg,imu"}
	for i := 0; i < 20; i++ {
		rows = append(rows, fmt.Sprintf("%.3f,1,2,3", float64(i)*0.01))
	}
	path := writeCSV(t, rows...)

	rec, err := LoadCSV(path, CSVOptions{})
	require.NoError(t, err)
	require.NotNil(t, rec.Aux)
	assert.Len(t, rec.Aux.Samples, 20)
	assert.Equal(t, 3.0, rec.Aux.Samples[0])
}

func TestLoadCSVMissingChannel(t *testing.T) {
	path := writeCSV(t, "time,ecg", "0,1", "0.01,2", "0.02,3")

	_, err := LoadCSV(path, CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PPG")
}

func TestLoadCSVBadValue(t *testing.T) {
	path := writeCSV(t, "ecg,ppg", "1,2", "oops,3", "4,5")

	_, err := LoadCSV(path, CSVOptions{})
	require.Error(t, err)
}

func TestLoadCSVDefaultRateWithoutTimeColumn(t *testing.T) {
	path := writeCSV(t, "ecg,ppg", "1,2", "3,4", "5,6")

	rec, err := LoadCSV(path, CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, DefaultSampleRate, rec.ECG.SampleRate)
}

func TestJSONRoundTrip(t *testing.T) {
	orig := Synthetic(SyntheticOptions{
		Duration: 2.0, SampleRate: 64.0, HeartRate: 60.0, PTT: 0.2, Noise: 0.01, Seed: 7,
	})
	path := filepath.Join(t.TempDir(), "rec.json")

	require.NoError(t, SaveJSON(orig, path))
	loaded, err := LoadJSON(path)
	require.NoError(t, err)

	assert.Equal(t, orig.ECG.SampleRate, loaded.ECG.SampleRate)
	if diff := cmp.Diff(orig.ECG.Samples, loaded.ECG.Samples); diff != "" {
		t.Errorf("ECG samples mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(orig.PPG.Samples, loaded.PPG.Samples); diff != "" {
		t.Errorf("PPG samples mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadJSONValidation(t *testing.T) {
	dir := t.TempDir()

	noRate := filepath.Join(dir, "norate.json")
	require.NoError(t, os.WriteFile(noRate, []byte(`{"ecg":[1,2],"ppg":[1,2]}`), 0644))
	_, err := LoadJSON(noRate)
	assert.Error(t, err, "missing fs must be rejected")

	short := filepath.Join(dir, "short.json")
	require.NoError(t, os.WriteFile(short, []byte(`{"fs":128,"ecg":[1],"ppg":[1,2]}`), 0644))
	_, err = LoadJSON(short)
	assert.Error(t, err, "single-sample channel must be rejected")
}

func TestLoadDispatch(t *testing.T) {
	_, err := Load("recording.xyz", CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestSyntheticDeterminism(t *testing.T) {
	opts := DefaultSynthetic()
	opts.Duration = 3.0

	a := Synthetic(opts)
	b := Synthetic(opts)

	require.Len(t, a.ECG.Samples, int(3.0*opts.SampleRate))
	if diff := cmp.Diff(a.ECG.Samples, b.ECG.Samples); diff != "" {
		t.Errorf("same seed produced different ECG (-a +b):\n%s", diff)
	}
}

func TestSyntheticPulseDelay(t *testing.T) {
	opts := SyntheticOptions{
		Duration: 10.0, SampleRate: 128.0, HeartRate: 60.0, PTT: 0.25, Noise: 0, Seed: 1,
	}
	rec := Synthetic(opts)

	// Locate the maxima of the first full cycle of each channel.
	fs := opts.SampleRate
	window := int(fs) // one 60 bpm cycle
	ecgPeak, ppgPeak := argmax(rec.ECG.Samples[:window]), argmax(rec.PPG.Samples[:window])

	gotPTT := float64(ppgPeak-ecgPeak) / fs
	assert.InDelta(t, 0.25, gotPTT, 0.02, "PPG peak should trail R-peak by the configured PTT")
}

func argmax(x []float64) int {
	best := 0
	for i, v := range x {
		if v > x[best] {
			best = i
		}
	}
	return best
}

func TestSyntheticNoiseBounded(t *testing.T) {
	rec := Synthetic(DefaultSynthetic())
	for _, v := range rec.ECG.Samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatal("synthetic ECG contains non-finite samples")
		}
	}
}
