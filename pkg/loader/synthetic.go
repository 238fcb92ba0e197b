package loader

import (
	"math"
	"math/rand"

	"cardiosync/internal/models"
)

// SyntheticOptions controls the demo signal generator.
type SyntheticOptions struct {
	// Duration of the recording in seconds
	Duration float64

	// SampleRate in Hz
	SampleRate float64

	// HeartRate in beats per minute
	HeartRate float64

	// PTT is the simulated pulse transit time in seconds
	PTT float64

	// Noise is the additive gaussian noise amplitude
	Noise float64

	// Seed makes the generator reproducible
	Seed int64
}

// DefaultSynthetic returns the generator settings used by the demo mode.
func DefaultSynthetic() SyntheticOptions {
	return SyntheticOptions{
		Duration:   30.0,
		SampleRate: 128.0,
		HeartRate:  72.0,
		PTT:        0.25,
		Noise:      0.03,
		Seed:       1,
	}
}

// Synthetic generates a paired ECG/PPG recording. The ECG cycle is built
// from gaussian P, QRS and T bumps; the PPG is a smooth systolic wave with
// a dicrotic notch, delayed by the configured transit time.
func Synthetic(opts SyntheticOptions) *models.Recording {
	fs := opts.SampleRate
	n := int(opts.Duration * fs)
	period := 60.0 / opts.HeartRate
	rng := rand.New(rand.NewSource(opts.Seed))

	ecg := make([]float64, n)
	ppg := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / fs

		// Phase within the cardiac cycle, 0..1, R-wave at 0.32.
		phase := math.Mod(t, period) / period
		ecg[i] = 0.05*math.Sin(2*math.Pi*0.25*t) + // respiration baseline
			0.08*gauss(phase, 0.18, 0.030) + // P
			-0.12*gauss(phase, 0.30, 0.010) + // Q
			1.00*gauss(phase, 0.32, 0.008) + // R
			-0.25*gauss(phase, 0.35, 0.012) + // S
			0.25*gauss(phase, 0.60, 0.060) + // T
			opts.Noise*rng.NormFloat64()

		// PPG pulse delayed by the transit time.
		pphase := math.Mod(t-opts.PTT+10*period, period) / period
		ppg[i] = 0.80*gauss(pphase, 0.32, 0.060) + // systolic peak
			0.25*gauss(pphase, 0.55, 0.080) + // dicrotic wave
			0.03*math.Sin(2*math.Pi*0.25*t) +
			opts.Noise*rng.NormFloat64()
	}

	return &models.Recording{
		Source: "synthetic",
		ECG: &models.Signal{
			Channel: models.ChannelECG, Samples: ecg, SampleRate: fs,
		},
		PPG: &models.Signal{
			Channel: models.ChannelPPG, Samples: ppg, SampleRate: fs,
		},
	}
}

func gauss(x, mu, sigma float64) float64 {
	z := (x - mu) / sigma
	return math.Exp(-0.5 * z * z)
}
