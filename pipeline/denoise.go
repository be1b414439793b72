package pipeline

import "math"

// DenoiseConfig controls the cleanup applied to each chunk before the
// silence check, so suppression decisions see cleaned audio.
type DenoiseConfig struct {
	Enabled       bool
	HighPassHz    float64 // first-order high-pass cutoff, removes hum and DC
	GateThreshold float64 // per-window RMS below this is attenuated
}

func DefaultDenoiseConfig() DenoiseConfig {
	return DenoiseConfig{
		Enabled:       true,
		HighPassHz:    80,
		GateThreshold: 0.008,
	}
}

// denoise returns a cleaned copy of samples. The input is never
// modified; segments are immutable once emitted.
func denoise(samples []float32, sampleRate int, cfg DenoiseConfig) []float32 {
	if !cfg.Enabled || len(samples) == 0 {
		return samples
	}
	out := highPass(samples, sampleRate, cfg.HighPassHz)
	noiseGate(out, sampleRate, cfg.GateThreshold)
	return out
}

// highPass is a first-order IIR filter: y[i] = a*(y[i-1] + x[i] - x[i-1]).
func highPass(samples []float32, sampleRate int, cutoffHz float64) []float32 {
	out := make([]float32, len(samples))
	if cutoffHz <= 0 {
		copy(out, samples)
		return out
	}
	rc := 1.0 / (2.0 * math.Pi * cutoffHz)
	dt := 1.0 / float64(sampleRate)
	alpha := float32(rc / (rc + dt))

	out[0] = samples[0]
	prevIn := samples[0]
	prevOut := samples[0]
	for i := 1; i < len(samples); i++ {
		out[i] = alpha * (prevOut + samples[i] - prevIn)
		prevIn = samples[i]
		prevOut = out[i]
	}
	return out
}

// noiseGate attenuates 10ms windows whose RMS falls below threshold.
// Quiet windows fade rather than cut to zero to avoid gating artifacts.
func noiseGate(samples []float32, sampleRate int, threshold float64) {
	if threshold <= 0 {
		return
	}
	window := sampleRate / 100
	if window < 1 {
		window = 1
	}
	for i := 0; i < len(samples); i += window {
		end := min(i+window, len(samples))
		level := rms(samples[i:end])
		if level >= threshold {
			continue
		}
		atten := float32(level / threshold)
		if atten < 0.1 {
			atten = 0.1
		}
		for j := i; j < end; j++ {
			samples[j] *= atten
		}
	}
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
