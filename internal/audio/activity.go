package audio

import (
	"encoding/binary"
	"math"
)

// ActivityConfig holds the energy detector settings
type ActivityConfig struct {
	EnergyThreshold float64 // RMS energy above which a frame counts as speech
	FrameSamples    int     // samples per analysis frame
}

// DefaultActivityConfig returns 20ms frames at 16kHz
func DefaultActivityConfig() *ActivityConfig {
	return &ActivityConfig{
		EnergyThreshold: 500.0,
		FrameSamples:    320,
	}
}

// Activity summarizes the speech energy of a sample
type Activity struct {
	Frames       int
	SpeechFrames int
	PeakRMS      float64
}

// Silent reports whether no frame crossed the energy threshold. An empty
// transcript for a silent sample means there was nothing to recognize.
func (a Activity) Silent() bool {
	return a.SpeechFrames == 0
}

// SpeechRatio returns the share of frames above the threshold
func (a Activity) SpeechRatio() float64 {
	if a.Frames == 0 {
		return 0
	}
	return float64(a.SpeechFrames) / float64(a.Frames)
}

// Analyze runs an energy detector over 16-bit little-endian PCM
func Analyze(pcm []byte, config *ActivityConfig) Activity {
	if config == nil {
		config = DefaultActivityConfig()
	}
	frameBytes := config.FrameSamples * BitDepth / 8

	var a Activity
	for _, frame := range Chunks(pcm, frameBytes) {
		rms := CalculateRMS(Samples(frame))
		a.Frames++
		if rms > config.EnergyThreshold {
			a.SpeechFrames++
		}
		if rms > a.PeakRMS {
			a.PeakRMS = rms
		}
	}
	return a
}

// Samples decodes 16-bit little-endian PCM. A trailing odd byte is ignored.
func Samples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

// CalculateRMS calculates the root mean square of audio samples
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
