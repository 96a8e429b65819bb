package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
)

// Format the recognition service accepts
const (
	SampleRate = 16000
	BitDepth   = 16
	Channels   = 1

	// BytesPerSecond of 16kHz 16-bit mono PCM
	BytesPerSecond = SampleRate * BitDepth / 8 * Channels
)

var (
	// ErrEmptySample is returned when a file holds no PCM data
	ErrEmptySample = errors.New("audio sample is empty")
	// ErrUnsupportedFormat is returned for anything but 16kHz/16-bit/mono PCM
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Sample is a fully loaded, read-only PCM recording
type Sample struct {
	Path       string
	PCM        []byte
	SampleRate int
	BitDepth   int
	Channels   int
}

// Duration returns the playback length of the sample
func (s *Sample) Duration() time.Duration {
	if s == nil || len(s.PCM) == 0 {
		return 0
	}
	bytesPerSecond := s.SampleRate * s.BitDepth / 8 * s.Channels
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(len(s.PCM)) * time.Second / time.Duration(bytesPerSecond)
}

// LoadFile reads the whole file into memory. Files ending in .wav are
// parsed as RIFF/WAVE and must be 16kHz 16-bit mono PCM; any other
// extension is taken as headerless PCM in that format.
func LoadFile(path string) (*Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio %s: %w", path, err)
	}
	defer f.Close()

	var sample *Sample
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		sample, err = DecodeWAV(f)
	} else {
		sample, err = readRaw(f)
	}
	if err != nil {
		return nil, fmt.Errorf("load audio %s: %w", path, err)
	}
	sample.Path = path
	return sample, nil
}

// DecodeWAV validates the WAVE header and returns the PCM data chunk
func DecodeWAV(r io.ReadSeeker) (*Sample, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		if err := d.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		return nil, fmt.Errorf("%w: not a valid wave file", ErrUnsupportedFormat)
	}

	sample := &Sample{
		SampleRate: int(d.SampleRate),
		BitDepth:   int(d.BitDepth),
		Channels:   int(d.NumChans),
	}
	if d.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: wave format tag %d is not PCM", ErrUnsupportedFormat, d.WavAudioFormat)
	}
	if err := sample.validateFormat(); err != nil {
		return nil, err
	}

	if err := d.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("seek to pcm data: %w", err)
	}
	pcm, err := io.ReadAll(io.LimitReader(d.PCMChunk.R, int64(d.PCMChunk.Size)))
	if err != nil {
		return nil, fmt.Errorf("read pcm data: %w", err)
	}
	if len(pcm) == 0 {
		return nil, ErrEmptySample
	}
	sample.PCM = pcm
	return sample, nil
}

func readRaw(r io.Reader) (*Sample, error) {
	pcm, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pcm data: %w", err)
	}
	if len(pcm) == 0 {
		return nil, ErrEmptySample
	}
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("%w: raw pcm length %d is not a whole number of 16-bit samples", ErrUnsupportedFormat, len(pcm))
	}
	return &Sample{PCM: pcm, SampleRate: SampleRate, BitDepth: BitDepth, Channels: Channels}, nil
}

func (s *Sample) validateFormat() error {
	if s.SampleRate != SampleRate || s.BitDepth != BitDepth || s.Channels != Channels {
		return fmt.Errorf("%w: got %dHz/%d-bit/%dch, want %dHz/%d-bit/%dch",
			ErrUnsupportedFormat, s.SampleRate, s.BitDepth, s.Channels, SampleRate, BitDepth, Channels)
	}
	return nil
}
