package audio

import (
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const filePermissions = 0o600

// Clip holds decoded samples as interleaved floats in [-1, 1].
type Clip struct {
	Format

	Data []float64
}

// Frames returns the number of sample frames in the clip.
func (c *Clip) Frames() int {
	if c.Channels == 0 {
		return 0
	}

	return len(c.Data) / c.Channels
}

// Info summarizes the clip.
func (c *Clip) Info() Info {
	frames := c.Frames()

	return Info{Format: c.Format, Frames: frames, Duration: durationOf(frames, c.SampleRate)}
}

// Mono averages all channels into a single channel.
func (c *Clip) Mono() []float64 {
	if c.Channels <= 1 {
		return c.Data
	}

	frames := c.Frames()
	mono := make([]float64, frames)

	for frame := range frames {
		var sum float64

		base := frame * c.Channels
		for ch := range c.Channels {
			sum += c.Data[base+ch]
		}

		mono[frame] = sum / float64(c.Channels)
	}

	return mono
}

// Probe reads only the WAV header of path.
func Probe(path string) (Info, error) {
	file, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return Info{}, fmt.Errorf("%w: %s", ErrNotWAV, path)
	}

	format := Format{
		SampleRate: int(decoder.SampleRate),
		BitDepth:   int(decoder.BitDepth),
		Channels:   int(decoder.NumChans),
	}

	err = format.Validate()
	if err != nil {
		return Info{}, err
	}

	duration, err := decoder.Duration()
	if err != nil {
		return Info{}, fmt.Errorf("failed to read duration of %s: %w", path, err)
	}

	frames := int(duration.Seconds()*float64(format.SampleRate) + 0.5)

	return Info{Format: format, Frames: frames, Duration: duration}, nil
}

// ReadFile decodes a PCM WAV file at its native sample rate.
func ReadFile(path string) (*Clip, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: %s", ErrNotWAV, path)
	}

	if decoder.WavAudioFormat == wavFormatIEEE {
		return nil, fmt.Errorf("%w: IEEE float samples in %s", ErrUnsupportedFormat, path)
	}

	format := Format{
		SampleRate: int(decoder.SampleRate),
		BitDepth:   int(decoder.BitDepth),
		Channels:   int(decoder.NumChans),
	}

	err = format.Validate()
	if err != nil {
		return nil, err
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode PCM data from %s: %w", path, err)
	}

	if len(buf.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSamples, path)
	}

	return &Clip{Format: format, Data: intsToFloats(buf.Data, format.BitDepth)}, nil
}

// WritePCM16 writes mono samples as a 16-bit PCM WAV file.
func WritePCM16(path string, sampleRate int, samples []float64) error {
	err := ValidateSampleRate(sampleRate)
	if err != nil {
		return err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	encoder := wav.NewEncoder(file, sampleRate, PCMBitDepth, MonoChannels, wavFormatPCM)

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: MonoChannels, SampleRate: sampleRate},
		Data:           quantize16(samples),
		SourceBitDepth: PCMBitDepth,
	}

	writeErr := encoder.Write(buf)
	closeErr := encoder.Close()
	fileErr := file.Close()

	switch {
	case writeErr != nil:
		return fmt.Errorf("failed to write samples to %s: %w", path, writeErr)
	case closeErr != nil:
		return fmt.Errorf("failed to finalize %s: %w", path, closeErr)
	case fileErr != nil:
		return fmt.Errorf("failed to close %s: %w", path, fileErr)
	}

	return nil
}

func intsToFloats(data []int, bitDepth int) []float64 {
	out := make([]float64, len(data))
	scale := math.Ldexp(1, bitDepth-1)

	for i, sample := range data {
		if bitDepth == BitDepth8 {
			// 8-bit WAV is unsigned.
			sample -= 128
		}

		out[i] = float64(sample) / scale
	}

	return out
}

func quantize16(samples []float64) []int {
	out := make([]int, len(samples))

	for i, sample := range samples {
		scaled := math.Round(sample * math.MaxInt16)

		switch {
		case scaled > math.MaxInt16:
			scaled = math.MaxInt16
		case scaled < math.MinInt16:
			scaled = math.MinInt16
		}

		out[i] = int(scaled)
	}

	return out
}
