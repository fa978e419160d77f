// Package audio provides WAV decoding and encoding, format validation and the
// reference-voice normalization pass used before voice cloning.
package audio

import (
	"errors"
	"fmt"
	"time"
)

// Constants for the normalized output format.
const (
	PCMBitDepth   = 16
	MonoChannels  = 1
	wavFormatPCM  = 1
	wavFormatIEEE = 3
)

// Constants for supported bit depths.
const (
	BitDepth8  = 8
	BitDepth16 = 16
	BitDepth24 = 24
	BitDepth32 = 32
)

// Constants for format validation limits.
const (
	MaxSampleRate = 192000
	MaxChannels   = 8
)

const (
	errFmtSampleRateRange = "%w: sample rate must be between 1 and %d Hz, got %d"
	errFmtBitDepthValues  = "%w: bit depth must be 8, 16, 24, or 32, got %d"
	errFmtChannelsRange   = "%w: channels must be between 1 and %d, got %d"
)

// Common errors for the audio package.
var (
	ErrInvalidFormat     = errors.New("invalid audio format")
	ErrNotWAV            = errors.New("not a valid WAV file")
	ErrUnsupportedFormat = errors.New("unsupported WAV encoding")
	ErrNoSamples         = errors.New("audio contains no samples")
)

// Format describes the sample layout of a PCM stream.
type Format struct {
	SampleRate int `json:"sampleRate"`
	BitDepth   int `json:"bitDepth"`
	Channels   int `json:"channels"`
}

// Info describes a decoded WAV file.
type Info struct {
	Format

	Frames   int           `json:"frames"`
	Duration time.Duration `json:"duration"`
}

// Validate checks that the format is within supported bounds.
func (f Format) Validate() error {
	err := ValidateSampleRate(f.SampleRate)
	if err != nil {
		return err
	}

	err = validateBitDepth(f.BitDepth)
	if err != nil {
		return err
	}

	return validateChannels(f.Channels)
}

// ValidateSampleRate checks a sample rate against MaxSampleRate.
func ValidateSampleRate(sampleRate int) error {
	if sampleRate <= 0 || sampleRate > MaxSampleRate {
		return fmt.Errorf(errFmtSampleRateRange, ErrInvalidFormat, MaxSampleRate, sampleRate)
	}

	return nil
}

func validateBitDepth(bitDepth int) error {
	switch bitDepth {
	case BitDepth8, BitDepth16, BitDepth24, BitDepth32:
		return nil
	default:
		return fmt.Errorf(errFmtBitDepthValues, ErrInvalidFormat, bitDepth)
	}
}

func validateChannels(channels int) error {
	if channels <= 0 || channels > MaxChannels {
		return fmt.Errorf(errFmtChannelsRange, ErrInvalidFormat, MaxChannels, channels)
	}

	return nil
}

func durationOf(frames, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}

	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}
