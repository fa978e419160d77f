package audio

import (
	"fmt"
)

// Normalizer rewrites reference voice clips as mono 16-bit PCM at a fixed rate.
type Normalizer struct {
	targetRate int
	resampler  *Resampler
}

// NewNormalizer returns a normalizer that converts to targetRate.
func NewNormalizer(targetRate int, quality Quality) (*Normalizer, error) {
	err := ValidateSampleRate(targetRate)
	if err != nil {
		return nil, fmt.Errorf("invalid target sample rate: %w", err)
	}

	return &Normalizer{targetRate: targetRate, resampler: NewResampler(quality)}, nil
}

// TargetRate returns the sample rate written by Normalize.
func (n *Normalizer) TargetRate() int {
	return n.targetRate
}

// Normalize loads srcPath at its native rate, resamples it when the rate differs
// from the target and writes 16-bit PCM to dstPath. On error dstPath may hold a
// partial file; the caller owns its removal.
func (n *Normalizer) Normalize(srcPath, dstPath string) (Info, error) {
	clip, err := ReadFile(srcPath)
	if err != nil {
		return Info{}, err
	}

	samples := clip.Mono()

	if clip.SampleRate != n.targetRate {
		samples, err = n.resampler.Resample(samples, clip.SampleRate, n.targetRate)
		if err != nil {
			return Info{}, fmt.Errorf("failed to resample %d Hz to %d Hz: %w", clip.SampleRate, n.targetRate, err)
		}
	}

	err = WritePCM16(dstPath, n.targetRate, samples)
	if err != nil {
		return Info{}, err
	}

	return Info{
		Format:   Format{SampleRate: n.targetRate, BitDepth: PCMBitDepth, Channels: MonoChannels},
		Frames:   len(samples),
		Duration: durationOf(len(samples), n.targetRate),
	}, nil
}
