package audio

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Quality selects the interpolation filter of a Resampler.
type Quality int

// Quality tiers, cheapest first.
const (
	QualityQuick Quality = iota
	QualityLow
	QualityMedium
	QualityHigh
	QualityBest
)

// ErrUnknownQuality is returned by ParseQuality for unrecognized names.
var ErrUnknownQuality = errors.New("unknown resample quality")

var qualityNames = map[string]Quality{
	"quick":  QualityQuick,
	"low":    QualityLow,
	"medium": QualityMedium,
	"high":   QualityHigh,
	"best":   QualityBest,
}

// ParseQuality maps a configuration name to a Quality.
func ParseQuality(name string) (Quality, error) {
	quality, ok := qualityNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: '%s'", ErrUnknownQuality, name)
	}

	return quality, nil
}

func (q Quality) String() string {
	for name, quality := range qualityNames {
		if quality == q {
			return name
		}
	}

	return fmt.Sprintf("Quality(%d)", int(q))
}

type filterSpec struct {
	zeroCrossings int
	rolloff       float64
	beta          float64
	precision     int
}

// Kaiser-windowed sinc parameters. "best" uses 64 zero crossings with a
// stopband attenuation well beyond 16-bit quantization noise.
var filterSpecs = map[Quality]filterSpec{
	QualityQuick:  {zeroCrossings: 4, rolloff: 0.80, beta: 5.0, precision: 7},
	QualityLow:    {zeroCrossings: 8, rolloff: 0.85, beta: 6.5, precision: 8},
	QualityMedium: {zeroCrossings: 16, rolloff: 0.85, beta: 8.555, precision: 9},
	QualityHigh:   {zeroCrossings: 32, rolloff: 0.92, beta: 11.0, precision: 9},
	QualityBest:   {zeroCrossings: 64, rolloff: 0.9475937167399596, beta: 14.769656459379492, precision: 9},
}

// Resampler converts mono sample streams between rates with band-limited
// interpolation over a precomputed polyphase filter table.
type Resampler struct {
	quality Quality
	phases  int
	window  []float64
	delta   []float64
}

// NewResampler builds the filter table for the given quality.
func NewResampler(quality Quality) *Resampler {
	spec, ok := filterSpecs[quality]
	if !ok {
		spec = filterSpecs[QualityBest]
		quality = QualityBest
	}

	phases := 1 << spec.precision
	taps := spec.zeroCrossings * phases

	window := make([]float64, taps+1)
	norm := besselI0(spec.beta)

	for i := range window {
		position := float64(i) / float64(phases)
		ratio := float64(i) / float64(taps)
		kaiser := besselI0(spec.beta*math.Sqrt(1-ratio*ratio)) / norm
		window[i] = spec.rolloff * sinc(spec.rolloff*position) * kaiser
	}

	delta := make([]float64, len(window))
	for i := range len(window) - 1 {
		delta[i] = window[i+1] - window[i]
	}

	return &Resampler{quality: quality, phases: phases, window: window, delta: delta}
}

// Quality returns the tier the resampler was built with.
func (r *Resampler) Quality() Quality {
	return r.quality
}

// OutputLength is the number of samples Resample produces for n inputs.
func OutputLength(n, fromRate, toRate int) int {
	return int(float64(n) * float64(toRate) / float64(fromRate))
}

// Resample converts samples taken at fromRate into samples at toRate.
func (r *Resampler) Resample(samples []float64, fromRate, toRate int) ([]float64, error) {
	err := ValidateSampleRate(fromRate)
	if err != nil {
		return nil, err
	}

	err = ValidateSampleRate(toRate)
	if err != nil {
		return nil, err
	}

	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	if fromRate == toRate {
		out := make([]float64, len(samples))
		copy(out, samples)

		return out, nil
	}

	ratio := float64(toRate) / float64(fromRate)
	scale := math.Min(1, ratio)
	phaseStep := scale * float64(r.phases)

	out := make([]float64, OutputLength(len(samples), fromRate, toRate))
	for t := range out {
		out[t] = scale * r.interpolate(samples, float64(t)/ratio, phaseStep)
	}

	return out, nil
}

// interpolate evaluates the band-limited signal at position (in input samples),
// summing the left wing then the right wing of the filter. phaseStep is the
// number of table entries per input sample.
func (r *Resampler) interpolate(samples []float64, position, phaseStep float64) float64 {
	index := int(position)
	frac := position - float64(index)
	limit := float64(len(r.window) - 1)

	var sum float64

	for i := 0; i <= index; i++ {
		tapPosition := (frac + float64(i)) * phaseStep
		if tapPosition >= limit {
			break
		}

		tap := int(tapPosition)
		eta := tapPosition - float64(tap)
		sum += (r.window[tap] + eta*r.delta[tap]) * samples[index-i]
	}

	for k := 0; index+k+1 < len(samples); k++ {
		tapPosition := (1 - frac + float64(k)) * phaseStep
		if tapPosition >= limit {
			break
		}

		tap := int(tapPosition)
		eta := tapPosition - float64(tap)
		sum += (r.window[tap] + eta*r.delta[tap]) * samples[index+k+1]
	}

	return sum
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}

	arg := math.Pi * x

	return math.Sin(arg) / arg
}

// besselI0 is the zeroth-order modified Bessel function of the first kind.
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	half := x / 2

	for k := 1; k < 500; k++ {
		factor := half / float64(k)
		term *= factor * factor
		sum += term

		if term < sum*1e-16 {
			break
		}
	}

	return sum
}
