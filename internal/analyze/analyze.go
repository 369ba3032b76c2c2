// Package analyze estimates the dominant frequency of a captured signal
// within a band, or reports that no peak stands out from the noise floor.
package analyze

import (
	"errors"
	"math"
	"math/cmplx"
	"slices"
	"sync"
	"time"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/satindergrewal/binaural/internal/metrics"
)

const (
	DefaultRate        = 44100
	DefaultSeconds     = 3.0
	DefaultBandMinHz   = 60.0
	DefaultBandMaxHz   = 400.0
	DefaultThresholdDB = 10.0

	// floorEpsilon keeps log10 away from zero magnitudes.
	floorEpsilon = 1e-8
)

var (
	ErrEmptySignal   = errors.New("analyze: signal has no samples")
	ErrInvalidSignal = errors.New("analyze: signal needs positive channel count and sample rate")
)

// Signal is a finite capture: interleaved samples with their layout.
type Signal struct {
	Samples    []float64
	Channels   int
	SampleRate int
}

// Frames returns the number of complete frames.
func (s Signal) Frames() int {
	if s.Channels <= 0 {
		return 0
	}
	return len(s.Samples) / s.Channels
}

// Result is either a peak (Found) or no result.
type Result struct {
	Found       bool    `json:"found"`
	FrequencyHz float64 `json:"hz,omitempty"`
	PeakDB      float64 `json:"peak_db,omitempty"`
	FloorDB     float64 `json:"floor_db,omitempty"`
}

// Analyzer holds the FFT plan and window for a fixed analysis length.
// It is safe for concurrent use; calls are serialised.
type Analyzer struct {
	rate    int
	seconds float64
	n       int

	mu     sync.Mutex
	fft    *fourier.FFT
	hann   []float64
	frame  []float64
	coeffs []complex128
}

// New creates an analyzer that looks at seconds of audio at rate Hz.
// Zero values fall back to DefaultRate and DefaultSeconds.
func New(rate int, seconds float64) *Analyzer {
	if rate <= 0 {
		rate = DefaultRate
	}
	if !(seconds > 0) {
		seconds = DefaultSeconds
	}
	n := int(seconds * float64(rate))
	return &Analyzer{
		rate:    rate,
		seconds: seconds,
		n:       n,
		fft:     fourier.NewFFT(n),
		hann:    window.Hann(n),
		frame:   make([]float64, n),
		coeffs:  make([]complex128, n/2+1),
	}
}

// Rate returns the analysis sample rate.
func (a *Analyzer) Rate() int { return a.rate }

// Seconds returns the analysis window length.
func (a *Analyzer) Seconds() float64 { return a.seconds }

// Resolution returns the spacing between spectrum bins in Hz.
func (a *Analyzer) Resolution() float64 { return float64(a.rate) / float64(a.n) }

// Analyze returns the strongest bin in [bandMinHz, bandMaxHz] if it is at
// least thresholdDB above the band's median level.
func (a *Analyzer) Analyze(sig Signal, bandMinHz, bandMaxHz, thresholdDB float64) (Result, error) {
	start := time.Now()
	res, err := a.analyze(sig, bandMinHz, bandMaxHz, thresholdDB)
	metrics.AnalysisDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
	switch {
	case err != nil:
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
	case res.Found:
		metrics.AnalysesTotal.WithLabelValues("peak").Inc()
	default:
		metrics.AnalysesTotal.WithLabelValues("none").Inc()
	}
	return res, err
}

func (a *Analyzer) analyze(sig Signal, bandMinHz, bandMaxHz, thresholdDB float64) (Result, error) {
	if sig.Channels <= 0 || sig.SampleRate <= 0 {
		return Result{}, ErrInvalidSignal
	}
	mono := Mono(sig)
	if len(mono) == 0 {
		return Result{}, ErrEmptySignal
	}
	if sig.SampleRate != a.rate {
		mono = Resample(mono, sig.SampleRate, a.rate)
		if len(mono) == 0 {
			return Result{}, ErrEmptySignal
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	clear(a.frame)
	copy(a.frame, mono)
	floats.Mul(a.frame, a.hann)
	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)

	var band []float64
	var freqs []float64
	binHz := a.Resolution()
	for k, c := range a.coeffs {
		f := float64(k) * binHz
		if !(f >= bandMinHz && f <= bandMaxHz) {
			continue
		}
		band = append(band, 20*math.Log10(cmplx.Abs(c)+floorEpsilon))
		freqs = append(freqs, f)
	}
	if len(band) == 0 {
		return Result{}, nil
	}

	pk := floats.MaxIdx(band)
	peakDB := band[pk]
	floorDB := median(band)
	if peakDB-floorDB < thresholdDB {
		return Result{}, nil
	}
	return Result{Found: true, FrequencyHz: freqs[pk], PeakDB: peakDB, FloorDB: floorDB}, nil
}

// Mono averages the channels of each complete frame.
func Mono(sig Signal) []float64 {
	frames := sig.Frames()
	if sig.Channels == 1 {
		return sig.Samples[:frames]
	}
	out := make([]float64, frames)
	inv := 1 / float64(sig.Channels)
	for i := range out {
		sum := 0.0
		for c := 0; c < sig.Channels; c++ {
			sum += sig.Samples[i*sig.Channels+c]
		}
		out[i] = sum * inv
	}
	return out
}

// median averages the two middle values for even lengths.
func median(v []float64) float64 {
	s := slices.Clone(v)
	slices.Sort(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
