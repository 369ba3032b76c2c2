package render

import (
	"errors"
	"fmt"
	"math"

	"github.com/satindergrewal/binaural/internal/metrics"
	"github.com/satindergrewal/binaural/internal/tone"
)

// FullScale is the normalized peak of a rendered waveform.
const FullScale = 1.0

// MaxFrames caps a single render at one hour of 48 kHz audio.
const MaxFrames = 60 * 60 * 48000

var (
	// ErrSilent means the rendered signal has zero peak amplitude and cannot
	// be normalized.
	ErrSilent = errors.New("peak amplitude is zero")
	// ErrDuration means the requested duration is not a positive finite
	// number, or rounds to zero frames or more than MaxFrames.
	ErrDuration = errors.New("duration must be positive and finite")
	// ErrSampleRate means the requested sample rate is not positive.
	ErrSampleRate = errors.New("sample rate must be positive")
)

// Error is returned by Render and WriteWAV.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("render %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Waveform is a normalized two-channel render.
type Waveform struct {
	SampleRate int
	Left       []float64
	Right      []float64
}

// Frames returns the number of stereo frames.
func (w *Waveform) Frames() int { return len(w.Left) }

// Duration returns the length in seconds.
func (w *Waveform) Duration() float64 {
	return float64(len(w.Left)) / float64(w.SampleRate)
}

// Render synthesizes round(durationSeconds*sampleRate) frames of p from
// phase zero and scales both channels by one shared factor so the largest
// absolute sample equals FullScale.
func Render(p tone.Params, durationSeconds float64, sampleRate int) (*Waveform, error) {
	wf, err := render(p, durationSeconds, sampleRate)
	if err != nil {
		metrics.RendersTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.RendersTotal.WithLabelValues("ok").Inc()
	return wf, nil
}

func render(p tone.Params, durationSeconds float64, sampleRate int) (*Waveform, error) {
	if err := p.Validate(); err != nil {
		return nil, &Error{Op: "params", Err: err}
	}
	if sampleRate <= 0 {
		return nil, &Error{Op: "params", Err: ErrSampleRate}
	}
	if !(durationSeconds > 0) || math.IsInf(durationSeconds, 0) {
		return nil, &Error{Op: "params", Err: ErrDuration}
	}

	n := math.Round(durationSeconds * float64(sampleRate))
	switch {
	case n < 1:
		return nil, &Error{Op: "params", Err: fmt.Errorf("%w: %g s is under one frame at %d Hz", ErrDuration, durationSeconds, sampleRate)}
	case n > MaxFrames:
		return nil, &Error{Op: "params", Err: fmt.Errorf("%w: %g s at %d Hz exceeds %d frames", ErrDuration, durationSeconds, sampleRate, MaxFrames)}
	}
	frames := int(n)
	wf := &Waveform{
		SampleRate: sampleRate,
		Left:       make([]float64, frames),
		Right:      make([]float64, frames),
	}
	tone.FillFloat64(wf.Left, wf.Right, tone.Phase{}, p, float64(sampleRate))

	if err := normalize(wf.Left, wf.Right); err != nil {
		return nil, &Error{Op: "normalize", Err: err}
	}
	return wf, nil
}

// normalize applies one scale factor to both channels.
func normalize(left, right []float64) error {
	peak := 0.0
	for _, ch := range [][]float64{left, right} {
		for _, v := range ch {
			if a := math.Abs(v); a > peak {
				peak = a
			}
		}
	}
	if peak == 0 {
		return ErrSilent
	}
	scale := FullScale / peak
	if math.IsInf(scale, 0) {
		return ErrSilent
	}
	for _, ch := range [][]float64{left, right} {
		for i := range ch {
			ch[i] *= scale
		}
	}
	return nil
}
