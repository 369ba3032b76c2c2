package tone

import "math"

// Envelope is a short preview of both channels and their beat envelope.
type Envelope struct {
	Time     []float64 `json:"t"`
	Left     []float64 `json:"left"`
	Right    []float64 `json:"right"`
	Envelope []float64 `json:"envelope"`
}

// PreviewWindow returns the preview length in seconds: two beat periods,
// clamped to [0.05, 0.5]. A zero beat is treated as 1 Hz.
func PreviewWindow(beatHz float64) float64 {
	b := beatHz
	if b == 0 {
		b = 1
	}
	return math.Min(0.5, math.Max(0.05, 2/b))
}

// NewEnvelope samples carrier and carrier+beat from time zero at sampleRate
// over PreviewWindow(beat) and computes |l-r|/2 for each point.
func NewEnvelope(carrierHz, beatHz float64, sampleRate int) Envelope {
	window := PreviewWindow(beatHz)
	n := int(float64(sampleRate) * window)
	if n < 0 {
		n = 0
	}
	e := Envelope{
		Time:     make([]float64, n),
		Left:     make([]float64, n),
		Right:    make([]float64, n),
		Envelope: make([]float64, n),
	}
	FillFloat64(e.Left, e.Right, Phase{}, Params{CarrierHz: carrierHz, BeatHz: beatHz, Volume: 1}, float64(sampleRate))
	for i := 0; i < n; i++ {
		e.Time[i] = window * float64(i) / float64(n)
		e.Envelope[i] = math.Abs(e.Left[i]-e.Right[i]) / 2
	}
	return e
}
