// Package device opens real sound hardware for sessions and hum
// recordings. It needs cgo (PortAudio, and the platform audio stack behind
// oto); the rest of the module only sees session.Device.
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"github.com/satindergrewal/binaural/internal/analyze"
	"github.com/satindergrewal/binaural/internal/audio"
	"github.com/satindergrewal/binaural/internal/session"
)

// PortAudio plays through and records from the default host devices.
type PortAudio struct {
	log *zap.Logger
}

// NewPortAudio initialises the PortAudio library. Call Close when done.
func NewPortAudio(log *zap.Logger) (*PortAudio, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, &session.DeviceError{Op: "init", Err: err}
	}
	log.Info("portaudio initialised", zap.String("version", portaudio.VersionText()))
	return &PortAudio{log: log}, nil
}

// Close releases the PortAudio library.
func (d *PortAudio) Close() error {
	return portaudio.Terminate()
}

// Open opens the default output with fn as its callback. PortAudio passes
// an interleaved buffer of BlockLength*Channels samples.
func (d *PortAudio) Open(cfg session.StreamConfig, fn session.BlockFunc) (session.Stream, error) {
	if cfg.Channels != session.Channels {
		return nil, &session.DeviceError{Op: "open", Err: session.ErrUnsupportedConfig}
	}
	st, err := portaudio.OpenDefaultStream(0, cfg.Channels, float64(cfg.SampleRate), cfg.BlockLength,
		func(out []float32) { fn(out) })
	if err != nil {
		return nil, &session.DeviceError{Op: "open", Err: err}
	}
	return &paStream{st: st}, nil
}

type paStream struct {
	mu     sync.Mutex
	st     *portaudio.Stream
	closed bool
}

func (s *paStream) Start() error {
	return s.st.Start()
}

// Close stops the stream (Pa_StopStream waits for the callback in flight)
// and then releases it.
func (s *paStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	stopErr := s.st.Stop()
	return errors.Join(stopErr, s.st.Close())
}

// recordBlock is the number of frames read per blocking call.
const recordBlock = 1024

// Record captures seconds of mono audio from the default input at rate.
// When ctx is cancelled it stops early and returns the samples captured so
// far together with ctx.Err().
func (d *PortAudio) Record(ctx context.Context, seconds float64, rate int) (analyze.Signal, error) {
	if !(seconds > 0) || rate <= 0 {
		return analyze.Signal{}, &session.DeviceError{Op: "record", Err: session.ErrUnsupportedConfig}
	}
	want := int(seconds * float64(rate))
	buf := make([]float32, recordBlock)
	st, err := portaudio.OpenDefaultStream(1, 0, float64(rate), len(buf), buf)
	if err != nil {
		return analyze.Signal{}, &session.DeviceError{Op: "record", Err: err}
	}
	defer st.Close()
	if err := st.Start(); err != nil {
		return analyze.Signal{}, &session.DeviceError{Op: "record", Err: err}
	}
	defer st.Stop()

	d.log.Info("recording", zap.Float64("seconds", seconds), zap.Int("rate", rate))
	samples, err := audio.Capture(ctx, want, buf, func() error {
		if err := st.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
			return &session.DeviceError{Op: "record", Err: fmt.Errorf("read: %w", err)}
		}
		return nil
	})
	return analyze.Signal{Samples: samples, Channels: 1, SampleRate: rate}, err
}
