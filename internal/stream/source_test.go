package stream

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satindergrewal/binaural/internal/audio"
	"github.com/satindergrewal/binaural/internal/session"
	"github.com/satindergrewal/binaural/internal/tone"
)

func opusConfig() session.StreamConfig {
	return session.StreamConfig{SampleRate: audio.SampleRate, BlockLength: audio.FrameSize, Channels: audio.Channels}
}

func newTestSource(t *testing.T) *Source {
	s := NewSource(zaptest.NewLogger(t))
	s.interval = time.Millisecond
	return s
}

func TestSourceRejectsForeignConfig(t *testing.T) {
	s := newTestSource(t)
	for _, cfg := range []session.StreamConfig{
		{SampleRate: 44100, BlockLength: audio.FrameSize, Channels: 2},
		{SampleRate: audio.SampleRate, BlockLength: 1024, Channels: 2},
		{SampleRate: audio.SampleRate, BlockLength: audio.FrameSize, Channels: 1},
	} {
		_, err := s.Open(cfg, func([]float32) {})
		var de *session.DeviceError
		if !errors.As(err, &de) || !errors.Is(err, session.ErrUnsupportedConfig) {
			t.Errorf("Open(%+v) = %v, want DeviceError wrapping ErrUnsupportedConfig", cfg, err)
		}
	}
}

func TestSourcePublishesFrames(t *testing.T) {
	s := newTestSource(t)
	st, err := s.Open(opusConfig(), func(out []float32) {
		for i := range out {
			out[i] = 0.5
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Start(); err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	select {
	case frame := <-s.Frames():
		if len(frame) != audio.FrameSamples {
			t.Fatalf("frame length = %d, want %d", len(frame), audio.FrameSamples)
		}
		if frame[0] != 16383 {
			t.Errorf("frame[0] = %d, want 16383", frame[0])
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for a frame")
	}
}

func TestSourceFramesAreNotReused(t *testing.T) {
	s := newTestSource(t)
	var n atomic.Int32
	st, _ := s.Open(opusConfig(), func(out []float32) {
		v := float32(n.Add(1)) / 100
		for i := range out {
			out[i] = v
		}
	})
	st.Start()
	defer st.Close()

	first := <-s.Frames()
	want := first[0]
	<-s.Frames()
	if first[0] != want {
		t.Errorf("first frame changed after the next tick: %d -> %d", want, first[0])
	}
}

func TestSourceCloseIsSynchronous(t *testing.T) {
	s := newTestSource(t)
	var calls atomic.Int64
	st, _ := s.Open(opusConfig(), func([]float32) { calls.Add(1) })
	st.Start()
	time.Sleep(20 * time.Millisecond)

	if err := st.Close(); err != nil {
		t.Fatal(err)
	}
	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	if got := calls.Load(); got != after {
		t.Errorf("callback ran %d more times after Close", got-after)
	}
	if err := st.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestSourceDrivesSession(t *testing.T) {
	s := newTestSource(t)
	store := tone.NewStore(tone.Params{CarrierHz: 200, BeatHz: 10, Volume: 0.5})
	p := session.NewPlayer(s, store, zaptest.NewLogger(t))

	sess, err := p.Start(audio.SampleRate, audio.FrameSize)
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Stop()

	select {
	case frame := <-s.Frames():
		// Phase starts at zero, so the first sample of both channels is silent.
		if frame[0] != 0 || frame[1] != 0 {
			t.Errorf("first frame starts with %d,%d, want 0,0", frame[0], frame[1])
		}
		var peak int16
		for _, v := range frame {
			peak = max(peak, v)
		}
		if peak == 0 || peak > 16384 {
			t.Errorf("peak = %d, want within volume 0.5", peak)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for session audio")
	}
}
