package stream

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satindergrewal/binaural/internal/audio"
	"github.com/satindergrewal/binaural/internal/session"
)

// Source is an output device with no sound card behind it. An open stream
// pulls one 20ms block from the oscillator per tick and publishes it as PCM
// for the Broadcaster, so listeners hear whatever session is running.
type Source struct {
	log      *zap.Logger
	interval time.Duration
	frameCh  chan []int16
}

// NewSource creates a paced source producing real-time 20ms frames.
func NewSource(log *zap.Logger) *Source {
	return &Source{
		log:      log,
		interval: audio.FrameDuration,
		frameCh:  make(chan []int16, 100),
	}
}

// Frames returns the channel of outgoing PCM frames. It is never closed;
// it stays silent while no session is running.
func (s *Source) Frames() <-chan []int16 {
	return s.frameCh
}

// Open accepts only the Opus frame layout (48kHz, 960 frames, stereo).
func (s *Source) Open(cfg session.StreamConfig, fn session.BlockFunc) (session.Stream, error) {
	if cfg.SampleRate != audio.SampleRate || cfg.BlockLength != audio.FrameSize || cfg.Channels != audio.Channels {
		return nil, &session.DeviceError{
			Op:  "open",
			Err: fmt.Errorf("%w: stream backend needs %d Hz, %d frames, %d channels",
				session.ErrUnsupportedConfig, audio.SampleRate, audio.FrameSize, audio.Channels),
		}
	}
	return &sourceStream{src: s, fn: fn}, nil
}

type sourceStream struct {
	src *Source
	fn  session.BlockFunc

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
}

func (st *sourceStream) Start() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.started {
		return nil
	}
	st.started = true
	st.stop = make(chan struct{})
	st.done = make(chan struct{})
	go st.run()
	return nil
}

// Close stops the pacing goroutine and waits for it, so fn is not called
// after Close returns.
func (st *sourceStream) Close() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.started {
		return nil
	}
	st.started = false
	close(st.stop)
	<-st.done
	return nil
}

func (st *sourceStream) run() {
	defer close(st.done)

	ticker := time.NewTicker(st.src.interval)
	defer ticker.Stop()

	block := make([]float32, audio.FrameSamples)
	dropped := 0
	for {
		select {
		case <-st.stop:
			if dropped > 0 {
				st.src.log.Debug("stream source dropped frames", zap.Int("frames", dropped))
			}
			return
		case <-ticker.C:
		}

		st.fn(block)
		// Each frame goes to several listeners, so it cannot be reused.
		frame := audio.FloatsToInt16Into(block, make([]int16, len(block)))
		select {
		case st.src.frameCh <- frame:
		default:
			dropped++
		}
	}
}
