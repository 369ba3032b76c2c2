package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"

	"github.com/satindergrewal/binaural/internal/audio"
	"github.com/satindergrewal/binaural/internal/session"
)

// Oto plays through the platform mixer via oto. It needs no PortAudio
// install but has no input side, so it cannot record.
//
// oto allows one context per process; the first Open fixes the sample rate
// and later opens at another rate fail.
type Oto struct {
	log    *zap.Logger
	buffer time.Duration

	mu   sync.Mutex
	ctx  *oto.Context
	rate int
}

// NewOto creates the backend. buffer is the mixer latency; zero lets oto
// choose.
func NewOto(log *zap.Logger, buffer time.Duration) *Oto {
	return &Oto{log: log, buffer: buffer}
}

func (d *Oto) Open(cfg session.StreamConfig, fn session.BlockFunc) (session.Stream, error) {
	if cfg.Channels != session.Channels || cfg.BlockLength <= 0 {
		return nil, &session.DeviceError{Op: "open", Err: session.ErrUnsupportedConfig}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: cfg.Channels,
			Format:       oto.FormatFloat32LE,
			BufferSize:   d.buffer,
		})
		if err != nil {
			return nil, &session.DeviceError{Op: "open", Err: err}
		}
		<-ready
		d.ctx, d.rate = ctx, cfg.SampleRate
		d.log.Info("oto context ready", zap.Int("rate", d.rate))
	}
	if cfg.SampleRate != d.rate {
		return nil, &session.DeviceError{
			Op:  "open",
			Err: fmt.Errorf("%w: oto context already runs at %d Hz", session.ErrUnsupportedConfig, d.rate),
		}
	}
	if err := d.ctx.Err(); err != nil {
		return nil, &session.DeviceError{Op: "open", Err: err}
	}

	r := audio.NewBlockReader(cfg.BlockLength*cfg.Channels, fn)
	return &otoStream{ctx: d.ctx, r: r}, nil
}

type otoStream struct {
	ctx *oto.Context
	r   *audio.BlockReader

	mu     sync.Mutex
	player *oto.Player
}

func (s *otoStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		return nil
	}
	s.player = s.ctx.NewPlayer(s.r)
	s.player.Play()
	return nil
}

// Close halts the reader first: oto may still pull from it while the
// player winds down, but fn is no longer called.
func (s *otoStream) Close() error {
	s.r.Halt()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil {
		return nil
	}
	s.player.Pause()
	s.player.Close()
	s.player = nil
	return nil
}
