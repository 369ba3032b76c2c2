package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satindergrewal/binaural/internal/metrics"
	"github.com/satindergrewal/binaural/internal/tone"
)

// Session is one run of the output stream. Its phase state is touched only
// by the device callback and starts at zero.
type Session struct {
	id        uuid.UUID
	cfg       StreamConfig
	startedAt time.Time
	store     *tone.Store
	rate      float64
	log       *zap.Logger

	phase tone.Phase // audio context only

	mu      sync.Mutex // serialises Stop
	stream  Stream
	running atomic.Bool
}

// ID identifies the session in logs and API responses.
func (s *Session) ID() string { return s.id.String() }

// Config returns the stream configuration the session was opened with.
func (s *Session) Config() StreamConfig { return s.cfg }

// StartedAt returns when the stream started.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Running reports whether the stream is still open.
func (s *Session) Running() bool { return s.running.Load() }

// process is the per-block callback: snapshot, fill, keep the phase.
func (s *Session) process(out []float32) {
	p := s.store.Snapshot()
	s.phase = tone.Fill(out, s.phase, p, s.rate)
	metrics.BlocksRenderedTotal.Inc()
}

// Stop halts and releases the stream. It is safe to call more than once and
// from any goroutine other than the audio callback itself.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return
	}
	if err := s.stream.Close(); err != nil {
		metrics.DeviceErrorsTotal.WithLabelValues("close").Inc()
		s.log.Warn("closing output stream", zap.String("session", s.ID()), zap.Error(err))
	}
	s.running.Store(false)
	metrics.ActiveSessions.Dec()
	s.log.Info("session stopped",
		zap.String("session", s.ID()),
		zap.Duration("uptime", time.Since(s.startedAt)),
	)
}

// Player owns at most one running Session on a Device.
type Player struct {
	dev   Device
	store *tone.Store
	log   *zap.Logger

	mu     sync.Mutex
	active *Session
}

// NewPlayer creates a player that renders store's parameters on dev.
func NewPlayer(dev Device, store *tone.Store, log *zap.Logger) *Player {
	return &Player{dev: dev, store: store, log: log}
}

// Start opens a stream at sampleRate with blockLength frames per callback.
// A running session is stopped first, so the new one starts from phase zero.
// Failures are returned as *DeviceError.
func (p *Player) Start(sampleRate, blockLength int) (*Session, error) {
	if sampleRate <= 0 || blockLength <= 0 {
		metrics.DeviceErrorsTotal.WithLabelValues("open").Inc()
		return nil, &DeviceError{Op: "open", Err: ErrUnsupportedConfig}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active != nil {
		p.log.Info("restarting output", zap.String("previous", p.active.ID()))
		p.active.Stop()
		p.active = nil
	}

	s := &Session{
		id:    uuid.New(),
		cfg:   StreamConfig{SampleRate: sampleRate, BlockLength: blockLength, Channels: Channels},
		store: p.store,
		rate:  float64(sampleRate),
		log:   p.log,
	}

	stream, err := p.dev.Open(s.cfg, s.process)
	if err != nil {
		metrics.DeviceErrorsTotal.WithLabelValues("open").Inc()
		return nil, asDeviceError("open", err)
	}
	s.stream = stream
	if err := stream.Start(); err != nil {
		metrics.DeviceErrorsTotal.WithLabelValues("start").Inc()
		if cerr := stream.Close(); cerr != nil {
			p.log.Warn("closing stream after failed start", zap.Error(cerr))
		}
		return nil, asDeviceError("start", err)
	}

	s.startedAt = time.Now()
	s.running.Store(true)
	p.active = s
	metrics.SessionsStartedTotal.Inc()
	metrics.ActiveSessions.Inc()
	p.log.Info("session started",
		zap.String("session", s.ID()),
		zap.Int("sample_rate", sampleRate),
		zap.Int("block_length", blockLength),
	)
	return s, nil
}

// Stop stops s. Stopping nil or an already stopped session is a no-op.
func (p *Player) Stop(s *Session) {
	if s == nil {
		return
	}
	s.Stop()

	p.mu.Lock()
	if p.active == s {
		p.active = nil
	}
	p.mu.Unlock()
}

// StopActive stops the running session, if any, and returns it.
func (p *Player) StopActive() *Session {
	s := p.Active()
	p.Stop(s)
	return s
}

// Active returns the running session or nil.
func (p *Player) Active() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil && !p.active.Running() {
		p.active = nil
	}
	return p.active
}

func asDeviceError(op string, err error) error {
	var de *DeviceError
	if errors.As(err, &de) {
		return de
	}
	return &DeviceError{Op: op, Err: err}
}
