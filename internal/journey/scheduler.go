package journey

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satindergrewal/binaural/internal/preset"
	"github.com/satindergrewal/binaural/internal/tone"
)

// ErrUnknownBand is returned for a band that is not in the graph.
var ErrUnknownBand = errors.New("unknown band")

// Config holds journey parameters.
type Config struct {
	StartingBand preset.Band
	DwellMin     time.Duration // min time per band
	DwellMax     time.Duration // max time per band
	Glide        time.Duration // length of the carrier/beat glide
	GlideStep    time.Duration // store update interval while gliding
	Tick         time.Duration // how often dwell expiry is checked
}

func (c Config) withDefaults() Config {
	if !IsValidBand(c.StartingBand) {
		c.StartingBand = preset.Theta
	}
	if c.GlideStep <= 0 {
		c.GlideStep = 50 * time.Millisecond
	}
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
	if c.DwellMax < c.DwellMin {
		c.DwellMax = c.DwellMin
	}
	return c
}

// Presets supplies candidate presets per band.
type Presets interface {
	InBand(b preset.Band) []preset.Named
}

// Status is the current journey state.
type Status struct {
	Enabled        bool    `json:"enabled"`
	Band           string  `json:"band"`
	Description    string  `json:"description"`
	Preset         string  `json:"preset,omitempty"`
	Gliding        bool    `json:"gliding"`
	DwellRemaining float64 `json:"dwell_remaining"` // seconds
}

// Scheduler owns band transitions and glides the parameter store toward a
// random preset of the current band each time it moves.
type Scheduler struct {
	presets Presets
	store   *tone.Store
	cfg     Config
	log     *zap.Logger

	mu       sync.RWMutex
	rng      *rand.Rand
	band     preset.Band
	current  string
	enabled  bool
	gliding  bool
	dwellEnd time.Time

	bandCh chan preset.Band
}

// NewScheduler creates a disabled journey starting at cfg.StartingBand.
func NewScheduler(presets Presets, store *tone.Store, cfg Config, log *zap.Logger) *Scheduler {
	cfg = cfg.withDefaults()
	seed := uint64(time.Now().UnixNano())
	return &Scheduler{
		presets: presets,
		store:   store,
		cfg:     cfg,
		log:     log,
		rng:     rand.New(rand.NewPCG(seed, seed>>32)),
		band:    cfg.StartingBand,
		bandCh:  make(chan preset.Band, 1),
	}
}

// Status returns the current journey state.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		Enabled:     s.enabled,
		Band:        string(s.band),
		Description: Describe(s.band),
		Preset:      s.current,
		Gliding:     s.gliding,
	}
	if s.enabled {
		st.DwellRemaining = max(0, time.Until(s.dwellEnd).Seconds())
	}
	return st
}

// SetEnabled turns automatic transitions on or off. Enabling starts the
// journey in the current band right away.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	was := s.enabled
	s.enabled = enabled
	band := s.band
	s.mu.Unlock()

	if enabled && !was {
		s.queue(band)
	}
	s.log.Info("journey toggled", zap.Bool("enabled", enabled), zap.String("band", string(band)))
}

// SetBand moves to band immediately, picking a new preset from it. It works
// whether or not the journey is enabled.
func (s *Scheduler) SetBand(b preset.Band) error {
	if !IsValidBand(b) {
		return fmt.Errorf("%q: %w", b, ErrUnknownBand)
	}
	s.queue(b)
	return nil
}

// queue replaces any band change not yet picked up by Run.
func (s *Scheduler) queue(b preset.Band) {
	for {
		select {
		case s.bandCh <- b:
			return
		default:
		}
		select {
		case <-s.bandCh:
		default:
		}
	}
}

// Run drives the journey. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case b := <-s.bandCh:
			s.enter(ctx, b)
		case <-ticker.C:
			s.mu.RLock()
			due := s.enabled && time.Now().After(s.dwellEnd)
			s.mu.RUnlock()
			if due {
				s.transition(ctx)
			}
		}
	}
}

func (s *Scheduler) transition(ctx context.Context) {
	s.mu.Lock()
	from := s.band
	next := from
	if n, ok := Graph[from]; ok && len(n.Adjacent) > 0 {
		next = n.Adjacent[s.rng.IntN(len(n.Adjacent))]
	}
	s.mu.Unlock()

	s.log.Info("journey transition", zap.String("from", string(from)), zap.String("to", string(next)))
	s.enter(ctx, next)
}

// enter switches to band b, glides to one of its presets and restarts the
// dwell timer.
func (s *Scheduler) enter(ctx context.Context, b preset.Band) {
	candidates := s.presets.InBand(b)

	s.mu.Lock()
	s.band = b
	s.resetDwell()
	if len(candidates) == 0 {
		s.current = ""
		s.mu.Unlock()
		s.log.Warn("no presets left in band", zap.String("band", string(b)))
		return
	}
	pick := candidates[s.rng.IntN(len(candidates))]
	s.current = pick.Name
	s.gliding = true
	s.mu.Unlock()

	s.log.Info("journey preset",
		zap.String("band", string(b)),
		zap.String("preset", pick.Name),
		zap.Float64("carrier", pick.CarrierHz),
		zap.Float64("beat", pick.BeatHz),
	)
	s.glide(ctx, tone.Params{CarrierHz: pick.CarrierHz, BeatHz: pick.BeatHz})

	s.mu.Lock()
	s.gliding = false
	s.mu.Unlock()
}

// glide eases the store's carrier and beat to target over cfg.Glide. Volume
// changes made meanwhile are kept. A cancelled ctx leaves the store where
// the glide got to.
func (s *Scheduler) glide(ctx context.Context, target tone.Params) {
	from := s.store.Snapshot()
	steps := int(s.cfg.Glide / s.cfg.GlideStep)
	if steps < 1 {
		s.store.Update(func(p tone.Params) tone.Params { return blend(p, from, target, 1) })
		return
	}

	ticker := time.NewTicker(s.cfg.GlideStep)
	defer ticker.Stop()
	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		t := Smoothstep(float64(i) / float64(steps))
		s.store.Update(func(p tone.Params) tone.Params { return blend(p, from, target, t) })
	}
}

// resetDwell sets a new random dwell timer. Must be called with mu held.
func (s *Scheduler) resetDwell() {
	dwell := s.cfg.DwellMin
	if spread := s.cfg.DwellMax - s.cfg.DwellMin; spread > 0 {
		dwell += time.Duration(s.rng.Int64N(int64(spread)))
	}
	s.dwellEnd = time.Now().Add(dwell)
}
