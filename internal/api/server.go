// Package api exposes the tone engine over HTTP: live parameters, output
// sessions, presets, export, hum analysis and journey control.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/satindergrewal/binaural/internal/analyze"
	"github.com/satindergrewal/binaural/internal/journey"
	"github.com/satindergrewal/binaural/internal/preset"
	"github.com/satindergrewal/binaural/internal/session"
	"github.com/satindergrewal/binaural/internal/tone"
)

// Recorder captures a mono signal from an input device.
type Recorder interface {
	Record(ctx context.Context, seconds float64, rate int) (analyze.Signal, error)
}

// Options are the defaults handlers fall back to when a request leaves a
// value out.
type Options struct {
	SampleRate    int // output stream
	BlockLength   int
	ExportRate    int
	ExportSeconds float64
	RecordSeconds float64
	BandMinHz     float64
	BandMaxHz     float64
	ThresholdDB   float64
}

// Deps are the components the API drives. Journey, Recorder, Stream and
// Offer are optional; their routes answer 501 or are absent when nil.
type Deps struct {
	Store     *tone.Store
	Player    *session.Player
	Presets   *preset.Store
	Resonance *preset.ResonanceLog
	Analyzer  *analyze.Analyzer
	Journey   *journey.Scheduler
	Recorder  Recorder
	Stream    http.Handler // MP3 listeners
	Offer     http.Handler // WebRTC SDP offers
	Listeners func() int
	Options   Options
	Log       *zap.Logger
}

// Server routes HTTP requests to the engine.
type Server struct {
	Deps
	router chi.Router

	recording sync.Mutex // one capture at a time

	mu         sync.RWMutex
	lastPreset string
}

// New builds the router.
func New(d Deps) *Server {
	if d.Options.ExportRate <= 0 {
		d.Options.ExportRate = 44100
	}
	s := &Server{Deps: d}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	if d.Stream != nil {
		r.Handle("/stream", d.Stream)
	}
	if d.Offer != nil {
		r.Handle("/offer", d.Offer)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.status)

		r.Get("/params", s.getParams)
		r.Post("/params", s.setParams)
		r.Post("/nudge", s.nudge)
		r.Get("/envelope", s.envelope)

		r.Post("/session/start", s.startSession)
		r.Post("/session/stop", s.stopSession)

		r.Route("/presets", func(r chi.Router) {
			r.Get("/", s.listPresets)
			r.Post("/", s.savePreset)
			r.Post("/{name}/load", s.loadPreset)
			r.Delete("/{name}", s.deletePreset)
		})

		r.Post("/export", s.export)
		r.Post("/analyze", s.analyzeUpload)
		r.Post("/record", s.record)

		r.Get("/resonance", s.listResonance)
		r.Post("/resonance", s.markResonance)

		r.Get("/journey", s.journeyStatus)
		r.Post("/journey", s.setJourney)
		r.Post("/journey/band", s.setJourneyBand)
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		if r.URL.Path == "/metrics" || r.URL.Path == "/stream" {
			return
		}
		s.Log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

func (s *Server) setLastPreset(name string) {
	s.mu.Lock()
	s.lastPreset = name
	s.mu.Unlock()
}

func (s *Server) currentPreset() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPreset
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decode reads an optional JSON body. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
