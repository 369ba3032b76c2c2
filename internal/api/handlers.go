package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/satindergrewal/binaural/internal/journey"
	"github.com/satindergrewal/binaural/internal/preset"
	"github.com/satindergrewal/binaural/internal/session"
	"github.com/satindergrewal/binaural/internal/tone"
)

type paramsResponse struct {
	tone.Params
	RightHz float64 `json:"right"`
	Version uint64  `json:"version"`
}

func (s *Server) paramsResponse() paramsResponse {
	p := s.Store.Snapshot()
	return paramsResponse{Params: p, RightHz: p.RightHz(), Version: s.Store.Version()}
}

type sessionResponse struct {
	ID          string    `json:"id"`
	Running     bool      `json:"running"`
	SampleRate  int       `json:"sample_rate"`
	BlockLength int       `json:"block_length"`
	StartedAt   time.Time `json:"started_at"`
	Uptime      float64   `json:"uptime"` // seconds
}

func describeSession(sess *session.Session) *sessionResponse {
	if sess == nil {
		return nil
	}
	cfg := sess.Config()
	return &sessionResponse{
		ID:          sess.ID(),
		Running:     sess.Running(),
		SampleRate:  cfg.SampleRate,
		BlockLength: cfg.BlockLength,
		StartedAt:   sess.StartedAt(),
		Uptime:      time.Since(sess.StartedAt()).Seconds(),
	}
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"params":  s.paramsResponse(),
		"session": describeSession(s.Player.Active()),
		"preset":  s.currentPreset(),
	}
	if s.Journey != nil {
		resp["journey"] = s.Journey.Status()
	}
	if s.Listeners != nil {
		resp["listeners"] = s.Listeners()
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Parameters ---

func (s *Server) getParams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.paramsResponse())
}

// setParams applies a partial update; fields left out keep their value.
func (s *Server) setParams(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CarrierHz *float64 `json:"carrier"`
		BeatHz    *float64 `json:"beat"`
		Volume    *float64 `json:"volume"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}

	p := s.Store.Snapshot()
	if req.CarrierHz != nil {
		p.CarrierHz = *req.CarrierHz
	}
	if req.BeatHz != nil {
		p.BeatHz = *req.BeatHz
	}
	if req.Volume != nil {
		p.Volume = *req.Volume
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.Store.Set(p)
	if req.CarrierHz != nil || req.BeatHz != nil {
		s.setLastPreset("")
	}
	writeJSON(w, http.StatusOK, s.paramsResponse())
}

func (s *Server) nudge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta float64 `json:"delta"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}
	if req.Delta == 0 {
		req.Delta = tone.NudgeStep
	}
	s.Store.Update(func(p tone.Params) tone.Params {
		p.CarrierHz = tone.Nudge(p.CarrierHz, req.Delta)
		return p
	})
	writeJSON(w, http.StatusOK, s.paramsResponse())
}

func (s *Server) envelope(w http.ResponseWriter, r *http.Request) {
	rate := 44100
	if v := r.URL.Query().Get("rate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 192000 {
			writeError(w, http.StatusBadRequest, errors.New("rate must be 1-192000"))
			return
		}
		rate = n
	}
	p := s.Store.Snapshot()
	writeJSON(w, http.StatusOK, tone.NewEnvelope(p.CarrierHz, p.BeatHz, rate))
}

// --- Sessions ---

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	req := struct {
		SampleRate  int `json:"sample_rate"`
		BlockLength int `json:"block_length"`
	}{s.Options.SampleRate, s.Options.BlockLength}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}

	sess, err := s.Player.Start(req.SampleRate, req.BlockLength)
	if err != nil {
		writeError(w, deviceStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, describeSession(sess))
}

func (s *Server) stopSession(w http.ResponseWriter, r *http.Request) {
	sess := s.Player.StopActive()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "stopped": sess != nil})
}

// deviceStatus maps a device failure to an HTTP status.
func deviceStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrUnsupportedConfig):
		return http.StatusBadRequest
	case errors.As(err, new(*session.DeviceError)):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// --- Presets ---

func (s *Server) listPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": s.Presets.Categories(),
		"selected":   s.currentPreset(),
	})
}

// savePreset stores the current carrier and beat under a name.
func (s *Server) savePreset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"desc"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}
	p := s.Store.Snapshot()
	pr := preset.Preset{CarrierHz: p.CarrierHz, BeatHz: p.BeatHz, Description: req.Description}
	if err := s.Presets.Save(req.Name, pr); err != nil {
		switch {
		case errors.Is(err, preset.ErrEmptyName), errors.Is(err, preset.ErrInvalidPreset):
			writeError(w, http.StatusBadRequest, err)
		default:
			s.Log.Error("saving preset", zap.Error(err))
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	s.setLastPreset(req.Name)
	writeJSON(w, http.StatusCreated, preset.Named{Name: req.Name, Preset: pr})
}

// loadPreset applies carrier and beat; volume is left as it is.
func (s *Server) loadPreset(w http.ResponseWriter, r *http.Request) {
	name := presetName(r)
	pr, err := s.Presets.Get(name)
	switch {
	case errors.Is(err, preset.ErrPresetNotFound):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.Store.Update(func(p tone.Params) tone.Params {
		p.CarrierHz, p.BeatHz = pr.CarrierHz, pr.BeatHz
		return p
	})
	s.setLastPreset(name)
	writeJSON(w, http.StatusOK, s.paramsResponse())
}

func (s *Server) deletePreset(w http.ResponseWriter, r *http.Request) {
	name := presetName(r)
	if err := s.Presets.Delete(name); err != nil {
		if errors.Is(err, preset.ErrPresetNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		s.Log.Error("deleting preset", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if s.currentPreset() == name {
		s.setLastPreset("")
	}
	w.WriteHeader(http.StatusNoContent)
}

// presetName returns the decoded {name} path segment.
func presetName(r *http.Request) string {
	name := chi.URLParam(r, "name")
	if v, err := url.PathUnescape(name); err == nil {
		return v
	}
	return name
}

// --- Journey ---

func (s *Server) journeyStatus(w http.ResponseWriter, r *http.Request) {
	if s.Journey == nil {
		writeError(w, http.StatusNotImplemented, errors.New("journey mode is not running"))
		return
	}
	writeJSON(w, http.StatusOK, s.Journey.Status())
}

func (s *Server) setJourney(w http.ResponseWriter, r *http.Request) {
	if s.Journey == nil {
		writeError(w, http.StatusNotImplemented, errors.New("journey mode is not running"))
		return
	}
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decode(r, &req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, errors.New(`body must be {"enabled": true|false}`))
		return
	}
	s.Journey.SetEnabled(*req.Enabled)
	writeJSON(w, http.StatusOK, s.Journey.Status())
}

func (s *Server) setJourneyBand(w http.ResponseWriter, r *http.Request) {
	if s.Journey == nil {
		writeError(w, http.StatusNotImplemented, errors.New("journey mode is not running"))
		return
	}
	var req struct {
		Band string `json:"band"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}
	if err := s.Journey.SetBand(preset.Band(req.Band)); err != nil {
		if errors.Is(err, journey.ErrUnknownBand) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "band": req.Band})
}
