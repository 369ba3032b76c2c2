package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/satindergrewal/binaural/internal/analyze"
	"github.com/satindergrewal/binaural/internal/api"
	"github.com/satindergrewal/binaural/internal/config"
	"github.com/satindergrewal/binaural/internal/device"
	"github.com/satindergrewal/binaural/internal/journey"
	"github.com/satindergrewal/binaural/internal/preset"
	"github.com/satindergrewal/binaural/internal/render"
	"github.com/satindergrewal/binaural/internal/session"
	"github.com/satindergrewal/binaural/internal/stream"
	"github.com/satindergrewal/binaural/internal/tone"
)

const usage = `usage: binaural [command] [flags]

commands:
  serve     run the tone engine and HTTP API (default)
  render    write a tone to a WAV file
  analyze   find the hum frequency in a recording
  presets   list stored presets
`

func main() {
	cfg := config.Load()
	log := newLogger(cfg.LogDev)
	defer log.Sync()

	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = serve(cfg, log)
	case "render":
		err = renderCmd(cfg, args)
	case "analyze":
		err = analyzeCmd(cfg, args)
	case "presets":
		err = presetsCmd(cfg, log)
	case "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(cmd+" failed", zap.Error(err))
	}
}

func newLogger(dev bool) *zap.Logger {
	var (
		log *zap.Logger
		err error
	)
	if dev {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	return log
}

func serve(cfg config.Config, log *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("binaural starting up", zap.String("backend", cfg.Backend))

	initial := tone.Params{CarrierHz: cfg.CarrierHz, BeatHz: cfg.BeatHz, Volume: cfg.Volume}
	if err := initial.Validate(); err != nil {
		return fmt.Errorf("starting tone: %w", err)
	}
	store := tone.NewStore(initial)

	deps := api.Deps{
		Store: store,
		Options: api.Options{
			SampleRate:    cfg.SampleRate,
			BlockLength:   cfg.BlockLength,
			ExportSeconds: cfg.ExportSeconds,
			RecordSeconds: cfg.RecordSeconds,
			BandMinHz:     cfg.BandMinHz,
			BandMaxHz:     cfg.BandMaxHz,
			ThresholdDB:   cfg.ThresholdDB,
		},
		Log: log,
	}

	// Output backend
	var dev session.Device
	switch cfg.Backend {
	case config.BackendPortAudio:
		pa, err := device.NewPortAudio(log)
		if err != nil {
			return err
		}
		defer pa.Close()
		dev = pa
		deps.Recorder = pa
	case config.BackendOto:
		dev = device.NewOto(log, 0)
	case config.BackendStream:
		src := stream.NewSource(log)
		broadcaster := stream.NewBroadcaster()
		go broadcaster.Run(ctx, src.Frames())

		webrtcHandler := stream.NewWebRTCHandler(broadcaster, log)
		deps.Stream = stream.NewHTTPHandler(broadcaster, log)
		deps.Offer = webrtcHandler
		deps.Listeners = func() int {
			return broadcaster.ListenerCount() + webrtcHandler.PeerCount()
		}
		dev = src
	default:
		return fmt.Errorf("unknown backend %q (want %s, %s or %s)",
			cfg.Backend, config.BackendPortAudio, config.BackendOto, config.BackendStream)
	}
	player := session.NewPlayer(dev, store, log)
	defer player.StopActive()
	deps.Player = player

	// Presets and resonance log
	presets, err := preset.Open(cfg.PresetsFile, log)
	if err != nil {
		return err
	}
	deps.Presets = presets
	deps.Resonance = preset.NewResonanceLog(cfg.ResonanceFile)

	deps.Analyzer = analyze.New(cfg.AnalysisRate, cfg.AnalysisSeconds)

	// Journey mode starts disabled; the API turns it on.
	sched := journey.NewScheduler(presets, store, journey.Config{
		StartingBand: preset.Band(cfg.StartingBand),
		DwellMin:     cfg.DwellMin,
		DwellMax:     cfg.DwellMax,
		Glide:        cfg.Glide,
	}, log)
	go sched.Run(ctx)
	deps.Journey = sched

	// The stream backend has listeners waiting; start producing right away.
	if cfg.Backend == config.BackendStream {
		if _, err := player.Start(cfg.SampleRate, cfg.BlockLength); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.New(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func renderCmd(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	carrier := fs.Float64("carrier", cfg.CarrierHz, "left channel frequency in Hz")
	beat := fs.Float64("beat", cfg.BeatHz, "beat frequency in Hz (right = carrier + beat)")
	volume := fs.Float64("volume", cfg.Volume, "amplitude before normalization")
	seconds := fs.Float64("seconds", cfg.ExportSeconds, "duration")
	rate := fs.Int("rate", 44100, "sample rate")
	out := fs.String("o", "", "output file (default binaural_<carrier>_<beat>.wav)")
	fs.Parse(args)

	p := tone.Params{CarrierHz: *carrier, BeatHz: *beat, Volume: *volume}
	wf, err := render.Render(p, *seconds, *rate)
	if err != nil {
		return err
	}
	path := *out
	if path == "" {
		path = fmt.Sprintf("binaural_%g_%g.wav", tone.RoundHz(p.CarrierHz), tone.RoundHz(p.BeatHz))
	}
	if err := render.WriteFile(path, wf); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%.2f s, %d Hz)\n", path, wf.Duration(), wf.SampleRate)
	return nil
}

func analyzeCmd(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	minHz := fs.Float64("min", cfg.BandMinHz, "lowest frequency considered")
	maxHz := fs.Float64("max", cfg.BandMaxHz, "highest frequency considered")
	threshold := fs.Float64("threshold", cfg.ThresholdDB, "dB the peak must stand above the band median")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("analyze takes exactly one recording")
	}

	a := analyze.New(cfg.AnalysisRate, cfg.AnalysisSeconds)
	sig, err := analyze.LoadFile(fs.Arg(0), a.Rate())
	if err != nil {
		return err
	}
	res, err := a.Analyze(sig, *minHz, *maxHz, *threshold)
	if err != nil {
		return err
	}
	if !res.Found {
		fmt.Println("no clear peak")
		return nil
	}
	fmt.Printf("%.2f Hz (peak %.1f dB, floor %.1f dB)\n", tone.RoundHz(res.FrequencyHz), res.PeakDB, res.FloorDB)
	return nil
}

func presetsCmd(cfg config.Config, log *zap.Logger) error {
	presets, err := preset.Open(cfg.PresetsFile, log)
	if err != nil {
		return err
	}
	for _, c := range presets.Categories() {
		fmt.Println(c.Name)
		for _, p := range c.Presets {
			fmt.Printf("  %-24s %7.2f Hz  %5.2f Hz  %s\n", p.Name, p.CarrierHz, p.BeatHz, p.Description)
		}
	}
	return nil
}
