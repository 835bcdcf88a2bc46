package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/handsynth/internal/app"
	"github.com/ayusman/handsynth/internal/audio"
	"github.com/ayusman/handsynth/internal/capture"
	"github.com/ayusman/handsynth/internal/config"
	"github.com/ayusman/handsynth/internal/engine"
	"github.com/ayusman/handsynth/internal/logging"
	"github.com/ayusman/handsynth/internal/monitor"
	"github.com/ayusman/handsynth/internal/server"
	"github.com/ayusman/handsynth/internal/store"
	"github.com/ayusman/handsynth/internal/tray"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "handsynth: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.DefaultPath(), "path to config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	policy := flag.String("policy", "", "mode policy (overrides stored setting)")
	noTray := flag.Bool("no-tray", false, "disable the system tray")
	withMonitor := flag.Bool("monitor", false, "show the terminal monitor")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	writeConfig := flag.Bool("write-config", false, "write the effective config and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *noTray {
		cfg.Tray = false
	}
	if *withMonitor {
		cfg.Monitor = true
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if *writeConfig {
		if err := cfg.Save(*configPath); err != nil {
			return err
		}
		fmt.Println("wrote", *configPath)
		return nil
	}

	// The monitor owns the terminal, so logs go to a file.
	if cfg.Monitor {
		err = logging.InitFile(cfg.LogDir(), cfg.LogLevel)
	} else {
		err = logging.Init(os.Stderr, cfg.LogLevel)
	}
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Close()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	backend := newBackend(cfg)
	defer midi.CloseDriver()

	var prefs *app.Preferences
	ecfg, err := cfg.EngineConfig(nil)
	if err != nil {
		return err
	}
	ecfg.OnTutorialComplete = func() { prefs.MarkTutorialCompleted() }

	eng, err := engine.New(backend, ecfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	prefs = app.NewPreferences(st.Settings(), eng)
	if err := prefs.Apply(); err != nil {
		return err
	}
	if *policy != "" {
		if err := prefs.SetPolicy(*policy); err != nil {
			return err
		}
	}

	bank := app.NewSampleBank(st.Samples(), eng, backend)
	if n, err := bank.Seed(defaultSamples(cfg)); err != nil {
		return err
	} else if n > 0 {
		logging.Info("seeded sample bank", "samples", n)
	}
	if err := bank.Reload(); err != nil {
		return err
	}

	acfg := app.DefaultConfig()
	acfg.DetectFPS = cfg.Detection.FPS
	acfg.IdleFPS = cfg.Detection.IdleFPS
	acfg.IdleAfter = cfg.IdleAfter()
	acfg.MotionThreshold = cfg.Detection.MotionThreshold
	acfg.RenderFPS = cfg.RenderFPS
	acfg.Detector = cfg.DetectorConfig()
	pipeline := app.New(acfg, capture.NewCamera(cfg.CaptureConfig()), eng)
	defer pipeline.Close()

	srv := server.New(server.Config{
		StaticDir: findWebDir(cfg),
		Store:     st,
		Engine:    eng,
		Pipeline:  pipeline,
		Samples:   bank,
		Prefs:     prefs,
		StreamFPS: cfg.Detection.FPS,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Serve(ctx, cfg.Server.Addr)
	})
	g.Go(func() error {
		return pipeline.Run(ctx)
	})

	if cfg.Monitor {
		states, unsubscribe := pipeline.Subscribe()
		g.Go(func() error {
			defer unsubscribe()
			defer stop()
			return monitor.Run(ctx, monitor.New(states, controls{Engine: eng, prefs: prefs}))
		})
	}

	if cfg.Tray {
		t := tray.New(eng.Policy())
		t.OnStartAudio(func() {
			if err := eng.StartAudio(); err != nil {
				logging.Error("start audio", "err", err)
			}
		})
		t.OnPolicy(func(name string) {
			if err := prefs.SetPolicy(name); err != nil {
				logging.Error("set policy", "err", err)
			}
		})
		t.OnOpen(func() { openBrowser("http://" + browseAddr(cfg.Server.Addr)) })
		t.OnQuit(stop)

		states, unsubscribe := pipeline.Subscribe()
		g.Go(func() error {
			defer unsubscribe()
			t.Follow(ctx, states)
			return nil
		})
		go func() {
			<-ctx.Done()
			t.Quit()
		}()

		// systray needs the main goroutine.
		t.Run()
		stop()
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logging.Info("shutting down")
	return err
}

// controls lets the monitor persist policy changes.
type controls struct {
	*engine.Engine
	prefs *app.Preferences
}

func (c controls) UsePolicy(name string) error {
	return c.prefs.SetPolicy(name)
}

// newBackend picks MIDI when an output port exists.
func newBackend(cfg *config.Config) audio.Backend {
	if !cfg.MIDI.Enabled {
		logging.Info("MIDI disabled, logging audio commands")
		return audio.LogBackend{}
	}
	if len(midi.GetOutPorts()) == 0 {
		logging.Warn("no MIDI output ports, logging audio commands")
		return audio.LogBackend{}
	}
	return audio.NewMIDIBackend(cfg.MIDIBackendConfig(nil))
}

func defaultSamples(cfg *config.Config) []store.Sample {
	samples := make([]store.Sample, 0, len(cfg.Samples))
	for _, s := range cfg.Samples {
		samples = append(samples, store.Sample{Name: s.Name, Note: s.Note, Quadrant: s.Quadrant})
	}
	return samples
}

// findWebDir checks the configured directory relative to the working
// directory and the executable, then the data directory.
func findWebDir(cfg *config.Config) string {
	dir := cfg.Server.StaticDir
	if dir == "" {
		return ""
	}
	candidates := []string{dir}
	if !filepath.IsAbs(dir) {
		if exe, err := os.Executable(); err == nil {
			candidates = append(candidates, filepath.Join(filepath.Dir(exe), dir))
		}
		candidates = append(candidates, filepath.Join(cfg.DataDir, dir))
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func browseAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		logging.Warn("open browser", "url", url, "err", err)
		return
	}
	go cmd.Wait()
}
