package detector

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"gocv.io/x/gocv"

	"github.com/ayusman/handsynth/internal/logging"
)

const (
	serviceScript = "mediapipe_service.py"
	// idleShutdown stops the Python service after this long without frames.
	idleShutdown = 30 * time.Second
)

// MediaPipeDetector runs MediaPipe Hands in a Python subprocess. The
// process starts on the first frame and stops after idleShutdown, so an
// idle scene costs nothing.
type MediaPipeDetector struct {
	config Config
	script string
	python string
	logger *log.Logger

	mu   sync.Mutex
	svc  conn
	idle *time.Timer
	// gen identifies the live idle timer; a timer that fired before being
	// replaced sees a newer gen and does nothing.
	gen uint64
}

// conn is a running detection service.
type conn interface {
	roundTrip(jpeg []byte) ([]serviceHand, error)
	stop() error
}

// NewMediaPipeDetector fails when the service script cannot be found.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	script := findInstalled(filepath.Join("scripts", serviceScript))
	if script == "" {
		return nil, fmt.Errorf("%s not found", serviceScript)
	}
	python := findInstalled(filepath.Join("venv", "bin", "python"))
	if python == "" {
		python = "python3"
	}
	return &MediaPipeDetector{
		config: config,
		script: script,
		python: python,
		logger: logging.WithPrefix("mediapipe"),
	}, nil
}

func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]Hand, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.svc == nil {
		svc, err := startService(d.python, d.script, d.config, d.logger)
		if err != nil {
			return nil, err
		}
		d.svc = svc
		d.logger.Info("service started", "python", d.python)
	}

	found, err := d.svc.roundTrip(buf.GetBytes())
	if err != nil {
		// Restart on the next frame rather than reuse a broken pipe.
		d.stopLocked()
		return nil, err
	}
	d.armIdle()

	return scaleHands(found, d.config, float64(frame.Cols()), float64(frame.Rows())), nil
}

// Close stops the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

func (d *MediaPipeDetector) stopLocked() error {
	d.gen++
	if d.idle != nil {
		d.idle.Stop()
		d.idle = nil
	}
	if d.svc == nil {
		return nil
	}
	err := d.svc.stop()
	d.svc = nil
	return err
}

func (d *MediaPipeDetector) armIdle() {
	if d.idle != nil {
		d.idle.Stop()
	}
	d.gen++
	gen := d.gen
	d.idle = time.AfterFunc(idleShutdown, func() { d.idleExpired(gen) })
}

func (d *MediaPipeDetector) idleExpired(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		return
	}
	d.idle = nil
	if d.svc == nil {
		return
	}
	d.logger.Debug("stopping idle service")
	if err := d.svc.stop(); err != nil {
		d.logger.Debug("service exit", "err", err)
	}
	d.svc = nil
}

// scaleHands filters by config and converts normalized landmarks to pixels.
func scaleHands(found []serviceHand, cfg Config, width, height float64) []Hand {
	hands := make([]Hand, 0, len(found))
	for _, h := range found {
		if !cfg.Keep(h.Score, len(hands)) {
			continue
		}
		hands = append(hands, h.toHand(width, height))
	}
	return hands
}

// findInstalled looks for rel under the working directory and its parent,
// next to the executable, then under ~/.handsynth.
func findInstalled(rel string) string {
	candidates := []string{rel, filepath.Join("..", rel)}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), rel))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".handsynth", rel))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return p
	}
	return ""
}
