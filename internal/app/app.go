// Package app runs the capture, detection and render loops that drive the
// engine.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ayusman/handsynth/internal/capture"
	"github.com/ayusman/handsynth/internal/detector"
	"github.com/ayusman/handsynth/internal/engine"
	"github.com/ayusman/handsynth/internal/logging"
)

// Config holds loop timing.
type Config struct {
	// DetectFPS is the detection rate while the scene moves.
	DetectFPS int
	// IdleFPS is the detection rate after IdleAfter without motion.
	IdleFPS   int
	IdleAfter time.Duration

	// MotionThreshold is the percentage of changed pixels counted as motion.
	MotionThreshold float64

	RenderFPS int

	Detector detector.Config
}

// DefaultConfig returns the timing used by the desktop app.
func DefaultConfig() Config {
	return Config{
		DetectFPS:       15,
		IdleFPS:         5,
		IdleAfter:       2 * time.Second,
		MotionThreshold: 1,
		RenderFPS:       60,
		Detector:        detector.DefaultConfig(),
	}
}

// App owns the camera and detector and feeds the engine.
type App struct {
	cfg      Config
	camera   capture.Camera
	activity *capture.Activity
	engine   *engine.Engine
	mailbox  *Mailbox

	mu       sync.RWMutex
	detector detector.Detector

	subMu   sync.Mutex
	subs    map[int]chan engine.State
	nextSub int

	snapMu   sync.Mutex
	snapshot gocv.Mat
	hasSnap  bool

	logger   *log.Logger
	warnings *rate.Limiter
}

// New creates an App reading from cam and stepping eng.
func New(cfg Config, cam capture.Camera, eng *engine.Engine) *App {
	def := DefaultConfig()
	if cfg.DetectFPS <= 0 {
		cfg.DetectFPS = def.DetectFPS
	}
	if cfg.IdleFPS <= 0 {
		cfg.IdleFPS = def.IdleFPS
	}
	if cfg.RenderFPS <= 0 {
		cfg.RenderFPS = def.RenderFPS
	}

	a := &App{
		cfg:      cfg,
		camera:   cam,
		activity: capture.NewActivity(cfg.MotionThreshold, cfg.IdleAfter),
		engine:   eng,
		mailbox:  &Mailbox{},
		subs:     make(map[int]chan engine.State),
		snapshot: gocv.NewMat(),
		logger:   logging.WithPrefix("app"),
		warnings: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}

	// Try MediaPipe first, fall back to mock detector
	if mp, err := detector.NewMediaPipeDetector(cfg.Detector); err == nil {
		a.detector = mp
		a.logger.Info("using MediaPipe hand detection")
	} else {
		a.logger.Warn("MediaPipe not available, using mock detector", "err", err)
		a.detector = detector.NewMockDetector()
	}
	return a
}

// SetDetector replaces the hand detector.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// Detector returns the hand detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// Camera returns the frame source.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Engine returns the pipeline engine.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Mailbox returns the slot the detection loop writes to.
func (a *App) Mailbox() *Mailbox {
	return a.mailbox
}

// Run opens the camera and runs the detection and render loops until ctx
// is cancelled or a loop fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	defer func() {
		if err := a.camera.Close(); err != nil {
			a.logger.Error("close camera", "err", err)
		}
	}()

	a.logger.Info("pipeline started",
		"resolution", a.camera.Resolution(),
		"detect_fps", a.cfg.DetectFPS,
		"render_fps", a.cfg.RenderFPS,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.detectLoop(ctx) })
	g.Go(func() error { return a.renderLoop(ctx) })
	err := g.Wait()

	a.logger.Info("pipeline stopped")
	return err
}

// Subscribe returns a channel receiving every published state. A
// subscriber that falls behind misses states rather than blocking the
// render loop. Call the returned func to unsubscribe.
func (a *App) Subscribe() (<-chan engine.State, func()) {
	ch := make(chan engine.State, 1)

	a.subMu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = ch
	a.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.subMu.Lock()
			delete(a.subs, id)
			a.subMu.Unlock()
			close(ch)
		})
	}
}

func (a *App) publish(s engine.State) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for _, ch := range a.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Snapshot returns a copy of the last captured frame. The caller must
// close it.
func (a *App) Snapshot() (gocv.Mat, bool) {
	a.snapMu.Lock()
	defer a.snapMu.Unlock()
	if !a.hasSnap {
		return gocv.NewMat(), false
	}
	return a.snapshot.Clone(), true
}

// keep stores frame as the latest snapshot and closes it.
func (a *App) keep(frame *gocv.Mat) {
	a.snapMu.Lock()
	frame.CopyTo(&a.snapshot)
	a.hasSnap = true
	a.snapMu.Unlock()
	frame.Close()
}

// Close releases the detector and frame buffers.
func (a *App) Close() error {
	a.activity.Close()

	a.snapMu.Lock()
	a.snapshot.Close()
	a.hasSnap = false
	a.snapMu.Unlock()

	if d := a.Detector(); d != nil {
		if err := d.Close(); err != nil {
			return fmt.Errorf("close detector: %w", err)
		}
	}
	return nil
}
