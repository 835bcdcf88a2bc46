package app

import (
	"context"
	"time"

	"github.com/ayusman/handsynth/internal/engine"
	"github.com/ayusman/handsynth/internal/gesture"
)

// detectLoop reads frames and publishes detections to the mailbox.
//
// The loop starts at IdleFPS. Motion switches it to DetectFPS and
// IdleAfter without motion switches it back. While idle the detector is
// not called and the mailbox keeps the last detection.
func (a *App) detectLoop(ctx context.Context) error {
	fps := a.cfg.IdleFPS
	a.camera.SetFPS(fps)
	ticker := time.NewTicker(interval(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			active := a.detectOnce(now)

			want := a.cfg.IdleFPS
			if active {
				want = a.cfg.DetectFPS
			}
			if want != fps {
				fps = want
				a.camera.SetFPS(fps)
				ticker.Reset(interval(fps))
				a.logger.Debug("detection rate changed", "fps", fps, "active", active)
			}
		}
	}
}

// detectOnce captures one frame, runs detection if the scene is active
// and reports the activity state.
func (a *App) detectOnce(now time.Time) bool {
	frame, err := a.camera.ReadFrame()
	if err != nil {
		if a.warnings.Allow() {
			a.logger.Warn("read frame", "err", err)
		}
		return a.activity.Active()
	}

	active, _ := a.activity.Observe(frame, now)
	d := a.Detector()
	if !active || d == nil {
		a.keep(frame)
		return active
	}

	vp := gesture.Viewport{Width: frame.Cols(), Height: frame.Rows()}
	hands, err := d.Detect(frame)
	a.keep(frame)
	if err != nil {
		if a.warnings.Allow() {
			a.logger.Warn("detect hands", "err", err)
		}
		return active
	}

	a.mailbox.Put(gesture.NewFrame(hands, vp))
	return active
}

// renderLoop steps the engine against the latest detection at RenderFPS.
func (a *App) renderLoop(ctx context.Context) error {
	ticker := time.NewTicker(interval(a.cfg.RenderFPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.render()
		}
	}
}

func (a *App) render() engine.State {
	f, _ := a.mailbox.Latest()
	s := a.engine.Step(f)
	a.publish(s)
	return s
}

func interval(fps int) time.Duration {
	if fps <= 0 {
		fps = 1
	}
	return time.Second / time.Duration(fps)
}
