package server

import (
	"fmt"
	"net/http"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handsynth/internal/engine"
)

const defaultStreamFPS = 15

// StreamHandler serves the mirrored camera view with keypoint overlays as
// MJPEG.
type StreamHandler struct {
	pipeline Pipeline
	interval time.Duration
}

// NewStreamHandler creates a handler emitting at most fps frames a second.
func NewStreamHandler(p Pipeline, fps int) *StreamHandler {
	if fps <= 0 {
		fps = defaultStreamFPS
	}
	return &StreamHandler{pipeline: p, interval: time.Second / time.Duration(fps)}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	states, unsubscribe := h.pipeline.Subscribe()
	defer unsubscribe()

	var state engine.State
	mirrored := gocv.NewMat()
	defer mirrored.Close()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case s, ok := <-states:
			if !ok {
				return
			}
			state = s
			continue
		case <-ticker.C:
		}

		frame, ok := h.pipeline.Snapshot()
		if !ok {
			frame.Close()
			continue
		}
		Mirror(frame, &mirrored)
		frame.Close()
		DrawOverlay(&mirrored, state)

		buf, err := gocv.IMEncode(gocv.JPEGFileExt, mirrored)
		if err != nil {
			continue
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", buf.Len())
		w.Write(buf.GetBytes())
		fmt.Fprintf(w, "\r\n")
		buf.Close()

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
