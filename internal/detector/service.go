package detector

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/charmbracelet/log"
)

// service is one running MediaPipe process. Each request is a 4-byte
// big-endian length followed by a JPEG; each reply is a JSON line with
// landmarks normalized to [0,1].
type service struct {
	cmd *exec.Cmd
	in  io.WriteCloser
	out *bufio.Reader
}

func startService(python, script string, cfg Config, logger *log.Logger) (*service, error) {
	args := []string{script}
	if cfg.MaxHands > 0 {
		args = append(args, "--max-hands", strconv.Itoa(cfg.MaxHands))
	}
	args = append(args, "--min-confidence", strconv.FormatFloat(cfg.MinConfidence, 'f', -1, 64))

	cmd := exec.Command(python, args...)
	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = &lineLogger{logger: logger}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mediapipe service: %w", err)
	}
	return &service{cmd: cmd, in: in, out: bufio.NewReader(out)}, nil
}

func (s *service) roundTrip(jpeg []byte) ([]serviceHand, error) {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(jpeg)))
	if _, err := s.in.Write(header[:]); err != nil {
		return nil, fmt.Errorf("write frame header: %w", err)
	}
	if _, err := s.in.Write(jpeg); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}

	line, err := s.out.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return parseReply(line)
}

// stop closes stdin, which the service treats as EOF, and waits for exit.
func (s *service) stop() error {
	s.in.Close()
	return s.cmd.Wait()
}

func parseReply(line []byte) ([]serviceHand, error) {
	var reply struct {
		Hands []serviceHand `json:"hands"`
		Error string        `json:"error,omitempty"`
	}
	if err := json.Unmarshal(line, &reply); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("mediapipe: %s", reply.Error)
	}
	return reply.Hands, nil
}

type serviceHand struct {
	Points     []servicePoint `json:"points"`
	Handedness string         `json:"handedness"`
	Score      float64        `json:"score"`
}

type servicePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// toHand scales normalized landmarks to pixel coordinates.
func (h serviceHand) toHand(width, height float64) Hand {
	hand := Hand{
		Handedness: ParseHandedness(h.Handedness),
		Score:      h.Score,
	}
	for i := 0; i < NumJoints && i < len(h.Points); i++ {
		hand.Set(Joint(i), Point{X: h.Points[i].X * width, Y: h.Points[i].Y * height})
	}
	return hand
}

// lineLogger forwards the service's stderr to the log one line at a time.
type lineLogger struct {
	logger *log.Logger
	buf    bytes.Buffer
}

func (w *lineLogger) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Keep the partial line for the next write.
			w.buf.Reset()
			w.buf.WriteString(line)
			return len(p), nil
		}
		if line = line[:len(line)-1]; line != "" {
			w.logger.Debug(line)
		}
	}
}
