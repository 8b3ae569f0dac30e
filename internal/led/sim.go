package led

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Sim is a headless driver. It keeps the last frame and logs a compact
// summary of each one at debug level.
type Sim struct {
	mu     sync.Mutex
	count  int
	frames uint64
	last   []byte
	closed bool
}

func NewSim(count int) *Sim {
	return &Sim{count: count, last: make([]byte, count*3)}
}

func (s *Sim) Write(rgb []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("sim closed")
	}
	if len(rgb) != s.count*3 {
		return fmt.Errorf("rgb length %d does not match count %d", len(rgb), s.count)
	}
	copy(s.last, rgb)
	s.frames++

	if e := log.Debug(); e.Enabled() {
		var r, g, b, lit int
		for i := 0; i+2 < len(rgb); i += 3 {
			r += int(rgb[i])
			g += int(rgb[i+1])
			b += int(rgb[i+2])
			if rgb[i]|rgb[i+1]|rgb[i+2] != 0 {
				lit++
			}
		}
		n := max(1, s.count)
		e.Uint64("frame", s.frames).
			Int("lit", lit).
			Str("avg", fmt.Sprintf("(%d,%d,%d)", r/n, g/n, b/n)).
			Msg("sim frame")
	}
	return nil
}

// Frames is the number of frames written so far.
func (s *Sim) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Last returns a copy of the most recent frame.
func (s *Sim) Last() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.last...)
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.last {
		s.last[i] = 0
	}
	s.closed = true
	return nil
}
