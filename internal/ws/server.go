package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	diag "github.com/coreman2200/fbmatrix/internal/diagnostics"
)

const writeWait = 200 * time.Millisecond

// Info describes the display for preview clients.
type Info struct {
	Mapper        string `json:"mapper,omitempty"`
	VisibleWidth  int    `json:"visible_width"`
	VisibleHeight int    `json:"visible_height"`
	MatrixWidth   int    `json:"matrix_width"`
	MatrixHeight  int    `json:"matrix_height"`
	PanelWidth    int    `json:"panel_width"`
	PanelHeight   int    `json:"panel_height"`
	ChainLength   int    `json:"chain_length"`
	ParallelCount int    `json:"parallel_count"`
	Serpentine    bool   `json:"serpentine"`
	Driver        string `json:"driver"`
}

// Controller is the part of the refresh loop the control socket drives.
type Controller interface {
	SetPattern(name string) error
	Pattern() string
	SetBrightness(v float64)
	Brightness() float64
}

type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Server streams frames and diagnostics to preview clients.
type Server struct {
	mu          sync.RWMutex
	id          uuid.UUID
	info        Info
	ctl         Controller
	frameID     uint64
	startTime   time.Time
	clients     map[*client]bool
	diagClients map[*client]bool
	upgrader    websocket.Upgrader
}

func NewServer(info Info, ctl Controller) *Server {
	return &Server{
		id:          uuid.New(),
		info:        info,
		ctl:         ctl,
		startTime:   time.Now(),
		clients:     map[*client]bool{},
		diagClients: map[*client]bool{},
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// ID identifies this process to clients that reconnect.
func (s *Server) ID() uuid.UUID { return s.id }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleFramesWS)
	mux.HandleFunc("/diag", s.HandleDiagWS)
	mux.HandleFunc("/control", s.HandleControlWS)
	mux.HandleFunc("/health", s.HandleHealth)
	mux.HandleFunc("/topology", s.HandleTopology)
	return withCORS(mux)
}

func (s *Server) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	c, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	// topology goes out before the client can see any frame
	if err := c.write(s.topologyMessage()); err != nil {
		c.conn.Close()
		return
	}
	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()
	go s.drain(c, s.clients)
}

func (s *Server) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	c, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	s.diagClients[c] = true
	s.mu.Unlock()
	go s.drain(c, s.diagClients)
}

type controlMsg struct {
	Pattern    *string  `json:"pattern,omitempty"`
	Brightness *float64 `json:"brightness,omitempty"`
}

type controlReply struct {
	Pattern    string  `json:"pattern"`
	Brightness float64 `json:"brightness"`
	Error      string  `json:"error,omitempty"`
}

func (s *Server) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	c, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	defer c.conn.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg controlMsg
		var reply controlReply
		if err := json.Unmarshal(data, &msg); err != nil {
			reply.Error = err.Error()
		} else if err := s.applyControl(msg); err != nil {
			reply.Error = err.Error()
		}
		if s.ctl != nil {
			reply.Pattern = s.ctl.Pattern()
			reply.Brightness = s.ctl.Brightness()
		}
		b, _ := json.Marshal(reply)
		if err := c.write(b); err != nil {
			return
		}
	}
}

func (s *Server) applyControl(msg controlMsg) error {
	if s.ctl == nil {
		return nil
	}
	if msg.Brightness != nil {
		s.ctl.SetBrightness(*msg.Brightness)
	}
	if msg.Pattern != nil {
		if err := s.ctl.SetPattern(*msg.Pattern); err != nil {
			s.PushDiag(diag.Diagnostic{
				Severity: diag.Warn, Code: diag.PatternUnknown, Summary: "Unknown pattern name",
				Evidence: map[string]any{"name": *msg.Pattern},
			})
			return err
		}
		s.PushDiag(diag.Diagnostic{Severity: diag.Info, Code: diag.PatternRunning, Summary: "Running pattern", Detail: *msg.Pattern})
	}
	return nil
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	resp := map[string]any{
		"instance": s.id.String(),
		"frame_id": s.frameID,
		"uptime_s": time.Since(s.startTime).Seconds(),
		"count":    s.info.MatrixWidth * s.info.MatrixHeight,
		"clients":  len(s.clients),
		"driver":   s.info.Driver,
	}
	s.mu.RUnlock()
	if s.ctl != nil {
		resp["pattern"] = s.ctl.Pattern()
		resp["brightness"] = s.ctl.Brightness()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) HandleTopology(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(s.topologyMessage())
}

type frame struct {
	T       int64  `json:"t"`
	FrameID uint64 `json:"frame_id"`
	Width   int    `json:"w"`
	Height  int    `json:"h"`
	RGB     []byte `json:"rgb"`
}

// PublishFrame sends the physical buffer to every preview client. rgb is
// encoded before PublishFrame returns, so the caller may reuse it.
func (s *Server) PublishFrame(rgb []byte) {
	s.mu.Lock()
	s.frameID++
	f := frame{T: time.Now().UnixNano(), FrameID: s.frameID, Width: s.info.MatrixWidth, Height: s.info.MatrixHeight, RGB: rgb}
	targets := s.snapshot(s.clients)
	s.mu.Unlock()
	if len(targets) == 0 {
		return
	}
	b, _ := json.Marshal(f)
	for _, c := range targets {
		if err := c.write(b); err != nil {
			log.Debug().Err(err).Msg("write frame")
		}
	}
}

func (s *Server) PushDiag(d diag.Diagnostic) {
	s.mu.RLock()
	targets := s.snapshot(s.diagClients)
	s.mu.RUnlock()
	b, _ := json.Marshal(d)
	for _, c := range targets {
		_ = c.write(b)
	}
}

func (s *Server) topologyMessage() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, _ := json.Marshal(struct {
		Instance string `json:"instance"`
		Info
	}{s.id.String(), s.info})
	return b
}

func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) (*client, bool) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("websocket upgrade")
		return nil, false
	}
	return &client{conn: conn}, true
}

// drain reads until the peer goes away, then unregisters it.
func (s *Server) drain(c *client, set map[*client]bool) {
	defer func() {
		s.mu.Lock()
		delete(set, c)
		s.mu.Unlock()
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) snapshot(set map[*client]bool) []*client {
	out := make([]*client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}
