package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	diag "github.com/coreman2200/fbmatrix/internal/diagnostics"
)

type fakeController struct {
	mu         sync.Mutex
	pattern    string
	brightness float64
}

func (f *fakeController) SetPattern(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == "bogus" {
		return errors.New("unknown pattern")
	}
	f.pattern = name
	return nil
}

func (f *fakeController) Pattern() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pattern
}

func (f *fakeController) SetBrightness(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.brightness = v
}

func (f *fakeController) Brightness() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.brightness
}

var testInfo = Info{
	Mapper:        "PanelGrid",
	VisibleWidth:  4,
	VisibleHeight: 2,
	MatrixWidth:   4,
	MatrixHeight:  2,
	PanelWidth:    2,
	PanelHeight:   2,
	ChainLength:   2,
	ParallelCount: 1,
	Driver:        "sim",
}

func start(t *testing.T) (*Server, *fakeController, *httptest.Server) {
	t.Helper()
	ctl := &fakeController{pattern: "rainbow", brightness: 0.5}
	s := NewServer(testInfo, ctl)
	hs := httptest.NewServer(s.Handler())
	t.Cleanup(hs.Close)
	return s, ctl, hs
}

func dial(t *testing.T, hs *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(hs.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func TestFramesSocket(t *testing.T) {
	s, _, hs := start(t)
	conn := dial(t, hs, "/ws")

	var top struct {
		Instance string `json:"instance"`
		Info
	}
	require.NoError(t, conn.ReadJSON(&top))
	assert.Equal(t, s.ID().String(), top.Instance)
	assert.Equal(t, testInfo, top.Info)

	require.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.clients) == 1
	}, time.Second, 10*time.Millisecond)

	rgb := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24}
	s.PublishFrame(rgb)

	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, uint64(1), f.FrameID)
	assert.Equal(t, 4, f.Width)
	assert.Equal(t, 2, f.Height)
	assert.Equal(t, rgb, f.RGB)
}

func TestTopologyPrecedesFrames(t *testing.T) {
	s, _, hs := start(t)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		rgb := make([]byte, 4*2*3)
		for {
			select {
			case <-stop:
				return
			default:
				s.PublishFrame(rgb)
			}
		}
	}()
	defer func() {
		close(stop)
		<-done
	}()

	for i := 0; i < 5; i++ {
		conn := dial(t, hs, "/ws")
		var first map[string]any
		require.NoError(t, conn.ReadJSON(&first))
		assert.Contains(t, first, "instance")
		assert.NotContains(t, first, "frame_id")
		conn.Close()
	}
}

func TestControlSocket(t *testing.T) {
	_, ctl, hs := start(t)
	conn := dial(t, hs, "/control")

	require.NoError(t, conn.WriteJSON(map[string]any{"pattern": "panel_sweep", "brightness": 0.25}))
	var reply controlReply
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Empty(t, reply.Error)
	assert.Equal(t, "panel_sweep", reply.Pattern)
	assert.Equal(t, 0.25, reply.Brightness)
	assert.Equal(t, "panel_sweep", ctl.Pattern())

	require.NoError(t, conn.WriteJSON(map[string]any{"pattern": "bogus"}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.NotEmpty(t, reply.Error)
	assert.Equal(t, "panel_sweep", reply.Pattern)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.NotEmpty(t, reply.Error)
}

func TestDiagSocket(t *testing.T) {
	s, _, hs := start(t)
	conn := dial(t, hs, "/diag")

	require.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.diagClients) == 1
	}, time.Second, 10*time.Millisecond)

	s.PushDiag(diag.Diagnostic{Severity: diag.Info, Code: diag.PatternDone, Summary: "Pattern complete"})

	var d diag.Diagnostic
	require.NoError(t, conn.ReadJSON(&d))
	assert.Equal(t, diag.PatternDone, d.Code)
	assert.Equal(t, diag.Info, d.Severity)
}

func TestHealthAndTopology(t *testing.T) {
	s, _, hs := start(t)
	s.PublishFrame(make([]byte, 24))

	resp, err := http.Get(hs.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var h map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, s.ID().String(), h["instance"])
	assert.Equal(t, float64(1), h["frame_id"])
	assert.Equal(t, float64(8), h["count"])
	assert.Equal(t, "rainbow", h["pattern"])
	assert.Equal(t, 0.5, h["brightness"])
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp2, err := http.Get(hs.URL + "/topology")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var top map[string]any
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&top))
	assert.Equal(t, "PanelGrid", top["mapper"])
	assert.Equal(t, float64(2), top["chain_length"])
}

func TestUpgradeRejectsPlainHTTP(t *testing.T) {
	_, _, hs := start(t)
	resp, err := http.Get(hs.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
