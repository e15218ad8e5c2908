package observer

import (
	"context"
	"encoding/json"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/evonomics/game"
	"github.com/pthm-cable/evonomics/market"
)

type fakeCommander struct {
	mu   sync.Mutex
	cmds []game.Command
	full bool
}

func (f *fakeCommander) Send(c game.Command) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.cmds = append(f.cmds, c)
	return true
}

func (f *fakeCommander) received() []game.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]game.Command(nil), f.cmds...)
}

type fakeHistory struct {
	rounds []market.Stats
	limit  int
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]market.Stats, error) {
	f.limit = limit
	return f.rounds, nil
}

func startServer(t *testing.T, cmds Commander, history HistorySource) (*Server, *httptest.Server) {
	t.Helper()
	s, err := NewServer(cmds, history, Options{ClientBuffer: 8})
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var hello helloFrame
	readJSON(t, conn, &hello)
	require.Equal(t, "hello", hello.Type)
	require.NotEmpty(t, hello.Session)
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, kind)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestParseCommand(t *testing.T) {
	schema, err := compileCommandSchema()
	require.NoError(t, err)

	tests := []struct {
		raw  string
		want game.Command
		ok   bool
	}{
		{`{"type":"tick","count":3}`, game.TickCommand{Count: 3}, true},
		{`{"type":"set","param":"mutation_chance","value":0.25}`, game.SetParam{Param: game.ParamMutationChance, Value: 0.25}, true},
		{`{"type":"set","param":"cornucopia_bounty","value":12}`, game.SetParam{Param: game.ParamCornucopiaBounty, Value: 12}, true},
		// range checks belong to the driver
		{`{"type":"set","param":"spawn_chance","value":7}`, game.SetParam{Param: game.ParamSpawnChance, Value: 7}, true},
		{`{"type":"tick","count":0}`, nil, false},
		{`{"type":"tick"}`, nil, false},
		{`{"type":"tick","count":1.5}`, nil, false},
		{`{"type":"set","param":"gravity","value":1}`, nil, false},
		{`{"type":"set","param":"spawn_chance","value":"high"}`, nil, false},
		{`{"type":"quit"}`, nil, false},
		{`not json`, nil, false},
	}
	for _, tt := range tests {
		got, err := parseCommand(schema, []byte(tt.raw))
		if !tt.ok {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestServerForwardsCommands(t *testing.T) {
	cmds := &fakeCommander{}
	_, ts := startServer(t, cmds, nil)
	conn := dial(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)))
	var rej errorFrame
	readJSON(t, conn, &rej)
	assert.Equal(t, "error", rej.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"tick","count":2}`)))
	require.Eventually(t, func() bool { return len(cmds.received()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, game.TickCommand{Count: 2}, cmds.received()[0])
}

func TestServerReportsBusyDriver(t *testing.T) {
	cmds := &fakeCommander{full: true}
	_, ts := startServer(t, cmds, nil)
	conn := dial(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"tick","count":1}`)))
	var rej errorFrame
	readJSON(t, conn, &rej)
	assert.Equal(t, "busy", rej.Error)
}

func TestServerBroadcastsOutputs(t *testing.T) {
	s, ts := startServer(t, &fakeCommander{}, nil)
	conn := dial(t, ts)
	require.Eventually(t, func() bool { return s.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)

	outputs := make(chan game.Output, 2)
	outputs <- game.MarketOutput{Stats: market.Stats{Tick: 4, LastBid: -1, LastAsk: 2, Reserve: 50}}
	outputs <- game.ViewOutput{View: game.View{
		Tick:        4,
		Width:       2,
		Height:      1,
		Colors:      []color.RGBA{{R: 1, G: 2, B: 3, A: 255}, {A: 255}},
		Generations: []uint32{5, 0},
		Agents:      1,
		Ticks:       4,
	}}
	close(outputs)
	s.Pump(context.Background(), outputs)

	var mf marketFrame
	readJSON(t, conn, &mf)
	assert.Equal(t, "market", mf.Type)
	assert.Equal(t, uint64(4), mf.Stats.Tick)
	assert.Equal(t, -1, mf.Stats.LastBid)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, kind)

	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	raw, err := dec.DecodeAll(data, nil)
	require.NoError(t, err)

	var vf viewFrame
	require.NoError(t, json.Unmarshal(raw, &vf))
	assert.Equal(t, "view", vf.Type)
	assert.Equal(t, []byte{1, 2, 3, 255, 0, 0, 0, 255}, vf.RGBA)
	assert.Equal(t, []uint32{5, 0}, vf.Generations)
	assert.Equal(t, 1, vf.Agents)
}

func TestClientOfferDropsWhenFull(t *testing.T) {
	c := &client{out: make(chan frame, 1)}
	c.offer(frame{})
	c.offer(frame{})
	c.offer(frame{})
	assert.Len(t, c.out, 1)
	assert.Equal(t, uint64(2), c.dropped.Load())
}

func TestHistoryEndpoint(t *testing.T) {
	h := &fakeHistory{rounds: []market.Stats{{Tick: 9, LastBid: 3, LastAsk: 4}}}
	_, ts := startServer(t, &fakeCommander{}, h)

	resp, err := http.Get(ts.URL + "/history?limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got []market.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, h.rounds, got)
	assert.Equal(t, 5, h.limit)

	bad, err := http.Get(ts.URL + "/history?limit=-2")
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestHistoryDisabledAndHealth(t *testing.T) {
	_, ts := startServer(t, &fakeCommander{}, nil)

	resp, err := http.Get(ts.URL + "/history")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin header", nil, "", true},
		{"same host", nil, "http://sim.local:8080", true},
		{"foreign host", nil, "http://evil.example", false},
		{"listed", []string{"http://viewer.example/"}, "http://viewer.example", true},
		{"listed case-insensitive", []string{"HTTP://Viewer.example"}, "http://viewer.example", true},
		{"wildcard", []string{"*"}, "http://evil.example", true},
		{"garbage", nil, "://", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://sim.local:8080/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := checkOrigin(tt.allowed)(r); got != tt.want {
				t.Errorf("checkOrigin(%v) for %q = %v, want %v", tt.allowed, tt.origin, got, tt.want)
			}
		})
	}
}

func TestRejectsForeignOrigin(t *testing.T) {
	_, ts := startServer(t, &fakeCommander{}, nil)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
