// Package observer streams simulation output to websocket clients and forwards
// their commands to the driver.
package observer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pthm-cable/evonomics/game"
	"github.com/pthm-cable/evonomics/market"
)

const (
	writeWait       = 5 * time.Second
	defaultHistory  = 100
	maxHistoryLimit = 10000
)

// Commander accepts driver commands without blocking.
type Commander interface {
	Send(game.Command) bool
}

// HistorySource serves recent market rounds.
type HistorySource interface {
	Recent(ctx context.Context, limit int) ([]market.Stats, error)
}

type frame struct {
	kind int // websocket.TextMessage or websocket.BinaryMessage
	data []byte
}

type client struct {
	id      string
	out     chan frame
	dropped atomic.Uint64
}

// offer queues f without blocking and counts the drop when the client lags.
func (c *client) offer(f frame) {
	select {
	case c.out <- f:
	default:
		c.dropped.Add(1)
	}
}

// Server is the websocket bridge. One Pump goroutine fans driver outputs out
// to every connected client.
type Server struct {
	cmds         Commander
	history      HistorySource
	clientBuffer int

	upgrader websocket.Upgrader
	schema   *jsonschema.Schema
	enc      *zstd.Encoder

	mu      sync.Mutex
	clients map[string]*client
}

// Options configures a Server.
type Options struct {
	ClientBuffer int // frames queued per client before dropping

	// AllowedOrigins lists the Origin values accepted on /ws besides the
	// server's own host. "*" accepts any origin.
	AllowedOrigins []string
}

// NewServer creates a bridge. history may be nil, in which case /history
// answers 404.
func NewServer(cmds Commander, history HistorySource, opts Options) (*Server, error) {
	schema, err := compileCommandSchema()
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	return &Server{
		cmds:         cmds,
		history:      history,
		clientBuffer: max(opts.ClientBuffer, 1),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     checkOrigin(opts.AllowedOrigins),
		},
		schema:  schema,
		enc:     enc,
		clients: make(map[string]*client),
	}, nil
}

// checkOrigin accepts requests without an Origin header, same-host origins and
// the listed ones.
func checkOrigin(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(o, "/"))] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] {
			return true
		}
		if set[strings.ToLower(origin)] {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}

// Handler routes /ws, /history and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain")
		_, _ = rw.Write([]byte("ok\n"))
	})
	return mux
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Pump broadcasts driver outputs until the channel closes or ctx is done.
func (s *Server) Pump(ctx context.Context, outputs <-chan game.Output) {
	for {
		select {
		case <-ctx.Done():
			return
		case o, ok := <-outputs:
			if !ok {
				return
			}
			f, err := s.encode(o)
			if err != nil {
				slog.Error("encoding output", "error", err)
				continue
			}
			s.broadcast(f)
		}
	}
}

func (s *Server) encode(o game.Output) (frame, error) {
	switch o := o.(type) {
	case game.MarketOutput:
		b, err := json.Marshal(marketFrame{Type: "market", Stats: o.Stats})
		return frame{websocket.TextMessage, b}, err
	case game.ViewOutput:
		b, err := json.Marshal(newViewFrame(o.View))
		if err != nil {
			return frame{}, err
		}
		return frame{websocket.BinaryMessage, s.enc.EncodeAll(b, nil)}, nil
	}
	return frame{}, errors.New("unknown output")
}

func (s *Server) broadcast(f frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		c.offer(f)
	}
}

func (s *Server) join() *client {
	c := &client{id: uuid.NewString(), out: make(chan frame, s.clientBuffer)}
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	return c
}

func (s *Server) leave(c *client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	if n := c.dropped.Load(); n > 0 {
		slog.Info("observer left", "session", c.id, "dropped_frames", n)
	}
}

func (s *Server) handleWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := s.join()
	defer s.leave(c)
	slog.Debug("observer joined", "session", c.id, "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	hello, _ := json.Marshal(helloFrame{Type: "hello", Session: c.id})
	c.offer(frame{websocket.TextMessage, hello})

	// Writer goroutine.
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for {
			select {
			case <-ctx.Done():
				return
			case f := <-c.out:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(f.kind, f.data); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	// Reader loop: commands.
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		cmd, err := parseCommand(s.schema, msg)
		if err != nil {
			s.reject(c, err.Error())
			continue
		}
		if !s.cmds.Send(cmd) {
			// Drop under load; the client may resend.
			s.reject(c, "busy")
		}
	}

	cancel()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

	// Best-effort wait for the writer to stop so it doesn't outlive conn.
	select {
	case <-writeDone:
	case <-time.After(500 * time.Millisecond):
	}
}

func (s *Server) reject(c *client, reason string) {
	b, _ := json.Marshal(errorFrame{Type: "error", Error: reason})
	c.offer(frame{websocket.TextMessage, b})
}

func (s *Server) handleHistory(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.history == nil {
		http.Error(rw, "history disabled", http.StatusNotFound)
		return
	}

	limit := defaultHistory
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryLimit {
			http.Error(rw, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	rounds, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("reading history", "error", err)
		http.Error(rw, "history unavailable", http.StatusServiceUnavailable)
		return
	}
	if rounds == nil {
		rounds = []market.Stats{}
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(rounds)
}

// Close releases the frame encoder.
func (s *Server) Close() error {
	return s.enc.Close()
}
