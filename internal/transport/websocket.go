package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	applog "spectrograph/internal/log"

	"github.com/gorilla/websocket"
)

const (
	// SpectrumPath is the websocket endpoint.
	SpectrumPath = "/spectrum"

	broadcastQueue = 16
	writeTimeout   = time.Second
)

// WebSocket broadcasts snapshots as JSON to every connected client. Sends
// never block the render loop: when the queue is full, or when called
// faster than the minimum interval, snapshots are dropped.
type WebSocket struct {
	addr        string
	minInterval time.Duration
	upgrader    websocket.Upgrader

	clients   map[*websocket.Conn]struct{}
	clientsMu sync.Mutex

	broadcast chan Snapshot
	lastSend  time.Time
	dropped   uint64

	server    *http.Server
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ Transport = (*WebSocket)(nil)

// NewWebSocket creates a broadcaster for addr. minInterval rate-limits
// sends; zero disables the limit. Call Start to begin listening.
func NewWebSocket(addr string, minInterval time.Duration) *WebSocket {
	ws := &WebSocket{
		addr:        addr,
		minInterval: minInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // Visualizer pages are served from anywhere.
			},
		},
		clients:   make(map[*websocket.Conn]struct{}),
		broadcast: make(chan Snapshot, broadcastQueue),
		done:      make(chan struct{}),
	}

	ws.wg.Add(1)
	go ws.handleBroadcasts()
	return ws
}

// Handler returns the HTTP handler serving SpectrumPath.
func (ws *WebSocket) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(SpectrumPath, ws.handleWebSocket)
	return mux
}

// Start binds the listen address and serves in the background. A bind
// failure is returned immediately.
func (ws *WebSocket) Start() error {
	ln, err := net.Listen("tcp", ws.addr)
	if err != nil {
		return fmt.Errorf("websocket: failed to listen on %s: %w", ws.addr, err)
	}
	ws.server = &http.Server{
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		applog.Infof("websocket: serving ws://%s%s", ln.Addr(), SpectrumPath)
		if err := ws.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("websocket: server error: %v", err)
		}
	}()
	return nil
}

// handleWebSocket upgrades the connection and registers the client until it
// disconnects.
func (ws *WebSocket) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("websocket: upgrade error: %v", err)
		return
	}

	ws.clientsMu.Lock()
	ws.clients[conn] = struct{}{}
	n := len(ws.clients)
	ws.clientsMu.Unlock()
	applog.Infof("websocket: client connected, total: %d", n)

	// Clients only listen; reading surfaces the disconnect.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				ws.drop(conn)
				return
			}
		}
	}()
}

func (ws *WebSocket) drop(conn *websocket.Conn) {
	ws.clientsMu.Lock()
	_, ok := ws.clients[conn]
	delete(ws.clients, conn)
	n := len(ws.clients)
	ws.clientsMu.Unlock()

	if ok {
		conn.Close()
		applog.Infof("websocket: client disconnected, total: %d", n)
	}
}

// Clients returns the number of connected clients.
func (ws *WebSocket) Clients() int {
	ws.clientsMu.Lock()
	defer ws.clientsMu.Unlock()
	return len(ws.clients)
}

func (ws *WebSocket) handleBroadcasts() {
	defer ws.wg.Done()
	for {
		select {
		case <-ws.done:
			return
		case snap := <-ws.broadcast:
			ws.clientsMu.Lock()
			conns := make([]*websocket.Conn, 0, len(ws.clients))
			for c := range ws.clients {
				conns = append(conns, c)
			}
			ws.clientsMu.Unlock()

			for _, c := range conns {
				_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := c.WriteJSON(snap); err != nil {
					applog.Warnf("websocket: error sending to client: %v", err)
					ws.drop(c)
				}
			}
		}
	}
}

// Send queues s for broadcast. It never blocks.
func (ws *WebSocket) Send(s Snapshot) error {
	if ws.minInterval > 0 {
		if s.Time.Sub(ws.lastSend) < ws.minInterval {
			return nil
		}
		ws.lastSend = s.Time
	}

	select {
	case <-ws.done:
		return errors.New("websocket: transport closed")
	default:
	}

	select {
	case ws.broadcast <- s:
	default:
		ws.dropped++
		if ws.dropped == 1 || ws.dropped%100 == 0 {
			applog.Debugf("websocket: broadcast queue full, %d snapshots dropped", ws.dropped)
		}
	}
	return nil
}

// Close stops the server and disconnects every client. It is safe to call
// more than once.
func (ws *WebSocket) Close() error {
	var err error
	ws.closeOnce.Do(func() {
		close(ws.done)
		ws.wg.Wait()

		if ws.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			err = ws.server.Shutdown(ctx)
		}

		ws.clientsMu.Lock()
		for c := range ws.clients {
			_ = c.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeTimeout))
			c.Close()
		}
		clear(ws.clients)
		ws.clientsMu.Unlock()
	})
	return err
}
