// Package bridge carries the host protocol over a WebSocket so a plugin
// shim running inside the multiplexer can connect to the daemon.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/bborn/autolock/internal/host"
	"github.com/bborn/autolock/internal/reconcile"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// Path is the endpoint the plugin shim connects to.
const Path = "/plugin"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	readLimit  = 4 * 1024 * 1024
)

// ErrNotConnected is returned when a request is sent with no shim attached.
var ErrNotConnected = errors.New("no plugin connected")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// checkOrigin admits clients that send no Origin, which is how the shim
// connects, and pages served from loopback. Any other browser origin is
// refused so a web page cannot take over the plugin connection.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch host := u.Hostname(); host {
	case "localhost":
		return true
	default:
		ip := net.ParseIP(host)
		return ip != nil && ip.IsLoopback()
	}
}

// Server accepts one plugin connection at a time. A newer connection
// replaces the older one.
type Server struct {
	addr   string
	logger *log.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	handshake []host.Request
}

// New creates a bridge listening on addr.
func New(addr string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Level: log.FatalLevel})
	}
	return &Server{addr: addr, logger: logger}
}

// Send implements host.Sender. Permission and subscribe requests are kept
// and replayed to every new connection, so they succeed even before the
// shim attaches.
func (s *Server) Send(req host.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	replay := req.Request == host.RequestPermission || req.Request == host.RequestSubscribe
	if replay {
		s.handshake = append(s.handshake, req)
	}
	if s.conn == nil {
		if replay {
			return nil
		}
		return ErrNotConnected
	}
	return s.writeLocked(s.conn, req)
}

func (s *Server) writeLocked(conn *websocket.Conn, req host.Request) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write %s request: %w", req.Request, err)
	}
	return nil
}

// Connected reports whether a shim is attached.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Handler returns the HTTP handler that upgrades shim connections and
// forwards their notifications to out.
func (s *Server) Handler(ctx context.Context, out chan<- reconcile.Notification) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Error("Websocket upgrade failed", "error", err)
			return
		}
		if err := s.attach(conn); err != nil {
			s.logger.Error("Handshake failed", "error", err)
			conn.Close()
			return
		}
		s.logger.Info("Plugin connected", "remote", r.RemoteAddr)
		go s.pingPump(conn)
		s.readPump(ctx, conn, out)
	})
	return mux
}

func (s *Server) attach(conn *websocket.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.logger.Warn("Replacing existing plugin connection")
		s.conn.Close()
	}
	for _, req := range s.handshake {
		if err := s.writeLocked(conn, req); err != nil {
			return err
		}
	}
	s.conn = conn
	return nil
}

func (s *Server) detach(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == conn {
		s.conn = nil
	}
	conn.Close()
}

func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, out chan<- reconcile.Notification) {
	defer s.detach(conn)

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Plugin connection lost", "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		n, err := host.Decode(data)
		if err != nil {
			s.logger.Warn("Skipping notification", "error", err)
			continue
		}
		select {
		case out <- n:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) pingPump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		if s.conn != conn {
			s.mu.Unlock()
			return
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := conn.WriteMessage(websocket.PingMessage, nil)
		s.mu.Unlock()
		if err != nil {
			return
		}
	}
}

// Run serves the bridge until ctx is done.
func (s *Server) Run(ctx context.Context, out chan<- reconcile.Notification) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	srv := &http.Server{
		Handler:           s.Handler(ctx, out),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.mu.Unlock()
	}()

	s.logger.Info("Bridge listening", "addr", ln.Addr().String(), "path", Path)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve bridge: %w", err)
	}
	return nil
}
