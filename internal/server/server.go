// Package server wires the registry, membership table, authentication
// gate, router, fan-out engine and HTTP ingress into one running
// GoSocket server.
package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gosocket/gosocket"
	"github.com/gosocket/gosocket/internal/auth"
	"github.com/gosocket/gosocket/internal/channels"
	"github.com/gosocket/gosocket/internal/fanout"
	"github.com/gosocket/gosocket/internal/httpapi"
	"github.com/gosocket/gosocket/internal/protocol"
	"github.com/gosocket/gosocket/internal/registry"
	"github.com/gosocket/gosocket/internal/router"
	"github.com/gosocket/gosocket/logger"
)

const maxFrameSize = protocol.MaxFrameSize

// Server implements gosocket.Server.
type Server struct {
	cfg Config

	reg    *registry.Registry
	table  *channels.Table
	gate   *auth.Gate
	router *router.Router
	engine *fanout.Engine
	super  *supervisor

	upgrader  websocket.Upgrader
	wsServer  *http.Server
	apiServer *http.Server

	mu      sync.Mutex
	running bool
}

// New assembles a server from the configuration. Nothing listens until
// Start.
func New(cfg Config) *Server {
	cfg.norm()

	s := &Server{cfg: cfg}

	s.reg = registry.New(cfg.FloodLimit)
	s.table = channels.New(cfg.BeforeJoin, cfg.BeforeLeave)
	s.gate = auth.New(cfg.SigningKey, s.reg)
	s.engine = fanout.New(connSource{s.reg}, s.table, s.reg.Unregister)
	s.super = newSupervisor(s.reg, cfg.PingInterval, cfg.grace())

	regs := append(s.builtinRegistrations(), cfg.Handlers...)
	s.router = router.New(cfg.Middleware, regs, cfg.HandlerTimeout)

	// Membership is purged before the application sees the disconnect.
	s.reg.OnDisconnect(func(c *registry.Conn) {
		s.table.Purge(c.ID())
		if cfg.OnDisconnect != nil {
			cfg.OnDisconnect(c)
		}
	})
	if cfg.OnConnect != nil {
		s.reg.OnConnect(func(c *registry.Conn) { cfg.OnConnect(c) })
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     cfg.CheckOrigin,
	}

	return s
}

// Start starts the WebSocket listener, the HTTP ingress and the
// liveness supervisor. It returns once the listeners are up; the server
// then runs until Stop or context cancellation.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return gosocket.ErrServerAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.WSPath, s.handleUpgrade)
	s.wsServer = &http.Server{Addr: s.cfg.Addr, Handler: mux}

	errChan := make(chan error, 2)
	go func() {
		if err := s.wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	if s.cfg.HTTPAddr != "" {
		engine := httpapi.NewEngine(httpapi.Config{
			Path:  s.cfg.BroadcastPath,
			Token: s.cfg.IngressToken,
		}, httpapi.BroadcastFunc(s.Broadcast))
		s.apiServer = &http.Server{Addr: s.cfg.HTTPAddr, Handler: engine}
		go func() {
			if err := s.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()
	}

	// Give the listeners a moment to surface bind errors.
	select {
	case err := <-errChan:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(stopCtx)
	case <-time.After(100 * time.Millisecond):
	}

	s.super.start()
	logger.Infof("gosocket listening ws=%s%s http=%s", s.cfg.Addr, s.cfg.WSPath, s.cfg.HTTPAddr)
	return nil
}

// Stop stops the supervisor, closes every connection and shuts both
// listeners down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.super.stop()
	s.reg.CloseAll()

	var first error
	if s.apiServer != nil {
		if err := s.apiServer.Shutdown(ctx); err != nil {
			first = err
		}
	}
	if s.wsServer != nil {
		if err := s.wsServer.Shutdown(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Broadcast is the in-process ingress: same validation, same fan-out as
// a POST to the broadcast endpoint.
func (s *Server) Broadcast(ctx context.Context, req *gosocket.BroadcastRequest) error {
	return s.engine.Broadcast(ctx, req)
}

// ConnectionCount returns the number of registered connections.
func (s *Server) ConnectionCount() int {
	return s.reg.Count()
}

// handleUpgrade accepts one WebSocket connection and hands it to the
// read loop.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logger.Warnf("upgrade failed remote=%s: %v", r.RemoteAddr, err)
		return
	}

	conn := s.reg.Register(ws, r.RemoteAddr)
	conn.SetReadLimit(s.cfg.ReadLimit)

	if token := upgradeToken(r); token != "" {
		s.authenticate(conn, token)
	}

	go s.readLoop(conn)
}

// upgradeToken extracts a connect-time credential from the upgrade
// request: ?token= first, Authorization: Bearer second.
func upgradeToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}

// authenticate runs one auth attempt and answers it on the connection.
// Failure is answered with an error frame and is not fatal.
func (s *Server) authenticate(conn *registry.Conn, token string) {
	a, err := s.gate.Authenticate(conn.ID(), token)
	if err != nil {
		conn.Send(conn.Context(), protocol.Error(gosocket.ErrInvalidToken.Error()))
		return
	}
	conn.Send(conn.Context(), protocol.Authenticated(a.UserID))
}

// readLoop drives one connection: read deadline maintenance, flood
// limiting, decoding and dispatch. Frames are dispatched synchronously,
// so one connection's frames are processed in receipt order; a slow
// handler stalls only its own connection and is bounded by the handler
// timeout.
func (s *Server) readLoop(conn *registry.Conn) {
	defer s.reg.Unregister(conn.ID())

	grace := s.cfg.grace()
	conn.SetReadDeadline(time.Now().Add(grace))
	conn.SetPongHandler(func(string) error {
		conn.TouchPong(time.Now())
		conn.SetReadDeadline(time.Now().Add(grace))
		return nil
	})

	for {
		select {
		case <-conn.Context().Done():
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warnf("read failed conn=%s: %v", conn.ID(), err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(grace))

		if !conn.AllowFrame() {
			logger.Warnf("flood limit exceeded conn=%s remote=%s", conn.ID(), conn.RemoteAddr())
			conn.CloseWithCode(context.Background(), websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}

		s.handleFrame(conn, data)
	}
}

// handleFrame processes one inbound frame. Every failure is answered
// with an error frame on this connection and never terminates it.
func (s *Server) handleFrame(conn *registry.Conn, data []byte) {
	in, err := protocol.DecodeInbound(data)
	if err != nil {
		conn.Send(conn.Context(), protocol.Error(err.Error()))
		return
	}

	// A top-level token authenticates in passing, before the action runs.
	if in.Token != "" && !conn.Authenticated() {
		s.authenticate(conn, in.Token)
	}

	p := &gosocket.Payload{
		Action: in.Action,
		Data:   in.Data,
		Auth:   conn.Auth(),
		Conn:   conn,
	}

	if err := s.router.Dispatch(conn.Context(), p); err != nil {
		conn.Send(conn.Context(), protocol.Error(err.Error()))
	}
}

// connSource adapts the registry to the fan-out engine's view.
type connSource struct {
	reg *registry.Registry
}

func (s connSource) Get(id string) (gosocket.Connection, bool) {
	c, ok := s.reg.Get(id)
	if !ok {
		return nil, false
	}
	return c, true
}

func (s connSource) ByUser(userID string) []gosocket.Connection {
	conns := s.reg.ByUser(userID)
	out := make([]gosocket.Connection, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

func (s connSource) Snapshot() []gosocket.Connection {
	conns := s.reg.Snapshot()
	out := make([]gosocket.Connection, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}
