package gateway

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/strandhq/strand/internal/config"
	"github.com/strandhq/strand/internal/observability"
	"github.com/strandhq/strand/internal/ratelimit"
	"github.com/strandhq/strand/internal/sessions"
	"github.com/strandhq/strand/internal/tasks"
	"github.com/strandhq/strand/pkg/models"
)

const (
	sessionSweepSchedule = "@every 1m"
	taskSweepSchedule    = "@every 1h"
	oldTaskMaxAge        = 24 * time.Hour

	sendBuffer   = 256
	maxLineBytes = 1 << 20
	pingInterval = 15 * time.Second
)

// wire abstracts one framed transport: NDJSON over TCP or a WebSocket.
type wire interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
	Close() error
	RemoteAddr() string
}

type connection struct {
	id     string
	send   chan models.GatewayMessage
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex
	authed bool
	userID string
	// sessionID and client are set once on auth.
	sessionID string
	client    models.ClientInfo
}

func newConnection() *connection {
	return &connection{
		id:   "conn_" + uuid.NewString(),
		send: make(chan models.GatewayMessage, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *connection) close() {
	c.once.Do(func() { close(c.done) })
}

// enqueue blocks when the buffer is full rather than dropping; final
// response and error frames must reach the client.
func (c *connection) enqueue(msg models.GatewayMessage) bool {
	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	}
}

func (c *connection) session() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID, c.authed
}

func (c *connection) user() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *connection) bind(sessionID, userID string, client models.ClientInfo) {
	c.mu.Lock()
	c.sessionID = sessionID
	c.userID = userID
	c.client = client
	c.authed = true
	c.mu.Unlock()
}

// Hub accepts spoke connections, demultiplexes frames by session, and
// owns the periodic sweeps for expired sessions and stale tasks.
type Hub struct {
	cfg     config.GatewayConfig
	store   sessions.Store
	runtime *Runtime
	queue   *tasks.Queue
	logger  *observability.Logger
	metrics *observability.Metrics
	limiter *ratelimit.Limiter

	cron     *cron.Cron
	listener net.Listener

	mu    sync.RWMutex
	conns map[string]*connection

	ctx      context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewHub(cfg config.GatewayConfig, store sessions.Store, runtime *Runtime, queue *tasks.Queue, logger *observability.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		cfg:     cfg,
		store:   store,
		runtime: runtime,
		queue:   queue,
		logger:  logger,
		metrics: metrics,
		limiter: ratelimit.NewLimiter(cfg.RateLimit),
		conns:   make(map[string]*connection),
	}
}

// Start binds the listener and launches the accept loop, the periodic
// sweeps, and the task notification forwarder. It does not block.
func (h *Hub) Start(ctx context.Context) error {
	h.ctx, h.shutdown = context.WithCancel(ctx)

	listener, err := net.Listen("tcp", h.cfg.BindAddr)
	if err != nil {
		return err
	}
	h.listener = listener

	h.cron = cron.New()
	if _, err := h.cron.AddFunc(sessionSweepSchedule, h.sweepSessions); err != nil {
		return err
	}
	if h.queue != nil {
		if _, err := h.cron.AddFunc(taskSweepSchedule, h.sweepTasks); err != nil {
			return err
		}
	}
	h.cron.Start()

	h.wg.Add(1)
	go h.acceptLoop()

	if h.queue != nil {
		h.wg.Add(1)
		go h.forwardTaskNotifications()
	}

	if h.logger != nil {
		h.logger.Info(context.Background(), "gateway_listening", "addr", listener.Addr().String())
	}
	return nil
}

// Stop drops every connection, stops the listener and sweeps, and waits
// for in-flight handlers.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		if h.shutdown != nil {
			h.shutdown()
		}
		if h.cron != nil {
			h.cron.Stop()
		}
		if h.listener != nil {
			h.listener.Close()
		}

		h.mu.Lock()
		for _, conn := range h.conns {
			conn.close()
		}
		h.mu.Unlock()

		h.wg.Wait()
		if h.logger != nil {
			h.logger.Info(context.Background(), "gateway_stopped")
		}
	})
}

// Addr returns the bound listener address, empty before Start.
func (h *Hub) Addr() string {
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// SessionCount returns the number of live sessions.
func (h *Hub) SessionCount() int {
	return h.store.ActiveCount(context.Background())
}

func (h *Hub) acceptLoop() {
	defer h.wg.Done()
	for {
		netConn, err := h.listener.Accept()
		if err != nil {
			select {
			case <-h.ctx.Done():
				return
			default:
			}
			if h.logger != nil {
				h.logger.Warn(context.Background(), "accept_failed", "error", err.Error())
			}
			return
		}

		if h.cfg.MaxConnections > 0 && h.ConnectionCount() >= h.cfg.MaxConnections {
			data, _ := EncodeMessage(models.ErrorMessage("too_many_connections", "connection limit reached"))
			w := newNDJSONWire(netConn)
			_ = w.WriteFrame(data)
			w.Close()
			continue
		}

		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.handleWire(newNDJSONWire(netConn))
		}()
	}
}

// handleWire owns one connection from handshake to teardown. Shared by
// the TCP and WebSocket paths.
func (h *Hub) handleWire(w wire) {
	conn := newConnection()

	h.mu.Lock()
	h.conns[conn.id] = conn
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ConnectionOpened()
	}
	if h.logger != nil {
		h.logger.Info(context.Background(), "connection_opened", "conn_id", conn.id, "remote", w.RemoteAddr())
	}

	defer func() {
		conn.close()
		w.Close()

		h.mu.Lock()
		delete(h.conns, conn.id)
		h.mu.Unlock()

		if sessionID, ok := conn.session(); ok {
			h.store.RemoveClient(context.Background(), sessionID, conn.client.Platform)
			if h.metrics != nil {
				h.metrics.SessionEnded(string(conn.client.Platform))
			}
		}
		if h.metrics != nil {
			h.metrics.ConnectionClosed()
		}
		if h.logger != nil {
			h.logger.Info(context.Background(), "connection_closed", "conn_id", conn.id, "remote", w.RemoteAddr())
		}
	}()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.writeLoop(w, conn)
	}()

	for {
		data, err := w.ReadFrame()
		if err != nil {
			return
		}
		select {
		case <-conn.done:
			return
		case <-h.ctx.Done():
			return
		default:
		}

		msg, err := DecodeInbound(data)
		if err != nil {
			conn.enqueue(models.ErrorMessage("parse_error", err.Error()))
			continue
		}
		h.dispatch(conn, msg)
	}
}

func (h *Hub) writeLoop(w wire, c *connection) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			data, err := EncodeMessage(msg)
			if err != nil {
				continue
			}
			if err := w.WriteFrame(data); err != nil {
				c.close()
				w.Close()
				return
			}
		case <-ticker.C:
			if p, ok := w.(interface{ Ping() error }); ok {
				if err := p.Ping(); err != nil {
					c.close()
					w.Close()
					return
				}
			}
		case <-c.done:
			w.Close()
			return
		}
	}
}

func (h *Hub) dispatch(conn *connection, msg models.GatewayMessage) {
	frame := msg.Message
	switch frame.Type {
	case models.KindAuth:
		h.handleAuth(conn, frame)

	case models.KindUserMessage:
		sessionID, ok := conn.session()
		if !ok {
			conn.enqueue(models.ErrorMessage("not_authenticated", "please authenticate first"))
			return
		}
		if !h.allowMessage(conn) {
			return
		}
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			_, _ = h.runtime.ProcessMessage(h.ctx, sessionID, frame.Content, func(m models.GatewayMessage) {
				conn.enqueue(m)
			})
		}()

	case models.KindCancel:
		if sessionID, ok := conn.session(); ok {
			h.runtime.Cancel(h.ctx, sessionID)
		}

	case models.KindGetHistory:
		if sessionID, ok := conn.session(); ok {
			history := h.runtime.History(h.ctx, sessionID, frame.Limit)
			conn.enqueue(models.NewGatewayMessage(sessionID, models.Frame{
				Type:     models.KindHistory,
				Messages: history,
			}))
		}

	case models.KindPing:
		conn.enqueue(models.PongMessage(frame.Timestamp))

	case models.KindSubmitTask:
		h.handleSubmitTask(conn, frame)

	case models.KindGetTaskStatus:
		h.handleGetTaskStatus(conn, frame)

	default:
		// Outbound-only kinds arriving inbound are ignored.
	}
}

// allowMessage admits one turn-starting frame for the connection's user,
// sending a rate_limited error with a retry hint when the bucket is dry.
func (h *Hub) allowMessage(conn *connection) bool {
	key := ratelimit.Key("user", conn.user())
	if h.limiter.Allow(key) {
		return true
	}
	wait := h.limiter.WaitTime(key).Round(time.Millisecond)
	conn.enqueue(models.ErrorMessage("rate_limited",
		fmt.Sprintf("too many messages, retry in %s", wait)))
	if h.logger != nil {
		h.logger.Warn(context.Background(), "message_rate_limited",
			"conn_id", conn.id, "wait", wait.String())
	}
	return false
}

func (h *Hub) handleAuth(conn *connection, frame models.Frame) {
	if frame.ClientInfo == nil {
		conn.enqueue(models.ErrorMessage("parse_error", "auth requires client_info"))
		return
	}
	client := *frame.ClientInfo
	sessionID := h.store.GetOrCreate(h.ctx, client.ClientID, client)
	conn.bind(sessionID, client.ClientID, client)

	if h.metrics != nil {
		h.metrics.SessionStarted(string(client.Platform))
	}
	if h.logger != nil {
		h.logger.Info(context.Background(), "client_authenticated",
			"conn_id", conn.id, "session_id", sessionID, "platform", string(client.Platform))
	}

	conn.enqueue(models.NewGatewayMessage(sessionID, models.Frame{
		Type:      models.KindAuthResult,
		Success:   models.BoolPtr(true),
		SessionID: sessionID,
	}))
}

func (h *Hub) handleSubmitTask(conn *connection, frame models.Frame) {
	sessionID, ok := conn.session()
	if !ok {
		conn.enqueue(models.ErrorMessage("not_authenticated", "please authenticate first"))
		return
	}
	if h.queue == nil {
		conn.enqueue(models.ErrorMessage("task_queue_disabled", "background tasks are not enabled"))
		return
	}
	if !h.allowMessage(conn) {
		return
	}

	task := models.NewBackgroundTask(conn.userID, sessionID, frame.Instruction, models.ParsePriority(frame.Priority))
	id := h.queue.Submit(task)
	h.runtime.Stats().TaskSubmitted()
	conn.enqueue(models.NewGatewayMessage(sessionID, models.Frame{
		Type:   models.KindTaskSubmitted,
		TaskID: id,
	}))
}

func (h *Hub) handleGetTaskStatus(conn *connection, frame models.Frame) {
	sessionID, ok := conn.session()
	if !ok {
		conn.enqueue(models.ErrorMessage("not_authenticated", "please authenticate first"))
		return
	}
	if h.queue == nil {
		conn.enqueue(models.ErrorMessage("task_queue_disabled", "background tasks are not enabled"))
		return
	}

	task, found := h.queue.Get(frame.TaskID)
	if !found {
		conn.enqueue(models.ErrorMessage("task_not_found", "no task with id "+frame.TaskID))
		return
	}
	conn.enqueue(models.NewGatewayMessage(sessionID, models.Frame{
		Type:     models.KindTaskStatus,
		TaskID:   task.ID,
		Status:   string(task.Status),
		Progress: models.IntPtr(task.Progress),
		Result:   task.Result,
		Error:    task.Error,
	}))
}

// forwardTaskNotifications announces terminal task transitions to every
// connection attached to the submitting session.
func (h *Hub) forwardTaskNotifications() {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			return
		case n, ok := <-h.queue.Notifications():
			if !ok {
				return
			}
			h.runtime.Stats().TaskFinished()
			sessionID := n.SessionID
			if sessionID == "" {
				sessionID = h.store.GetUserSession(h.ctx, n.UserID)
			}
			if sessionID == "" {
				continue
			}
			h.broadcast(sessionID, models.NewGatewayMessage(sessionID, models.Frame{
				Type:    models.KindTaskComplete,
				TaskID:  n.TaskID,
				Success: models.BoolPtr(n.Status == models.TaskCompleted),
				Result:  n.Result,
				Error:   n.Error,
			}))
		}
	}
}

func (h *Hub) broadcast(sessionID string, msg models.GatewayMessage) {
	h.mu.RLock()
	targets := make([]*connection, 0, 2)
	for _, conn := range h.conns {
		if sid, ok := conn.session(); ok && sid == sessionID {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		conn.enqueue(msg)
	}
}

func (h *Hub) sweepSessions() {
	expired := h.store.CleanupExpired(context.Background())
	if expired > 0 && h.logger != nil {
		h.logger.Info(context.Background(), "sessions_expired", "count", expired)
	}
}

func (h *Hub) sweepTasks() {
	removed := h.queue.CleanupOldTasks(oldTaskMaxAge)
	if removed > 0 && h.logger != nil {
		h.logger.Info(context.Background(), "tasks_cleaned", "count", removed)
	}
}

// ndjsonWire frames messages as newline-delimited JSON over a stream.
type ndjsonWire struct {
	conn    net.Conn
	scanner *bufio.Scanner
	writeMu sync.Mutex
}

func newNDJSONWire(conn net.Conn) *ndjsonWire {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &ndjsonWire{conn: conn, scanner: scanner}
}

func (w *ndjsonWire) ReadFrame() ([]byte, error) {
	for w.scanner.Scan() {
		line := w.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		// Scanner reuses its buffer across calls.
		out := make([]byte, len(line))
		copy(out, line)
		return out, nil
	}
	if err := w.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, net.ErrClosed
}

func (w *ndjsonWire) WriteFrame(data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if _, err := w.conn.Write(data); err != nil {
		return err
	}
	_, err := w.conn.Write([]byte{'\n'})
	return err
}

func (w *ndjsonWire) Close() error { return w.conn.Close() }

func (w *ndjsonWire) RemoteAddr() string { return w.conn.RemoteAddr().String() }
