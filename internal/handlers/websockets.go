package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"garden_irrigation/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = pongWait * 9 / 10
	maxMsgSize      = 4 << 10
	defaultInterval = 2 * time.Second
	maxInterval     = time.Minute

	wsTypeStatus = "status"
)

type wsEnvelope struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// The status feed is read-only, so any origin may subscribe.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// statusStream pushes controller status snapshots to one subscriber.
type statusStream struct {
	conn   *websocket.Conn
	status func(context.Context) (any, error)
	log    *logger.Logger
}

func (h *Handler) wsConnect(c *gin.Context) {
	every := h.streamInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	st := &statusStream{
		conn: conn,
		status: func(ctx context.Context) (any, error) {
			s, err := h.services.Monitoring.GetStatus(ctx)
			return s, err
		},
		log: h.log,
	}
	st.serve(c.Request.Context(), every)
}

// streamInterval resolves the push period from ?interval=<duration> or
// ?interval_ms=<n>, falling back to the configured period. Values outside
// (0, 1m] are ignored.
func (h *Handler) streamInterval(c *gin.Context) time.Duration {
	if d, err := time.ParseDuration(c.Query("interval")); err == nil && inStreamRange(d) {
		return d
	}
	if n, err := strconv.Atoi(c.Query("interval_ms")); err == nil && inStreamRange(time.Duration(n)*time.Millisecond) {
		return time.Duration(n) * time.Millisecond
	}
	if inStreamRange(h.wsInterval) {
		return h.wsInterval
	}
	return defaultInterval
}

func inStreamRange(d time.Duration) bool { return d > 0 && d <= maxInterval }

func (st *statusStream) serve(ctx context.Context, every time.Duration) {
	st.conn.SetReadLimit(maxMsgSize)
	_ = st.conn.SetReadDeadline(time.Now().Add(pongWait))
	st.conn.SetPongHandler(func(string) error {
		return st.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	closed := make(chan struct{})
	go st.drain(closed)

	push := time.NewTicker(every)
	defer push.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := st.push(ctx); err != nil {
		st.infow("ws_first_push_failed", err)
		return
	}
	for {
		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = st.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := st.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				st.infow("ws_ping_failed", err)
				return
			}
		case <-push.C:
			if err := st.push(ctx); err != nil {
				st.infow("ws_push_failed", err)
				return
			}
		}
	}
}

// drain consumes client frames so pongs and close frames are processed.
func (st *statusStream) drain(closed chan<- struct{}) {
	defer close(closed)
	for {
		if _, _, err := st.conn.ReadMessage(); err != nil {
			st.infow("ws_client_gone", err)
			return
		}
	}
}

func (st *statusStream) push(ctx context.Context) error {
	status, err := st.status(ctx)
	if err != nil {
		if st.log != nil {
			st.log.Errorw("ws_status_failed", "err", err)
		}
		return err
	}
	_ = st.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return st.conn.WriteJSON(wsEnvelope{Type: wsTypeStatus, Data: status})
}

func (st *statusStream) infow(event string, err error) {
	if st.log != nil {
		st.log.Infow(event, "err", err)
	}
}
