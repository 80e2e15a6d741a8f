package handler

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/foomo/catalogserver/catalog"
	"github.com/foomo/catalogserver/pkg/bridge"
	httputils "github.com/foomo/keel/utils/net/http"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errClientGone = errors.New("client gone")

type (
	// Events streams every change event of the bridge to websocket clients
	Events struct {
		l            *zap.Logger
		bridge       *bridge.Bridge
		upgrader     websocket.Upgrader
		pingInterval time.Duration
		writeWait    time.Duration
		bufferSize   int
	}
	EventsOption func(*Events)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func NewEvents(l *zap.Logger, b *bridge.Bridge, opts ...EventsOption) *Events {
	inst := &Events{
		l:      l.Named("events"),
		bridge: b,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		pingInterval: 30 * time.Second,
		writeWait:    10 * time.Second,
		bufferSize:   64,
	}

	for _, opt := range opts {
		opt(inst)
	}

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func EventsWithPingInterval(v time.Duration) EventsOption {
	return func(o *Events) {
		o.pingInterval = v
	}
}

// EventsWithBufferSize number of events queued per client before it is dropped
func EventsWithBufferSize(v int) EventsOption {
	return func(o *Events) {
		o.bufferSize = v
	}
}

func EventsWithCheckOrigin(v func(r *http.Request) bool) EventsOption {
	return func(o *Events) {
		o.upgrader.CheckOrigin = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

func (e *Events) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputils.ServerError(e.l, w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied
		e.l.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	l := e.l.With(zap.String("client_id", uuid.New().String()))
	l.Debug("client connected", zap.String("remote", r.RemoteAddr))

	var (
		send    = make(chan catalog.Event, e.bufferSize)
		dropped atomic.Bool
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	unsubscribe := e.bridge.Subscribe(func(event catalog.Event) {
		select {
		case send <- event:
		default:
			if dropped.CompareAndSwap(false, true) {
				l.Warn("client is too slow, dropping it", zap.Int("buffer", e.bufferSize))
				cancel()
			}
		}
	})
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.writePump(gctx, conn, send)
	})
	g.Go(func() error {
		return e.readPump(conn)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errClientGone) && !errors.Is(err, context.Canceled) {
		l.Warn("event stream failed", zap.Error(err))
	}
	l.Debug("client disconnected")
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

// writePump owns every write on conn
func (e *Events) writePump(ctx context.Context, conn *websocket.Conn, send <-chan catalog.Event) error {
	ticker := time.NewTicker(e.pingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(e.writeWait),
			)
			return ctx.Err()
		case event := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(e.writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return errors.Wrap(err, "failed to write event")
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(e.writeWait)); err != nil {
				return errors.Wrap(err, "failed to ping")
			}
		}
	}
}

// readPump consumes control frames and notices a closed connection
func (e *Events) readPump(conn *websocket.Conn) error {
	pongWait := e.pingInterval * 2
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				e.l.Debug("unexpected close", zap.Error(err))
			}
			return errClientGone
		}
	}
}
