package websocket

import (
	"sync"
	"time"

	"relay-server/internal/logger"

	"github.com/gorilla/websocket"
)

// WSClient is one upgraded connection. Frames queued with Send are written
// by a single writer goroutine; Send never blocks.
type WSClient struct {
	Conn       *websocket.Conn
	Message    chan []byte
	remoteAddr string
	opts       Options
	logger     *logger.Logger
	done       chan struct{} // closed once the connection is shutting down
	closeOnce  sync.Once
	mu         sync.Mutex // serializes writes to Conn
	isClosed   bool
}

func newWSClient(conn *websocket.Conn, remoteAddr string, opts Options) *WSClient {
	return &WSClient{
		Conn:       conn,
		Message:    make(chan []byte, opts.SendBuffer),
		remoteAddr: remoteAddr,
		opts:       opts,
		logger:     opts.Logger.With("remote_addr", remoteAddr),
		done:       make(chan struct{}),
	}
}

// Send queues data for writing. It fails fast when the connection is closed
// or its buffer is full.
func (cl *WSClient) Send(data []byte) error {
	select {
	case <-cl.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case cl.Message <- data:
		return nil
	case <-cl.done:
		return ErrConnectionClosed
	default:
		cl.opts.Metrics.incBufferOverflows()
		return ErrSendBufferFull
	}
}

// Close sends a close frame and tears down the socket. The read loop then
// observes the error and reports the close to the hooks. Safe to call more
// than once.
func (cl *WSClient) Close() error {
	var err error
	cl.closeOnce.Do(func() {
		close(cl.done)

		cl.mu.Lock()
		defer cl.mu.Unlock()
		cl.isClosed = true
		deadline := time.Now().Add(cl.opts.WriteTimeout)
		_ = cl.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = cl.Conn.Close()
	})
	return err
}

func (cl *WSClient) RemoteAddr() string {
	return cl.remoteAddr
}

func (cl *WSClient) keepAlive() {
	if cl.opts.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(cl.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			return
		case <-ticker.C:
			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			err := cl.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(cl.opts.WriteTimeout))
			cl.mu.Unlock()

			if err != nil {
				cl.logger.Debug("ping failed", "error", err)
				cl.Close()
				return
			}
		}
	}
}

func (cl *WSClient) writeMessage() {
	for {
		select {
		case <-cl.done:
			return
		case msg := <-cl.Message:
			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			cl.Conn.SetWriteDeadline(time.Now().Add(cl.opts.WriteTimeout))
			err := cl.Conn.WriteMessage(websocket.TextMessage, msg)
			cl.mu.Unlock()

			if err != nil {
				cl.logger.Debug("write failed", "error", err)
				cl.Close()
				return
			}
		}
	}
}

func (cl *WSClient) readMessage(hooks Hooks) {
	defer func() {
		if r := recover(); r != nil {
			cl.logger.Error("recovered from panic in read loop", "panic", r)
		}

		cl.Close()
		hooks.OnClose(cl)
		cl.opts.Metrics.decConnections()
	}()

	cl.Conn.SetReadLimit(cl.opts.ReadLimit)
	if cl.opts.PingInterval > 0 {
		wait := cl.opts.pongWait()
		cl.Conn.SetReadDeadline(time.Now().Add(wait))
		cl.Conn.SetPongHandler(func(string) error {
			return cl.Conn.SetReadDeadline(time.Now().Add(wait))
		})
	}

	for {
		_, message, err := cl.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) {
				cl.logger.Warn("read failed", "error", err)
			}
			return
		}

		cl.opts.Metrics.incFramesRead()
		hooks.OnMessage(cl, message)
	}
}
