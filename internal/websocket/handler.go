package websocket

import (
	"net/http"
	"slices"
	"strings"

	"relay-server/internal/logger"
	"relay-server/utils"

	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests and attaches each connection to hooks.
type Handler struct {
	hooks    Hooks
	upgrader websocket.Upgrader
	opts     Options
	logger   *logger.Logger
}

func NewHandler(hooks Hooks, opts Options) *Handler {
	opts = opts.withDefaults()
	opts.Logger = opts.Logger.With("component", "websocket")
	return &Handler{
		hooks: hooks,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		opts:   opts,
		logger: opts.Logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.opts.Metrics.incUpgradeFailures()
		h.logger.Warn("websocket upgrade failed", "error", err, "remote_addr", utils.RealClientIP(r))
		return
	}

	cl := newWSClient(conn, utils.RealClientIP(r), h.opts)
	if _, err := h.hooks.OnOpen(cl); err != nil {
		cl.Close()
		return
	}
	h.opts.Metrics.incConnections()

	go cl.keepAlive()
	go cl.writeMessage()
	go cl.readMessage(h.hooks)
}
