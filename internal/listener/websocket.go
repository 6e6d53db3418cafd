package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pixil98/go-netplay/internal/logging"
)

const DefaultPath = "/ws"

// WebsocketListener accepts player connections over websockets and hands
// each one to the connection manager.
type WebsocketListener struct {
	port         uint16
	path         string
	cm           *ConnectionManager
	writeTimeout time.Duration
	readLimit    int64
	upgrader     websocket.Upgrader

	wg sync.WaitGroup
}

type WebsocketListenerOpt func(*WebsocketListener)

func WithPath(path string) WebsocketListenerOpt {
	return func(l *WebsocketListener) {
		l.path = path
	}
}

func WithWriteTimeout(d time.Duration) WebsocketListenerOpt {
	return func(l *WebsocketListener) {
		l.writeTimeout = d
	}
}

func WithReadLimit(n int64) WebsocketListenerOpt {
	return func(l *WebsocketListener) {
		l.readLimit = n
	}
}

func NewWebsocketListener(port uint16, cm *ConnectionManager, opts ...WebsocketListenerOpt) *WebsocketListener {
	l := &WebsocketListener{
		port:         port,
		path:         DefaultPath,
		cm:           cm,
		writeTimeout: DefaultWriteTimeout,
		readLimit:    DefaultReadLimit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

func (l *WebsocketListener) Start(ctx context.Context) error {
	// Cancelled once the server has stopped accepting connections
	connCtx, cancelConns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelConns()

	mux := http.NewServeMux()
	mux.Handle(l.path, l.Handler(connCtx))
	svr := &http.Server{
		Addr:              fmt.Sprintf(":%d", l.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = svr.Shutdown(shutdownCtx)
		case <-done:
		}
	}()

	slog.InfoContext(ctx, "websocket listener started", "port", l.port, "path", l.path)
	err := svr.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("port %d is already in use (another server running?)", l.port)
		}
		return fmt.Errorf("serving websockets on port %d: %w", l.port, err)
	}

	cancelConns()
	l.wg.Wait()
	return nil
}

// Handler upgrades requests to websockets and runs a session for each one
// under ctx.
func (l *WebsocketListener) Handler(ctx context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := l.upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.WarnContext(ctx, "websocket upgrade", "remote", r.RemoteAddr, "error", err)
			return
		}

		l.wg.Add(1)
		defer l.wg.Done()

		conn := newWSTransport(ws, l.writeTimeout, l.readLimit)
		defer func() { _ = conn.Close() }()

		l.cm.AcceptConnection(logging.WithAttrs(ctx, "remote", r.RemoteAddr), conn)
	})
}

