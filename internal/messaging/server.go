package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NatsServer is an embedded NATS server with JetStream enabled and an
// internal client connection.
type NatsServer struct {
	ns   *server.Server
	conn *nats.Conn
	js   jetstream.JetStream

	startupTimeout time.Duration
	host           string
	port           int
	storeDir       string
}

func NewNatsServer(opts ...NatsServerOpt) (*NatsServer, error) {
	s := &NatsServer{
		startupTimeout: 10 * time.Second,
		host:           "127.0.0.1",
	}

	for _, opt := range opts {
		opt(s)
	}

	ns, err := server.NewServer(&server.Options{
		Host:      s.host,
		Port:      s.port,
		NoSigs:    true, // Let the application handle signals
		JetStream: true,
		StoreDir:  s.storeDir,
	})
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}
	s.ns = ns

	return s, nil
}

// Connect starts the server and opens the internal client connection. It is
// called before any worker runs so that an unreachable store fails startup.
func (n *NatsServer) Connect(ctx context.Context) error {
	n.ns.Start()

	if !n.ns.ReadyForConnections(n.startupTimeout) {
		n.ns.Shutdown()
		return fmt.Errorf("nats server not ready for connections")
	}

	conn, err := nats.Connect(n.ns.ClientURL())
	if err != nil {
		n.ns.Shutdown()
		return fmt.Errorf("creating nats client connection: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		n.ns.Shutdown()
		return fmt.Errorf("creating jetstream context: %w", err)
	}

	n.conn = conn
	n.js = js

	slog.InfoContext(ctx, "nats server listening", "addr", n.ns.Addr())
	return nil
}

// JetStream returns the JetStream context of the internal connection.
func (n *NatsServer) JetStream() jetstream.JetStream {
	return n.js
}

// Start blocks until ctx is done, then shuts the server down.
func (n *NatsServer) Start(ctx context.Context) error {
	if n.conn == nil {
		return fmt.Errorf("nats server not connected")
	}

	<-ctx.Done()
	n.Close()
	return nil
}

// Close drains the internal connection and stops the server.
func (n *NatsServer) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
	n.ns.Shutdown()
	n.ns.WaitForShutdown()
}
