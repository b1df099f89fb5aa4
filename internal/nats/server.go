// Package nats runs the embedded JetStream server that journals wizard
// events.
package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/stepwise/internal/logger"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Bus bundles the in-process server, its connection and the events stream.
type Bus struct {
	Server *server.Server
	Conn   *nats.Conn
	JS     jetstream.JetStream
	Stream jetstream.Stream
}

// Start boots an embedded server storing under dataDir, connects to it
// in-process and ensures the events stream exists.
func Start(ctx context.Context, dataDir string) (*Bus, error) {
	ns, err := StartEmbeddedNATS(dataDir)
	if err != nil {
		return nil, err
	}

	nc, err := ConnectInProcess(ns)
	if err != nil {
		_ = Shutdown(nil, ns)
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		_ = Shutdown(nc, ns)
		return nil, fmt.Errorf("creating jetstream context: %w", err)
	}

	stream, err := SetupStream(ctx, js)
	if err != nil {
		_ = Shutdown(nc, ns)
		return nil, fmt.Errorf("setting up stream: %w", err)
	}

	return &Bus{Server: ns, Conn: nc, JS: js, Stream: stream}, nil
}

// Close drains the connection and stops the server.
func (b *Bus) Close() error {
	if b == nil {
		return nil
	}
	return Shutdown(b.Conn, b.Server)
}

const readyTimeout = 4 * time.Second

// StartEmbeddedNATS starts an embedded NATS server with JetStream enabled
// using the specified data directory for file-based storage.
func StartEmbeddedNATS(dataDir string) (*server.Server, error) {
	logger.Debug("Starting embedded NATS server with data dir: %s", dataDir)

	opts := &server.Options{
		JetStream:  true,
		StoreDir:   dataDir,
		DontListen: true, // in-process only
		NoSigs:     true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		logger.Error("Failed to create NATS server: %v", err)
		return nil, err
	}

	go ns.Start()

	if !ns.ReadyForConnections(readyTimeout) {
		logger.Error("NATS server failed to start within %s", readyTimeout)
		ns.Shutdown()
		return nil, errors.New("nats server failed to start within timeout")
	}

	logger.Debug("NATS server ready for connections")
	return ns, nil
}

// ConnectInProcess creates a connection that talks to ns without sockets.
func ConnectInProcess(ns *server.Server) (*nats.Conn, error) {
	conn, err := nats.Connect("", nats.InProcessServer(ns))
	if err != nil {
		logger.Error("Failed to connect to NATS in-process: %v", err)
		return nil, err
	}
	return conn, nil
}

const (
	drainTimeout    = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Shutdown drains and closes nc, then stops ns. Each phase is bounded so a
// stuck server never hangs the CLI.
func Shutdown(nc *nats.Conn, ns *server.Server) error {
	logger.Debug("Starting NATS shutdown")
	if nc != nil {
		drain(nc)
	}
	if ns != nil {
		if err := stop(ns); err != nil {
			return err
		}
	}
	logger.Debug("NATS shutdown complete")
	return nil
}

func drain(nc *nats.Conn) {
	done := make(chan error, 1)
	go func() { done <- nc.Drain() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Warn("NATS drain failed, forcing close: %v", err)
			nc.Close()
		}
	case <-time.After(drainTimeout):
		logger.Warn("NATS drain timed out after %s, forcing close", drainTimeout)
		nc.Close()
	}
}

func stop(ns *server.Server) error {
	ns.Shutdown()
	done := make(chan struct{})
	go func() {
		ns.WaitForShutdown()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(shutdownTimeout):
		logger.Error("NATS server shutdown timed out after %s", shutdownTimeout)
		return errors.New("NATS server shutdown timed out")
	}
}
