package nats

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/carepath/internal/logger"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Embedded bundles an in-process NATS server with its connection and
// JetStream context.
type Embedded struct {
	Server *server.Server
	Conn   *nats.Conn
	JS     jetstream.JetStream

	storeDir string
}

// Start launches an embedded server with JetStream enabled, connects to it
// in-process and creates the submissions stream. JetStream still wants a store
// directory even though the stream is memory backed, so a temporary one is
// created and removed by Close.
func Start(ctx context.Context) (*Embedded, error) {
	dir, err := os.MkdirTemp("", "carepath-nats-*")
	if err != nil {
		return nil, fmt.Errorf("creating nats store dir: %w", err)
	}

	ns, err := StartEmbeddedNATS(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	e := &Embedded{Server: ns, storeDir: dir}

	if e.Conn, err = ConnectInProcess(ns); err != nil {
		_ = e.Close()
		return nil, err
	}
	if e.JS, err = jetstream.New(e.Conn); err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("creating jetstream context: %w", err)
	}
	if _, err := SetupStream(ctx, e.JS); err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("setting up stream: %w", err)
	}
	return e, nil
}

// Stream returns the submissions stream.
func (e *Embedded) Stream(ctx context.Context) (jetstream.Stream, error) {
	return e.JS.Stream(ctx, StreamName)
}

// Close shuts down the connection and server and removes the store dir.
func (e *Embedded) Close() error {
	err := Shutdown(e.Conn, e.Server)
	if e.storeDir != "" {
		if rmErr := os.RemoveAll(e.storeDir); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	return err
}

// StartEmbeddedNATS starts an embedded NATS server with JetStream enabled.
// The server never listens on a network port.
func StartEmbeddedNATS(storeDir string) (*server.Server, error) {
	logger.Debug("Starting embedded NATS server with store dir: %s", storeDir)

	opts := &server.Options{
		JetStream:  true,
		StoreDir:   storeDir,
		DontListen: true,
		NoSigs:     true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		logger.Error("Failed to create NATS server: %v", err)
		return nil, err
	}

	go ns.Start()

	if !ns.ReadyForConnections(4 * time.Second) {
		logger.Error("NATS server failed to start within 4s timeout")
		ns.Shutdown()
		return nil, errors.New("nats server failed to start within timeout")
	}

	logger.Debug("NATS server ready for connections")
	return ns, nil
}

// ConnectInProcess creates an in-process connection to the embedded NATS server.
func ConnectInProcess(ns *server.Server) (*nats.Conn, error) {
	conn, err := nats.Connect("", nats.InProcessServer(ns))
	if err != nil {
		logger.Error("Failed to connect to NATS in-process: %v", err)
		return nil, err
	}
	return conn, nil
}

// Shutdown drains the connection, then shuts the server down. Each phase is
// bounded so a wedged server cannot hang the CLI on exit.
func Shutdown(nc *nats.Conn, ns *server.Server) error {
	if nc != nil {
		drainDone := make(chan error, 1)
		go func() {
			drainDone <- nc.Drain()
		}()

		select {
		case err := <-drainDone:
			if err != nil {
				logger.Warn("NATS drain failed, forcing close: %v", err)
				nc.Close()
			}
		case <-time.After(2 * time.Second):
			logger.Warn("NATS drain timed out after 2s, forcing close")
			nc.Close()
		}
	}

	if ns != nil {
		ns.Shutdown()

		shutdownDone := make(chan struct{})
		go func() {
			ns.WaitForShutdown()
			close(shutdownDone)
		}()

		select {
		case <-shutdownDone:
			logger.Debug("NATS server shut down cleanly")
		case <-time.After(5 * time.Second):
			logger.Error("NATS server shutdown timed out after 5s")
			return errors.New("NATS server shutdown timed out")
		}
	}
	return nil
}
