// Package chatgate assembles the media-aware chat gateway: an authenticated
// proxy between a browser chat client, the chat-automation backend that
// produces replies, and the generative media API resolving embedded media
// directives.
package chatgate

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ppsai/chatgate/config"
	"github.com/ppsai/chatgate/extra"
	"github.com/ppsai/chatgate/transport"
	"go.uber.org/zap"
)

// Node represents the main gateway component that coordinates all services
type Node struct {
	logger    *zap.Logger
	cfg       config.IConfig
	transport *transport.Transport
	server    *http.Server
	done      chan struct{}
}

// New creates a new gateway node with the provided logger and config
func New(logger *zap.Logger, cfg config.IConfig) (n *Node, err error) {
	if logger == nil && cfg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	n = &Node{
		logger: logger,
		cfg:    cfg,
		done:   make(chan struct{}),
	}
	n.transport, err = transport.New(logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}
	return n, nil
}

// Start initializes and starts all components of the node
func (n *Node) Start(ctx context.Context, mux *http.ServeMux, overwriteListenAddr string) error {
	n.logger.Info("Starting gateway node")
	n.transport.RegisterHandlers(mux)

	n.logger.Info("Registering status handler", zap.String("path", "/status"))
	mux.HandleFunc("/status", extra.StatusHandler(n.cfg, n.logger))

	// Register frontend proxy if configured
	frontendAddress, err := n.cfg.FrontendAddressForProxy()
	if err != nil {
		n.logger.Error("Failed to get frontend address for proxy", zap.Error(err))
	}
	if frontendAddress != "" {
		if proxyHandler := extra.ProxyHandler(frontendAddress, n.logger); proxyHandler != nil {
			n.logger.Info("Registering frontend proxy handler", zap.String("frontend_address", frontendAddress))
			mux.HandleFunc("/", proxyHandler)
		}
	}

	server, listenerErrChan, err := transport.StartHTTPServer(ctx, n.logger, n.cfg, mux, overwriteListenAddr)
	if err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	n.server = server

	go func() {
		if err, ok := <-listenerErrChan; ok && err != nil {
			n.logger.Error("HTTP listener failed", zap.Error(err))
		}
	}()

	// Monitor the parent context for cancellation
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		transport.ShutdownHTTPServer(shutdownCtx, n.logger, n.server)

		n.logger.Info("Gateway node stopped")
		close(n.done)
	}()

	n.logger.Info("Gateway node started successfully", zap.String("addr", server.Addr))
	return nil
}

// WaitForShutdown blocks until the node has shut down or the timeout expires.
func (n *Node) WaitForShutdown(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-n.done:
		return true
	case <-timer.C:
		n.logger.Warn("Shutdown timeout reached, forcing exit")
		return false
	}
}

// Start creates and starts a node in one call.
func Start(ctx context.Context, logger *zap.Logger, cfg config.IConfig, overwriteListenAddr string) (*Node, error) {
	node, err := New(logger, cfg)
	if err != nil {
		return nil, err
	}
	if err := node.Start(ctx, http.NewServeMux(), overwriteListenAddr); err != nil {
		return nil, err
	}
	return node, nil
}
