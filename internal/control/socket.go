// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package control serves a local HTTP control socket for a running
// sessiongate process.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/sessiongate/internal/xdg"
)

// HealthResponse is returned by the /health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// StatusResponse is returned by the /status endpoint.
type StatusResponse struct {
	Running       bool   `json:"running"`
	PID           int    `json:"pid"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Component     string `json:"component,omitempty"`
	AuthType      string `json:"auth_type,omitempty"`
	Version       string `json:"version,omitempty"`
}

// ShutdownResponse is returned by the /shutdown endpoint.
type ShutdownResponse struct {
	Message string `json:"message"`
}

// ShutdownFunc is called when shutdown is requested.
type ShutdownFunc func()

// Option configures a Server.
type Option func(*Server)

// WithAuthType reports the configured gate strategy on /status.
func WithAuthType(authType string) Option {
	return func(s *Server) { s.authType = authType }
}

// WithVersion reports the build version on /status.
func WithVersion(version string) Option {
	return func(s *Server) { s.version = version }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Server runs HTTP over a Unix socket for process management.
type Server struct {
	component    string
	authType     string
	version      string
	startTime    time.Time
	listener     net.Listener
	httpServer   *http.Server
	socketPath   string
	shutdownFunc ShutdownFunc
	logger       *slog.Logger
	running      atomic.Bool
}

// NewServer creates a control socket server for component.
func NewServer(component string, shutdownFunc ShutdownFunc, opts ...Option) *Server {
	s := &Server{
		component:    component,
		startTime:    time.Now(),
		shutdownFunc: shutdownFunc,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.running.Store(true)
	return s
}

// SocketPath returns the Unix socket path for component.
func SocketPath(component string) (string, error) {
	runtimeDir, err := xdg.RuntimeDir()
	if err != nil {
		return "", oops.Code("CONTROL_SOCKET_PATH_FAILED").
			With("component", component).
			Wrapf(err, "failed to get runtime directory")
	}
	return filepath.Join(runtimeDir, "sessiongate-"+component+".sock"), nil
}

// Path returns the socket path once Start has succeeded.
func (s *Server) Path() string {
	return s.socketPath
}

// Start begins listening on the Unix socket.
func (s *Server) Start() error {
	socketPath, err := SocketPath(s.component)
	if err != nil {
		return err
	}
	s.socketPath = socketPath

	if err := xdg.EnsureDir(filepath.Dir(socketPath)); err != nil {
		return err
	}

	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return oops.Code("CONTROL_LISTEN_FAILED").
			With("path", socketPath).
			Wrapf(err, "failed to remove stale socket")
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return oops.Code("CONTROL_LISTEN_FAILED").
			With("path", socketPath).
			Wrapf(err, "failed to listen on socket")
	}
	s.listener = listener

	if err := os.Chmod(socketPath, 0o600); err != nil {
		_ = listener.Close()
		return oops.Code("CONTROL_LISTEN_FAILED").
			With("path", socketPath).
			Wrapf(err, "failed to set socket permissions")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /shutdown", s.handleShutdown)

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control socket server error",
				"component", s.component,
				"error", err,
			)
		}
	}()

	return nil
}

// Stop shuts the server down and removes the socket file.
func (s *Server) Stop(ctx context.Context) error {
	s.running.Store(false)

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return oops.Code("CONTROL_SHUTDOWN_FAILED").
				With("component", s.component).
				Wrap(err)
		}
	}

	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("failed to close control socket listener",
				"component", s.component,
				"error", err,
			)
		}
	}

	if s.socketPath != "" {
		if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove control socket file",
				"component", s.component,
				"path", s.socketPath,
				"error", err,
			)
		}
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	s.reply(w, "health", resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Running:       s.running.Load(),
		PID:           os.Getpid(),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Component:     s.component,
		AuthType:      s.authType,
		Version:       s.version,
	}
	s.reply(w, "status", resp)
}

func (s *Server) handleShutdown(w http.ResponseWriter, _ *http.Request) {
	s.reply(w, "shutdown", ShutdownResponse{Message: "shutdown initiated"})

	if s.shutdownFunc != nil {
		go s.shutdownFunc()
	}
}

func (s *Server) reply(w http.ResponseWriter, endpoint string, v any) {
	if err := writeJSON(w, v); err != nil {
		s.logger.Error("failed to write "+endpoint+" response",
			"component", s.component,
			"error", err,
		)
	}
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return oops.Code("CONTROL_ENCODE_FAILED").Wrapf(err, "failed to encode JSON response")
	}
	return nil
}
