// Package service implements the persistent processing service: a
// TCP, newline-delimited-JSON request/response loop, command dispatch,
// periodic memory reclamation, and cooperative shutdown.
//
// The reference corpus this module is grown from carries no messaging
// library (ZeroMQ, NATS, AMQP) anywhere, so the REP-style local socket
// described by the component design is implemented directly on
// net.Listen + encoding/json rather than importing an unrelated broker
// client just to reach for one.
package service

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/secondsight/rfengine/internal/apperr"
	"github.com/secondsight/rfengine/internal/backend"
	"github.com/secondsight/rfengine/internal/backend/cpu"
	"github.com/secondsight/rfengine/internal/proto"

	_ "github.com/secondsight/rfengine/internal/backend/accel"
)

const ioTimeout = 60 * time.Second

// Server is the processing service: one TCP listener, sequential
// per-connection request handling, a background cleanup ticker, and
// the monotonic statistics counters.
type Server struct {
	cfg     Config
	backend backend.Backend
	stats   *Stats
	ln      net.Listener
}

// New selects a numeric backend per cfg and constructs a Server.
func New(cfg Config) (*Server, error) {
	b, err := backend.Select(cfg.PreferGPU, cfg.AllowCPUFallback, cfg.NumStreams, func(n int) backend.Backend {
		return cpu.NewWithCapacity(n, cfg.MemoryCapacityMB*1024*1024)
	})
	if err != nil {
		return nil, err
	}
	logrus.Infof("numeric backend selected: %s", b.Name())
	return &Server{cfg: cfg, backend: b, stats: NewStats()}, nil
}

// Run binds the configured address and serves requests until ctx is
// canceled or an interrupt/terminate signal arrives.
func (s *Server) Run(ctx context.Context) error {
	addr := strings.TrimPrefix(s.cfg.Addr, "tcp://")
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return apperr.Transportf("listen %s: %v", addr, err)
	}
	s.ln = ln
	logrus.Infof("processing service listening on %s", addr)

	ctx, cancel := context.WithCancel(ctx)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logrus.Infof("received signal %v, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	cleanupInterval := time.Duration(s.cfg.CleanupIntervalS) * time.Second
	if cleanupInterval <= 0 {
		cleanupInterval = 300 * time.Second
	}
	go s.backgroundCleanup(ctx, cleanupInterval)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				logrus.Info("processing service stopped")
				return nil
			default:
				logrus.Warnf("accept error: %v", err)
				continue
			}
		}
		s.handleConn(ctx, conn)
	}
}

// handleConn processes one connection's requests sequentially, one at
// a time, to completion before reading the next — matching the
// single-threaded cooperative scheduling the service guarantees at
// the request level.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(ioTimeout))
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if len(line) == 0 {
				return
			}
		}

		start := time.Now()
		resp := s.handleLine(line)
		resp.ProcessingTimeMS = float64(time.Since(start).Microseconds()) / 1000.0

		out, err := proto.MarshalResponse(resp)
		if err != nil {
			logrus.Errorf("failed to marshal response: %v", err)
			return
		}
		out = append(out, '\n')

		conn.SetWriteDeadline(time.Now().Add(ioTimeout))
		if _, err := conn.Write(out); err != nil {
			// The send failed; the client is gone and the result is
			// dropped, matching the documented cancellation behavior.
			return
		}
	}
}

func (s *Server) handleLine(line []byte) proto.Response {
	var req proto.Request
	if err := json.Unmarshal(line, &req); err != nil {
		// Envelope parse failures are caught locally and reported without
		// touching statistics: they never reached dispatch.
		return proto.Response{Error: "Invalid JSON: " + err.Error()}
	}

	result, err := s.dispatch(req)
	if err != nil {
		s.stats.RecordFailure()
		if _, ok := apperr.As(err); ok {
			logrus.Debugf("command %q failed: %v", req.Command, err)
		} else {
			logrus.Errorf("command %q failed: %v\n%s", req.Command, err, debug.Stack())
		}
		return proto.Response{Error: err.Error()}
	}

	s.stats.RecordSuccess(int64(len(line)))
	return proto.Response{Result: result}
}

func (s *Server) backgroundCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mem := s.backend.Memory()
			if float64(mem.Used()) > 0.8*float64(mem.Capacity()) {
				logrus.Debug("memory pool above 80% utilization, running cleanup")
				mem.Cleanup()
			}
		}
	}
}
