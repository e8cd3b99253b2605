// Package ipc exposes daemon control over JSON-RPC on a Unix domain socket.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"evalpilot/internal/daemon"
	"evalpilot/internal/logging"
)

const serviceName = "Evalpilot"

// Controller is the subset of the daemon the socket exposes.
type Controller interface {
	Status() daemon.Status
	RunNow() bool
	Stop()
}

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, ctrl Controller, logger *slog.Logger) (*Server, error) {
	if ctrl == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(serviceName, &service{ctrl: ctrl, logger: logger}); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"),
					logging.String(logging.FieldImpact, "daemon control commands may fail to connect"),
				)
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"),
			logging.String(logging.FieldImpact, "stale socket may confuse daemon control commands"),
		)
	}
}

type service struct {
	ctrl   Controller
	logger *slog.Logger
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.ctrl.Status()
	resp.Running = status.Running
	resp.PassActive = status.PassActive
	resp.Passes = status.Passes
	resp.IntervalSeconds = int64(status.Interval.Seconds())
	resp.LockPath = status.LockFilePath
	resp.LastError = status.LastError
	resp.PID = os.Getpid()
	if last := status.LastOutcome; last != nil {
		resp.LastPass = &PassSummary{
			ID:           last.PassID,
			Status:       last.Status(),
			DryRun:       last.DryRun,
			StartedAt:    last.StartedAt,
			FinishedAt:   last.FinishedAt,
			Submitted:    last.Reconcile.Submitted(),
			Promoted:     len(last.Promote.Promoted),
			Deduplicated: len(last.Promote.Deduplicated),
			Retired:      len(last.Retire.Removed),
			Failures:     last.Failures(),
		}
	}
	return nil
}

func (s *service) RunNow(_ RunNowRequest, resp *RunNowResponse) error {
	if !s.ctrl.RunNow() {
		resp.Message = "daemon is not running"
		return nil
	}
	resp.Queued = true
	resp.Message = "pass queued"
	s.logger.Info("pass requested via IPC", logging.String(logging.FieldEventType, "ipc_run_now"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.ctrl.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stop requested via IPC", logging.String(logging.FieldEventType, "ipc_stop"))
	return nil
}
