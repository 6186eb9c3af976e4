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

	"github.com/google/uuid"

	"bindery/internal/daemon"
	"bindery/internal/logging"
	"bindery/internal/relocation"
	"bindery/internal/services"
)

// ServiceName prefixes every RPC method.
const ServiceName = "Bindery"

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
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: serverCtx}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

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
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
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
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

// requestContext tags the server context with a correlation id, minting one
// when the client did not send any.
func (s *service) requestContext(requestID string) context.Context {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return services.WithRequestID(s.ctx, requestID)
}

func (s *service) MoveBooks(req MoveBooksRequest, resp *MoveBooksResponse) error {
	if len(req.Moves) == 0 {
		return errors.New("move batch requires at least one move")
	}
	ctx := s.requestContext(req.RequestID)
	logging.WithContext(ctx, s.logger).Debug("move batch requested", logging.Int("move_count", len(req.Moves)))
	result, err := s.daemon.MoveBooks(ctx, relocation.Request{Moves: req.Moves})
	if err != nil {
		return err
	}
	resp.Result = result
	return nil
}

func (s *service) NormalizeBook(req NormalizeBookRequest, resp *NormalizeBookResponse) error {
	if req.BookID <= 0 {
		return fmt.Errorf("invalid book id %d", req.BookID)
	}
	ctx := s.requestContext(req.RequestID)
	outcome, err := s.daemon.NormalizeBook(ctx, req.BookID)
	if err != nil {
		return err
	}
	resp.Outcome = outcome
	return nil
}

func (s *service) Reconcile(req ReconcileRequest, resp *ReconcileResponse) error {
	ctx := s.requestContext(req.RequestID)
	report, err := s.daemon.Reconcile(ctx)
	if err != nil {
		return err
	}
	resp.Report = report
	return nil
}

func (s *service) WatchLibrary(req WatchLibraryRequest, resp *WatchLibraryResponse) error {
	if req.LibraryID <= 0 {
		return fmt.Errorf("invalid library id %d", req.LibraryID)
	}
	if err := s.daemon.WatchLibrary(s.ctx, req.LibraryID); err != nil {
		return err
	}
	for _, id := range s.daemon.Status(s.ctx).MonitoredLibraries {
		if id == req.LibraryID {
			resp.Monitored = true
		}
	}
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.StartedAt = status.StartedAt
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockPath
	resp.MonitoredLibraries = status.MonitoredLibraries
	resp.LastReconcile = status.LastReconcile
	resp.LastBatch = status.LastBatch
	resp.PendingMoves = make([]PendingMove, 0, len(status.PendingMoves))
	for _, pm := range status.PendingMoves {
		resp.PendingMoves = append(resp.PendingMoves, PendingMove{
			BookID:     pm.BookID,
			SourcePath: pm.SourcePath,
			TempPath:   pm.TempPath,
			TargetPath: pm.TargetPath,
			CreatedAt:  pm.CreatedAt,
		})
	}
	resp.Checks = make([]CheckResult, 0, len(status.Preflight))
	for _, check := range status.Preflight {
		resp.Checks = append(resp.Checks, CheckResult{Name: check.Name, Passed: check.Passed, Detail: check.Detail})
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
