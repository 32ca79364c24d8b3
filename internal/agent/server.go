package agent

import (
	"context"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/torosent/crankmeter/internal/monitorrpc"
)

// Server exposes an Agent over gRPC.
type Server struct {
	agent  *Agent
	logger *zap.Logger
	opts   []grpc.ServerOption
}

var _ monitorrpc.MonitorServer = (*Server)(nil)

// NewServer wraps agent. opts are passed to grpc.NewServer.
func NewServer(agent *Agent, opts ...grpc.ServerOption) *Server {
	return &Server{agent: agent, logger: agent.logger, opts: opts}
}

func (s *Server) GetRecord(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return monitorrpc.ToStruct(s.agent.GetRecord(ctx)), nil
}

func (s *Server) GetMonitorsConfig(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return monitorrpc.ToStruct(s.agent.GetMonitorsConfig(ctx)), nil
}

// Serve answers requests on lis until ctx is cancelled, then stops gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(s.opts...)
	monitorrpc.RegisterMonitorServer(srv, s)

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(lis) }()
	s.logger.Info("monitor agent listening", zap.String("addr", lis.Addr().String()))

	select {
	case <-ctx.Done():
		srv.GracefulStop()
		<-errc
		return nil
	case err := <-errc:
		return err
	}
}
