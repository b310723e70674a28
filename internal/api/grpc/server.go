// Package grpcapi serves the audio ingress stream and the gRPC health service.
package grpcapi

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/hyy20190326/luis-0509/internal/observability"
	"github.com/hyy20190326/luis-0509/internal/observability/logging"
	"github.com/hyy20190326/luis-0509/internal/observability/metrics"
	"github.com/hyy20190326/luis-0509/internal/service/keeper"
)

// FrameSink receives the audio of a stream, normally keeper.Keeper.
type FrameSink interface {
	Frame(id string, audio []byte) error
}

// Server owns the gRPC server with ingress and health registered.
type Server struct {
	sink   FrameSink
	grpc   *grpc.Server
	health *health.Server
	logger zerolog.Logger
}

func New(sink FrameSink) *Server {
	g := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor()),
		grpc.StreamInterceptor(observability.StreamServerInterceptor(metrics.DefaultMetrics, SessionIDKey)),
	)

	s := &Server{
		sink:   sink,
		grpc:   g,
		health: health.NewServer(),
		logger: logging.WithComponent("grpc"),
	}

	grpc_health_v1.RegisterHealthServer(g, s.health)
	RegisterAudioIngressServer(g, s)
	reflection.Register(g)

	s.SetServing(false)
	return s
}

// SetServing flips the health status of the server and the ingress service.
func (s *Server) SetServing(serving bool) {
	st := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		st = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Serve accepts connections on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC ingress listening")
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop reports NOT_SERVING and drains open streams. Streams still open when
// ctx ends are cut.
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Msg("graceful stop timed out, closing open streams")
		s.grpc.Stop()
		<-done
	}
}

// StreamAudio feeds every received chunk to the session named in the stream
// metadata. The stream ends with NotFound once the session is gone.
func (s *Server) StreamAudio(stream AudioIngress_StreamAudioServer) error {
	md, _ := metadata.FromIncomingContext(stream.Context())
	ids := md.Get(SessionIDKey)
	if len(ids) == 0 || ids[0] == "" {
		return status.Errorf(codes.InvalidArgument, "missing %s metadata", SessionIDKey)
	}
	id := ids[0]

	logger := s.logger.With().
		Str("session", id).
		Str("stream", uuid.NewString()).
		Logger()
	logger.Debug().Msg("audio stream opened")

	var frames int
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			logger.Debug().Int("frames", frames).Msg("audio stream closed by client")
			return stream.SendAndClose(&emptypb.Empty{})
		}
		if err != nil {
			return err
		}

		if err := s.sink.Frame(id, chunk.GetValue()); err != nil {
			logger.Warn().Err(err).Int("frames", frames).Msg("frame rejected")
			if errors.Is(err, keeper.ErrNotFound) {
				return status.Error(codes.NotFound, err.Error())
			}
			return status.Error(codes.Internal, err.Error())
		}
		frames++
	}
}
