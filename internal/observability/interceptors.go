package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/hyy20190326/luis-0509/internal/observability/metrics"
)

// UnaryServerInterceptor logs unary calls at debug level. Only the health
// service is unary, and probes are frequent.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Debug().
			Str("method", info.FullMethod).
			Stringer("code", status.Code(err)).
			Dur("duration", time.Since(start)).
			Msg("gRPC unary call")
		return resp, err
	}
}

// StreamServerInterceptor records stream metrics and logs every finished
// stream with the session id carried in the sessionKey metadata entry.
// Client cancellation counts as success.
func StreamServerInterceptor(m *metrics.Metrics, sessionKey string) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		m.RecordStreamStart()

		err := handler(srv, ss)

		elapsed := time.Since(start)
		code := status.Code(err)
		ok := code == codes.OK || code == codes.Canceled
		m.RecordStreamEnd(ok, elapsed.Seconds())

		var ev *zerolog.Event
		if ok {
			ev = log.Info()
		} else {
			ev = log.Warn().Err(err)
		}
		ev.Str("method", info.FullMethod).
			Str("session", sessionFrom(ss.Context(), sessionKey)).
			Stringer("code", code).
			Dur("duration", elapsed).
			Msg("gRPC stream finished")
		return err
	}
}

func sessionFrom(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}
