package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The ingress service is a single client stream of raw audio chunks using
// well-known protobuf types, so no generated code is needed:
//
//	service AudioIngress {
//	  rpc StreamAudio(stream google.protobuf.BytesValue) returns (google.protobuf.Empty);
//	}
const (
	ServiceName       = "luis.ingress.v1.AudioIngress"
	StreamAudioMethod = "/" + ServiceName + "/StreamAudio"

	// SessionIDKey is the metadata key carrying the session id of a stream.
	SessionIDKey = "x-session-id"
)

// AudioIngressServer is the server API for the ingress service.
type AudioIngressServer interface {
	StreamAudio(AudioIngress_StreamAudioServer) error
}

type AudioIngress_StreamAudioServer interface {
	SendAndClose(*emptypb.Empty) error
	Recv() (*wrapperspb.BytesValue, error)
	grpc.ServerStream
}

type audioIngressStreamAudioServer struct {
	grpc.ServerStream
}

func (x *audioIngressStreamAudioServer) SendAndClose(m *emptypb.Empty) error {
	return x.ServerStream.SendMsg(m)
}

func (x *audioIngressStreamAudioServer) Recv() (*wrapperspb.BytesValue, error) {
	m := new(wrapperspb.BytesValue)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func streamAudioHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(AudioIngressServer).StreamAudio(&audioIngressStreamAudioServer{stream})
}

// AudioIngress_ServiceDesc is the grpc.ServiceDesc for the ingress service.
var AudioIngress_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AudioIngressServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamAudio",
			Handler:       streamAudioHandler,
			ClientStreams: true,
		},
	},
	Metadata: "luis/ingress/v1/ingress.proto",
}

// RegisterAudioIngressServer registers srv on s.
func RegisterAudioIngressServer(s grpc.ServiceRegistrar, srv AudioIngressServer) {
	s.RegisterService(&AudioIngress_ServiceDesc, srv)
}

// AudioIngressClient is the client API for the ingress service.
type AudioIngressClient struct {
	cc grpc.ClientConnInterface
}

func NewAudioIngressClient(cc grpc.ClientConnInterface) *AudioIngressClient {
	return &AudioIngressClient{cc: cc}
}

// StreamAudio opens an audio stream. The session id must be attached to ctx
// as outgoing metadata under SessionIDKey.
func (c *AudioIngressClient) StreamAudio(ctx context.Context, opts ...grpc.CallOption) (AudioIngress_StreamAudioClient, error) {
	stream, err := c.cc.NewStream(ctx, &AudioIngress_ServiceDesc.Streams[0], StreamAudioMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &audioIngressStreamAudioClient{stream}, nil
}

type AudioIngress_StreamAudioClient interface {
	Send(*wrapperspb.BytesValue) error
	CloseAndRecv() (*emptypb.Empty, error)
	grpc.ClientStream
}

type audioIngressStreamAudioClient struct {
	grpc.ClientStream
}

func (x *audioIngressStreamAudioClient) Send(m *wrapperspb.BytesValue) error {
	return x.ClientStream.SendMsg(m)
}

func (x *audioIngressStreamAudioClient) CloseAndRecv() (*emptypb.Empty, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(emptypb.Empty)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
