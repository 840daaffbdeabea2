package grpc

import (
    "context"
    "crypto/tls"
    "net"
    "sync"
    "time"

    "google.golang.org/grpc"
    "google.golang.org/grpc/credentials"
    "google.golang.org/grpc/health"
    healthpb "google.golang.org/grpc/health/grpc_health_v1"
    "google.golang.org/grpc/keepalive"

    obsmetrics "github.com/amirimatin/go-meshpubsub/pkg/observability/metrics"
    "github.com/amirimatin/go-meshpubsub/pkg/observability/tracing"
    "github.com/amirimatin/go-meshpubsub/pkg/transport"
)

const (
    managementService = "hps.v1.Management"
    eventsService     = "hps.v1.Events"
)

// Server implements transport.RPCServer over gRPC using a JSON codec.
type Server struct {
    bind   string
    tlsCfg *tls.Config

    mu  sync.Mutex
    lis net.Listener
    srv *grpc.Server
}

func NewServer(bind string) *Server { return &Server{bind: bind} }

// UseTLS enables TLS for the gRPC server using the provided config.
func (s *Server) UseTLS(cfg *tls.Config) *Server { s.tlsCfg = cfg; return s }

// internal request/response types used over gRPC JSON codec
type empty struct{}
type statusBlob struct{ Data []byte `json:"data"` }
type watchReq struct{}

// managementServer defines the methods we expose.
type managementServer interface {
    GetStatus(ctx context.Context, in *empty) (*statusBlob, error)
    Subscribe(ctx context.Context, in *transport.SubscribeRequest) (*transport.SubscribeResponse, error)
    Unsubscribe(ctx context.Context, in *transport.UnsubscribeRequest) (*transport.SubscribeResponse, error)
    Publish(ctx context.Context, in *transport.PublishRequest) (*transport.PublishResponse, error)
    Messages(ctx context.Context, in *transport.MessagesRequest) (*transport.MessagesResponse, error)
}

type mgmtImpl struct{ h transport.Handlers }

func (m *mgmtImpl) GetStatus(ctx context.Context, _ *empty) (*statusBlob, error) {
    if m.h.Status == nil { return &statusBlob{}, nil }
    ctx, end := tracing.StartSpan(ctx, "grpc.status")
    defer end()
    b, err := m.h.Status(ctx)
    if err != nil { return nil, err }
    return &statusBlob{Data: b}, nil
}

func (m *mgmtImpl) Subscribe(ctx context.Context, in *transport.SubscribeRequest) (*transport.SubscribeResponse, error) {
    if in == nil { in = &transport.SubscribeRequest{} }
    if m.h.Subscribe == nil { return &transport.SubscribeResponse{Error: "subscribe not supported"}, nil }
    ctx, end := tracing.StartSpan(ctx, "grpc.subscribe", "service", in.Service)
    defer end()
    out, err := m.h.Subscribe(ctx, *in)
    if err != nil { return &transport.SubscribeResponse{Error: err.Error()}, nil }
    return &out, nil
}

func (m *mgmtImpl) Unsubscribe(ctx context.Context, in *transport.UnsubscribeRequest) (*transport.SubscribeResponse, error) {
    if in == nil { in = &transport.UnsubscribeRequest{} }
    if m.h.Unsubscribe == nil { return &transport.SubscribeResponse{Error: "unsubscribe not supported"}, nil }
    ctx, end := tracing.StartSpan(ctx, "grpc.unsubscribe", "service", in.Service)
    defer end()
    out, err := m.h.Unsubscribe(ctx, *in)
    if err != nil { return &transport.SubscribeResponse{Error: err.Error()}, nil }
    return &out, nil
}

func (m *mgmtImpl) Publish(ctx context.Context, in *transport.PublishRequest) (*transport.PublishResponse, error) {
    if in == nil { in = &transport.PublishRequest{} }
    if m.h.Publish == nil { return &transport.PublishResponse{Error: "publish not supported"}, nil }
    ctx, end := tracing.StartSpan(ctx, "grpc.publish", "service", in.Service)
    defer end()
    out, err := m.h.Publish(ctx, *in)
    if err != nil { return &transport.PublishResponse{Error: err.Error()}, nil }
    return &out, nil
}

func (m *mgmtImpl) Messages(ctx context.Context, in *transport.MessagesRequest) (*transport.MessagesResponse, error) {
    if in == nil { in = &transport.MessagesRequest{} }
    if m.h.Messages == nil { return &transport.MessagesResponse{Error: "messages not supported"}, nil }
    out, err := m.h.Messages(ctx, *in)
    if err != nil { return &transport.MessagesResponse{Error: err.Error()}, nil }
    return &out, nil
}

// unary builds a hand-written method descriptor (no codegen required).
func unary[Req any, Resp any](name string, call func(managementServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
    full := "/" + managementService + "/" + name
    return grpc.MethodDesc{
        MethodName: name,
        Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
            in := new(Req)
            if err := dec(in); err != nil { return nil, err }
            if interceptor == nil { return call(srv.(managementServer), ctx, in) }
            info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
            handler := func(ctx context.Context, req interface{}) (interface{}, error) {
                return call(srv.(managementServer), ctx, req.(*Req))
            }
            return interceptor(ctx, in, info, handler)
        },
    }
}

var _Management_serviceDesc = grpc.ServiceDesc{
    ServiceName: managementService,
    HandlerType: (*managementServer)(nil),
    Methods: []grpc.MethodDesc{
        unary[empty, statusBlob]("GetStatus", managementServer.GetStatus),
        unary[transport.SubscribeRequest, transport.SubscribeResponse]("Subscribe", managementServer.Subscribe),
        unary[transport.UnsubscribeRequest, transport.SubscribeResponse]("Unsubscribe", managementServer.Unsubscribe),
        unary[transport.PublishRequest, transport.PublishResponse]("Publish", managementServer.Publish),
        unary[transport.MessagesRequest, transport.MessagesResponse]("Messages", managementServer.Messages),
    },
}

// --- Event streaming ---

type eventsServer interface {
    Watch(*watchReq, grpc.ServerStream) error
}

type eventsImpl struct {
    watch transport.WatchFunc
    // done is closed when the server context ends so that open streams do
    // not hold up a graceful stop.
    done <-chan struct{}
}

func (e *eventsImpl) Watch(_ *watchReq, stream grpc.ServerStream) error {
    obsmetrics.WatchStreams.Inc()
    defer obsmetrics.WatchStreams.Dec()
    ctx, cancel := context.WithCancel(stream.Context())
    defer cancel()
    go func() {
        select {
        case <-e.done:
            cancel()
        case <-ctx.Done():
        }
    }()
    for ev := range e.watch(ctx) {
        if err := stream.SendMsg(&ev); err != nil { return err }
    }
    return nil
}

var _Events_serviceDesc = grpc.ServiceDesc{
    ServiceName: eventsService,
    HandlerType: (*eventsServer)(nil),
    Streams: []grpc.StreamDesc{{
        StreamName:    "Watch",
        ServerStreams: true,
        Handler:       _Events_Watch_Handler,
    }},
}

func _Events_Watch_Handler(srv interface{}, stream grpc.ServerStream) error {
    m := new(watchReq)
    if err := stream.RecvMsg(m); err != nil { return err }
    return srv.(eventsServer).Watch(m, stream)
}

func (s *Server) Start(ctx context.Context, h transport.Handlers) error {
    lis, err := net.Listen("tcp", s.bind)
    if err != nil { return err }
    // Force JSON codec to avoid requiring protobuf types
    var opts []grpc.ServerOption
    opts = append(opts, grpc.ForceServerCodec(jsonCodec{}))
    // keepalive settings for long-lived streams
    opts = append(opts, grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{MinTime: 5 * time.Second, PermitWithoutStream: true}))
    opts = append(opts, grpc.KeepaliveParams(keepalive.ServerParameters{Time: 30 * time.Second, Timeout: 10 * time.Second}))
    if s.tlsCfg != nil { opts = append(opts, grpc.Creds(credentials.NewTLS(s.tlsCfg))) }
    srv := grpc.NewServer(opts...)
    healthpb.RegisterHealthServer(srv, health.NewServer())
    srv.RegisterService(&_Management_serviceDesc, &mgmtImpl{h: h})
    if h.Watch != nil {
        srv.RegisterService(&_Events_serviceDesc, &eventsImpl{watch: h.Watch, done: ctx.Done()})
    }
    s.mu.Lock()
    s.lis, s.srv = lis, srv
    s.mu.Unlock()

    go func() {
        <-ctx.Done()
        c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
        defer cancel()
        _ = s.Stop(c)
    }()
    go func() { _ = srv.Serve(lis) }()
    return nil
}

// Addr returns the listening address once started, else the bind address.
func (s *Server) Addr() string {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.lis != nil { return s.lis.Addr().String() }
    return s.bind
}

func (s *Server) Stop(ctx context.Context) error {
    s.mu.Lock()
    srv, lis := s.srv, s.lis
    s.srv, s.lis = nil, nil
    s.mu.Unlock()
    if srv == nil { return nil }
    ch := make(chan struct{})
    go func() { srv.GracefulStop(); close(ch) }()
    select {
    case <-ch:
    case <-ctx.Done():
        srv.Stop()
    }
    if lis != nil { _ = lis.Close() }
    return nil
}

var _ transport.RPCServer = (*Server)(nil)
