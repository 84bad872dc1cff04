// Package transport serves the recipe pipeline over gRPC. Requests and
// responses use the well-known Struct and ListValue messages so no generated
// stubs are needed:
//
//	rpc Transform(google.protobuf.Struct) returns (google.protobuf.ListValue)
//
// where the request struct carries string fields "recipe" and "body".
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"txservice/internal/logging"
	"txservice/internal/row"
	"txservice/internal/wrangle"
)

const (
	ServiceName     = "txservice.v1.TransformService"
	transformMethod = "/" + ServiceName + "/Transform"
)

// TransformServer is the server side of TransformService.
type TransformServer interface {
	Transform(context.Context, *structpb.Struct) (*structpb.ListValue, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TransformServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Transform", Handler: transformHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "txservice/v1/transform.proto",
}

func transformHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransformServer).Transform(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: transformMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TransformServer).Transform(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type Server struct {
	grpc   *grpc.Server
	health *health.Server
}

func NewServer(svc *wrangle.Service, opts ...grpc.ServerOption) *Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(logUnary)}, opts...)
	s := &Server{
		grpc:   grpc.NewServer(opts...),
		health: health.NewServer(),
	}
	s.grpc.RegisterService(&serviceDesc, &transformService{svc: svc})
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Listen binds addr and serves until Stop.
func (s *Server) Listen(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	logging.L().Info("grpc server listening", zap.String("addr", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

type transformService struct {
	svc *wrangle.Service
}

func (t *transformService) Transform(ctx context.Context, in *structpb.Struct) (*structpb.ListValue, error) {
	recipe, ok := stringField(in, "recipe")
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "recipe is required")
	}
	body, ok := stringField(in, "body")
	if !ok || body == "" {
		return nil, status.Error(codes.InvalidArgument, "body is required")
	}
	out, err := t.svc.Transform(ctx, recipe, []*row.Row{row.New(wrangle.BodyField, body)})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, status.FromContextError(err).Err()
		}
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return rowsToList(out)
}

func stringField(s *structpb.Struct, name string) (string, bool) {
	v, ok := s.GetFields()[name]
	if !ok {
		return "", false
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", false
	}
	return sv.StringValue, true
}

// rowsToList goes through JSON so rows keep their column order.
func rowsToList(rows []*row.Row) (*structpb.ListValue, error) {
	if rows == nil {
		rows = []*row.Row{}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := new(structpb.ListValue)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	fields := []zap.Field{
		zap.String("method", info.FullMethod),
		zap.String("code", code.String()),
		zap.Duration("latency", time.Since(start)),
	}
	if err != nil {
		logging.L().Warn("grpc call failed", append(fields, zap.Error(err))...)
	} else {
		logging.L().Debug("grpc call", fields...)
	}
	return resp, err
}
