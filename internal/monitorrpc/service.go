// Package monitorrpc defines the gRPC surface of a monitor agent.
//
// The service has two unary methods that take google.protobuf.Empty and
// return a google.protobuf.Struct whose values are all strings:
//
//	GetRecord          one flat sample: time, host and every plugin's metrics
//	GetMonitorsConfig  plugin name → serialized plot configuration
//
// The descriptor is written by hand over the well-known types, so no
// generated code is needed on either side.
package monitorrpc

import (
	"context"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName             = "crankmeter.monitor.v1.Monitor"
	MethodGetRecord         = "GetRecord"
	MethodGetMonitorsConfig = "GetMonitorsConfig"
)

// FullMethod returns the "/service/method" path of a method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// MonitorServer is implemented by agents.
type MonitorServer interface {
	GetRecord(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetMonitorsConfig(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// UnimplementedMonitorServer answers every method with codes.Unimplemented.
// Embed it to serve a subset of the methods.
type UnimplementedMonitorServer struct{}

func (UnimplementedMonitorServer) GetRecord(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", MethodGetRecord)
}

func (UnimplementedMonitorServer) GetMonitorsConfig(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", MethodGetMonitorsConfig)
}

// RegisterMonitorServer registers srv on s.
func RegisterMonitorServer(s grpc.ServiceRegistrar, srv MonitorServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes the Monitor service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MonitorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodGetRecord, Handler: unaryHandler(MethodGetRecord, MonitorServer.GetRecord)},
		{MethodName: MethodGetMonitorsConfig, Handler: unaryHandler(MethodGetMonitorsConfig, MonitorServer.GetMonitorsConfig)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "crankmeter/monitor/v1/monitor.proto",
}

type unaryMethod func(MonitorServer, context.Context, *emptypb.Empty) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MonitorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(MonitorServer), ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ToStruct encodes a flat string map.
func ToStruct(m map[string]string) *structpb.Struct {
	fields := make(map[string]*structpb.Value, len(m))
	for k, v := range m {
		fields[k] = structpb.NewStringValue(v)
	}
	return &structpb.Struct{Fields: fields}
}

// FromStruct decodes a Struct into a flat string map. Non-string scalars are
// formatted; nested lists and structs are kept in their JSON form.
func FromStruct(s *structpb.Struct) map[string]string {
	out := make(map[string]string, len(s.GetFields()))
	for k, v := range s.GetFields() {
		switch kind := v.GetKind().(type) {
		case *structpb.Value_StringValue:
			out[k] = kind.StringValue
		case *structpb.Value_NumberValue:
			out[k] = strconv.FormatFloat(kind.NumberValue, 'f', -1, 64)
		case *structpb.Value_BoolValue:
			out[k] = strconv.FormatBool(kind.BoolValue)
		case *structpb.Value_NullValue:
			out[k] = ""
		default:
			raw, err := v.MarshalJSON()
			if err != nil {
				continue
			}
			out[k] = string(raw)
		}
	}
	return out
}
