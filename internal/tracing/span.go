package tracing

import (
	"context"
	"maps"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// StartCallSpan starts a client span for one monitor RPC against host.
func StartCallSpan(ctx context.Context, tracer trace.Tracer, host, method string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "monitor."+method,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("rpc.system", "grpc"),
		attribute.String("rpc.method", method),
	)
	if host != "" {
		span.SetAttributes(attribute.String("crankmeter.host", host))
	}
	return ctx, span
}

// EndSpan sets the span status from err and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// mdCarrier lets the OTel propagator read and write gRPC metadata.
type mdCarrier metadata.MD

var _ propagation.TextMapCarrier = mdCarrier{}

func (c mdCarrier) Get(key string) string {
	if vs := metadata.MD(c).Get(key); len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func (c mdCarrier) Set(key, value string) { metadata.MD(c).Set(key, value) }

func (c mdCarrier) Keys() []string { return slices.Collect(maps.Keys(c)) }

// InjectGRPCMetadata injects W3C trace context into gRPC metadata.
func InjectGRPCMetadata(ctx context.Context, md metadata.MD) {
	otel.GetTextMapPropagator().Inject(ctx, mdCarrier(md))
}

// OutgoingContext returns ctx with its trace context appended to the outgoing
// gRPC metadata.
func OutgoingContext(ctx context.Context) context.Context {
	md, ok := metadata.FromOutgoingContext(ctx)
	if ok {
		md = md.Copy()
	} else {
		md = metadata.New(nil)
	}
	InjectGRPCMetadata(ctx, md)
	return metadata.NewOutgoingContext(ctx, md)
}

// ExtractGRPCMetadata returns ctx carrying the remote span context found in
// the incoming gRPC metadata, if any.
func ExtractGRPCMetadata(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, mdCarrier(md))
}

// UnaryServerInterceptor opens a server span per call, parented on the
// caller's trace context.
func UnaryServerInterceptor(tracer trace.Tracer) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, span := tracer.Start(ExtractGRPCMetadata(ctx), info.FullMethod,
			trace.WithSpanKind(trace.SpanKindServer),
		)
		resp, err := handler(ctx, req)
		EndSpan(span, err)
		return resp, err
	}
}
