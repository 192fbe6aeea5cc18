package observability

import (
	"context"
	"fmt"
	"strings"

	"craftcrm/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SetupTracing 初始化 OpenTelemetry TracerProvider，返回关闭函数
func SetupTracing(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	tc := cfg.Monitoring.Tracing
	if !tc.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	endpoint := tc.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:4317"
	}

	var opts []otlptracegrpc.Option
	opts = append(opts, otlptracegrpc.WithEndpoint(endpointHost(endpoint)))
	if tc.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	svcName := tc.ServiceName
	if svcName == "" {
		svcName = "craftcrm"
	}
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			attribute.String("service.name", svcName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("resource: %w", err)
	}

	ratio := tc.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.1
	}
	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// endpointHost 从 http://host:port 或 host:port 提取 host:port 供 gRPC 使用
func endpointHost(s string) string {
	if strings.HasPrefix(s, "http://") {
		return strings.TrimPrefix(s, "http://")
	}
	if strings.HasPrefix(s, "https://") {
		return strings.TrimPrefix(s, "https://")
	}
	return s
}
