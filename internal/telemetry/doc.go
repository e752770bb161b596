// Package telemetry wires OpenTelemetry tracing and metrics for askcatalog.
//
// Spans cover each pipeline stage and the outbound embedding and completion
// calls; meters record stage latency and fallback counts. Export is OTLP over
// gRPC or HTTP.
//
//	tel, err := telemetry.New(ctx, telemetry.ConfigFrom(cfg.Telemetry, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Tests use NewTestTelemetry, which records spans and metrics in memory.
package telemetry
