// Package telemetry provides observability instrumentation for the governance engine.
//
// The telemetry package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a unified system
// for monitoring policy evaluations, violations, and audit recording.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for violation notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "snowgov"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context propagation:
//
//	logger := tel.Logger.NewComponentLogger("recorder")
//	logger = logger.WithPolicyID("pol-123").WithResourceID("clone-456")
//	logger.Info("Recording clone operation")
//	logger.WithError(err).Error("Audit append failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into evaluation flow and performance:
//
//	ctx, span := tel.Tracer.StartEvaluationSpan(ctx, "CREATE", resourceID)
//	defer span.End()
//
//	span.SetAttributes(
//	    telemetry.AttrActor.String(actor),
//	    telemetry.AttrScope.String(scope),
//	)
//
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development), None (testing)
//
// # Metrics
//
// Prometheus metrics track evaluation and recording behavior:
//
//	tel.Metrics.RecordEvaluation("CREATE", blocked, duration, skipped)
//	tel.Metrics.RecordViolation("SENSITIVE_DATA", "CRITICAL")
//	tel.Metrics.RecordBlockedOperation("CREATE", "PROD")
//	tel.Metrics.RecordRecordingFailure("audit")
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering:
//
//	tel.Events.PublishViolationDetected(violationID, policyID, policyName, resourceID, severity)
//	tel.Events.PublishOperationBlocked("CREATE", resourceID, actor, violationCount)
//
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// Event filters: FilterByLevel, FilterByType, FilterByPolicyID, FilterByResourceID
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
//
// This ensures all buffered events are published and pending traces exported.
//
// # Common Metrics
//
// Key metrics exposed:
//
//   - snowgov_evaluations_total{operation,blocked}
//   - snowgov_evaluation_duration_seconds{operation}
//   - snowgov_policies_skipped_total
//   - snowgov_violations_detected_total{kind,severity}
//   - snowgov_blocked_operations_total{operation,scope}
//   - snowgov_open_violations
//   - snowgov_operations_recorded_total{operation,outcome}
//   - snowgov_recording_failures_total{record_type}
//   - snowgov_scans_completed_total{status}
//   - snowgov_rows_purged_total{collection}
//   - snowgov_errors_by_class_total{class}
//
// # Security Considerations
//
//   - Never log sensitive data (credentials, keys, tokens)
//   - Sanitize resource IDs if they contain PII
//   - Use secure connections (TLS) for trace exporters in production
//   - Limit metrics endpoint access via network policies
package telemetry
