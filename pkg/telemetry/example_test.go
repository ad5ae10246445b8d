package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/jolinysx/Snowflake-RBAC-Structure-v2/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	// Create configuration
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "snowgov"
	cfg.ServiceVersion = "1.0.0"

	// Initialize telemetry
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	// Start metrics server (non-blocking)
	if err := tel.StartMetricsServer(); err != nil {
		panic(err)
	}

	// Add telemetry to context
	ctx := tel.WithContext(context.Background())

	// Use telemetry
	logger := telemetry.FromContext(ctx)
	logger.Info("Governance engine started")

	// Output can vary, so we don't specify output for this example
}

// Example_structuredLogging demonstrates structured logging features.
func Example_structuredLogging() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific logger
	logger := tel.Logger.NewComponentLogger("recorder")

	// Add context fields
	logger = logger.WithFields(map[string]interface{}{
		"policy_id":   "pol-123",
		"resource_id": "clone-456",
	})

	// Log at different levels
	logger.Debug("Evaluating clone operation")
	logger.Info("Operation recorded successfully")
	logger.Warn("Policy violated, operation flagged")

	// Log with error
	err := fmt.Errorf("database locked")
	logger.WithError(err).Error("Failed to append audit entry")

	// Output varies, no output specified
}

// Example_distributedTracing demonstrates distributed tracing usage.
func Example_distributedTracing() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Tracing.Exporter = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start a span
	ctx, span := tel.Tracer.Start(ctx, "record_operation")
	defer span.End()

	// Add attributes
	span.SetAttributes(
		telemetry.AttrResourceID.String("clone-456"),
		telemetry.AttrOperation.String("CREATE"),
	)

	// Nested span
	ctx, childSpan := tel.Tracer.StartEvaluationSpan(ctx, "CREATE", "clone-456")
	defer childSpan.End()

	childSpan.SetAttributes(
		telemetry.AttrScope.String("PROD"),
		telemetry.AttrActor.String("analyst@example.com"),
	)

	// Simulate work
	time.Sleep(10 * time.Millisecond)

	// Record success
	telemetry.RecordSuccess(childSpan)

	_ = ctx

	// Output varies, no output specified
}

// Example_metricsCollection demonstrates metrics collection.
func Example_metricsCollection() {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = true

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Record evaluation metrics
	tel.Metrics.RecordEvaluation("CREATE", false, 5*time.Millisecond, 0)

	// Record violation metrics
	tel.Metrics.RecordViolation("SENSITIVE_DATA", "CRITICAL")
	tel.Metrics.RecordBlockedOperation("CREATE", "PROD")

	// Record recording metrics
	tel.Metrics.RecordOperationRecorded("CREATE", "BLOCKED")
	tel.Metrics.RecordAccessRecorded("SELECT")

	// Record error metrics
	tel.Metrics.RecordError("storage")

	// Set gauge values
	tel.Metrics.SetOpenViolations(12)

	fmt.Println("Metrics recorded successfully")
	// Output: Metrics recorded successfully
}

// Example_eventPublishing demonstrates event publishing and subscription.
func Example_eventPublishing() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false // Synchronous for example

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe to events
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
	}, nil) // No filter, receive all events

	// Publish events
	tel.Events.PublishViolationDetected("vio-1", "pol-123", "no-prod-clones", "clone-456", "ERROR")
	tel.Events.PublishOperationBlocked("CREATE", "clone-456", "analyst@example.com", 1)

	// Output varies due to async nature, no output specified
}

// Example_evaluationInstrumentation demonstrates instrumenting a full evaluation.
func Example_evaluationInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start evaluation context
	ctx = telemetry.WithEvaluationContext(ctx, "CREATE", "clone-456", "analyst@example.com")

	// Get logger from context
	logger := telemetry.FromContext(ctx)
	logger.Info("Evaluating policies")

	// Simulate work
	time.Sleep(10 * time.Millisecond)

	// End evaluation context
	telemetry.EndEvaluationContext(ctx, "CREATE", false, 0, nil)

	fmt.Println("Evaluation instrumentation complete")
	// Output: Evaluation instrumentation complete
}

// Example_scanInstrumentation demonstrates instrumenting a compliance scan.
func Example_scanInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Record scan pass
	err := telemetry.RecordScanPass(ctx, "PROD", func(ctx context.Context) error {
		// Simulate scan work
		time.Sleep(15 * time.Millisecond)
		return nil
	})

	if err == nil {
		fmt.Println("Scan completed successfully")
	}

	// Output: Scan completed successfully
}

// Example_instrumentedOperation demonstrates using the InstrumentedContext helper.
func Example_instrumentedOperation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start instrumented operation
	ic := telemetry.StartOperation(ctx, "policy.seed",
		attribute.String("seed.path", "/etc/snowgov/policies"),
	)
	defer ic.End(nil)

	// Use the instrumented context
	ic.Logger.Info("Loading policy seed files")

	// Simulate loading
	time.Sleep(5 * time.Millisecond)

	ic.Logger.Debug("Policy seed load complete")

	fmt.Println("Operation instrumentation complete")
	// Output: Operation instrumentation complete
}

// Example_eventFiltering demonstrates event filtering.
func Example_eventFiltering() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe with level filter (only warnings and errors)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Important event: %s\n", event.Type)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	// Subscribe with type filter (only blocked operations)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Blocked: %s\n", event.Message)
	}, telemetry.FilterByType(telemetry.EventTypeOperationBlocked))

	// Publish various events
	tel.Events.PublishPolicyChanged("pol-1", "no-prod-clones", "created")       // Info - filtered
	tel.Events.PublishViolationDetected("vio-1", "pol-1", "no-prod-clones", "clone-1", "ERROR") // Warning - passes
	tel.Events.PublishOperationBlocked("CREATE", "clone-1", "analyst", 1)       // Error - passes

	// Output varies, no output specified
}

// Example_productionConfiguration demonstrates production-ready configuration.
func Example_productionConfiguration() {
	cfg := telemetry.ProductionConfig()

	// Customize for your environment
	cfg.ServiceName = "snowgov"
	cfg.ServiceVersion = "1.2.3"
	cfg.Environment = "production"

	// Configure OTLP exporter
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.Endpoint = "otel-collector.monitoring.svc.cluster.local:4317"
	cfg.Tracing.SamplingRate = 0.1 // 10% sampling
	cfg.Tracing.Insecure = false   // Use TLS in production

	// Configure metrics
	cfg.Metrics.ListenAddress = ":9090"
	cfg.Metrics.Namespace = "snowgov"

	// Configure events
	cfg.Events.BufferSize = 10000
	cfg.Events.FlushInterval = 5 * time.Second

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	fmt.Println("Production configuration validated")
	// Output: Production configuration validated
}

// Example_multipleComponents demonstrates telemetry in a multi-component system.
func Example_multipleComponents() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific loggers
	recorderLogger := tel.Logger.NewComponentLogger("recorder")
	scannerLogger := tel.Logger.NewComponentLogger("scanner")
	purgerLogger := tel.Logger.NewComponentLogger("purger")

	recorderLogger.Info("Recorder initialized")
	scannerLogger.Info("Starting compliance scan")
	purgerLogger.Info("Retention purge scheduled")

	fmt.Println("Multi-component logging complete")
	// Output: Multi-component logging complete
}
