// Package observability provides the monitoring and debugging capabilities
// shared by nexuscore's ten components through metrics, structured logging,
// and distributed tracing.
//
// # Overview
//
// The observability package implements the three pillars of observability:
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//  3. Tracing - Distributed request tracing with OpenTelemetry
//
// # Architecture
//
// The package is designed to be:
//   - Low-overhead: Minimal performance impact on a locally-hosted daemon
//   - Type-safe: Strongly-typed APIs reduce configuration errors
//   - Production-ready: Built-in security (redaction) and reliability features
//   - Standards-based: Uses Prometheus, OpenTelemetry, and slog
//
// # Metrics
//
// Metrics are implemented using Prometheus client libraries and track:
//   - Model Router (C6) request latency and token usage
//   - Tool Registry & Executor (C5) invocation outcomes
//   - Mode Manager (C4) active mode and transitions
//   - Sensor Daemon (C3) resource samples
//   - Scheduler (C8) job outcomes
//   - Request Monitor (C9) HTTP request/response metrics
//   - Error rates by component and ErrorKind
//   - Active session counts
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//
//	// Track an LLM request routed to a model role
//	start := time.Now()
//	// ... make LLM request via the Model Router ...
//	metrics.RecordLLMRequest("coder", "claude-opus", "success",
//	    time.Since(start).Seconds(), promptTokens, completionTokens)
//
//	// Track tool execution
//	start = time.Now()
//	// ... execute tool via the Tool Registry & Executor ...
//	metrics.RecordToolExecution("exec", "success", time.Since(start).Seconds())
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic request ID correlation from context
//   - Sensitive data redaction (API keys, passwords, tokens)
//   - JSON output for production, text for development
//   - Configurable log levels
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    AddSource: true,
//	})
//
//	// Add context IDs for correlation
//	ctx := observability.AddRequestID(ctx, requestID)
//	ctx = observability.AddSessionID(ctx, sessionID)
//	ctx = observability.AddChatChannel(ctx, chatmodel.ChannelChat)
//
//	// Structured logging with automatic context correlation
//	logger.Info(ctx, "task executor received request",
//	    "user_id", userID,
//	    "message_length", len(content),
//	)
//
//	// Error logging with automatic redaction
//	logger.Error(ctx, "model router request failed",
//	    "error", err,
//	    "provider", "anthropic",
//	    "api_key", apiKey, // Automatically redacted
//	)
//
// # Tracing
//
// Distributed tracing uses OpenTelemetry to track a task across the Task
// Executor's state machine (C7) and the components it calls:
//   - End-to-end request visualization across INIT -> LLM_CALL -> TOOL_EXECUTION -> SYNTHESIS
//   - Performance bottleneck identification
//   - Service dependency mapping (C7 -> C6 -> C10, C7 -> C5)
//   - Error correlation across components
//
// Example usage:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "nexuscore",
//	    ServiceVersion: version,
//	    Environment:    "production",
//	    Endpoint:       "localhost:4317", // OTLP collector
//	    SamplingRate:   0.1,              // Sample 10% of traces
//	})
//	defer shutdown(context.Background())
//
//	// Trace task processing
//	ctx, span := tracer.TraceMessageProcessing(ctx, string(channel), "inbound", sessionID)
//	defer span.End()
//
//	// Trace LLM requests routed through the Model Router
//	ctx, llmSpan := tracer.TraceLLMRequest(ctx, "anthropic", "claude-opus")
//	defer llmSpan.End()
//	tracer.SetAttributes(llmSpan, "prompt_tokens", 100, "completion_tokens", 500)
//
//	// Trace tool execution
//	ctx, toolSpan := tracer.TraceToolExecution(ctx, "exec")
//	defer toolSpan.End()
//	if err != nil {
//	    tracer.RecordError(toolSpan, err)
//	}
//
// # Context Propagation
//
// All three components integrate with Go's context for automatic correlation:
//
//	// Add IDs to context
//	ctx = observability.AddRequestID(ctx, "req-123")
//	ctx = observability.AddSessionID(ctx, "sess-456")
//	ctx = observability.AddUserID(ctx, "user-789")
//	ctx = observability.AddChatChannel(ctx, chatmodel.ChannelChat)
//
//	// IDs automatically appear in logs
//	logger.Info(ctx, "processing") // Includes request_id, session_id, etc.
//
//	// Spans inherit context
//	ctx, span := tracer.Start(ctx, "operation")
//	// Trace context propagates to child spans
//
// # Security Considerations
//
// The logging component automatically redacts:
//   - API keys (Anthropic, OpenAI, generic)
//   - Passwords and secrets
//   - JWT tokens
//   - Bearer tokens
//   - Custom patterns via configuration
//
// Sensitive fields in maps are also redacted:
//   - password, passwd, pwd
//   - secret, api_key, apikey
//   - token, auth, authorization
//   - private_key, privatekey
//
// # Performance
//
// The observability system is designed for minimal overhead on a
// single-tenant, locally-hosted daemon:
//   - Metrics use lock-free counters where possible
//   - Logging with slog is highly efficient
//   - Tracing supports sampling to reduce overhead
//   - Context propagation is zero-allocation in most cases
//
// # Monitoring Dashboard
//
// The metrics exposed can be used to build dashboards:
//
//	# LLM request latency (95th percentile)
//	histogram_quantile(0.95, rate(nexuscore_llm_request_duration_seconds_bucket[5m]))
//
//	# Error rate by component and kind
//	rate(nexuscore_errors_total[5m])
//
//	# Active sessions
//	nexuscore_active_sessions
//
//	# Tool execution time
//	rate(nexuscore_tool_execution_duration_seconds_sum[5m]) /
//	rate(nexuscore_tool_execution_duration_seconds_count[5m])
//
//	# Scheduler job failures
//	rate(nexuscore_scheduler_job_runs_total{status="error"}[5m])
//
// # Alerting
//
// Recommended alerts based on metrics:
//   - High error rate: nexuscore_errors_total > threshold
//   - High LLM latency: p95 latency > 10s
//   - Sensor daemon pressure: nexuscore_sensor_percent above mode thresholds
//   - Session accumulation: nexuscore_active_sessions growing unbounded
//
// # Further Reading
//
//   - Prometheus best practices: https://prometheus.io/docs/practices/naming/
//   - OpenTelemetry specification: https://opentelemetry.io/docs/specs/otel/
//   - slog documentation: https://pkg.go.dev/log/slog
package observability
