package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the process-wide Prometheus metric set for the ambient
// observability stack: LLM call performance, tool execution, mode/sensor
// state, scheduler job outcomes, and the HTTP surface.
type Metrics struct {
	// LLMRequestDuration measures LLM adapter call latency in seconds.
	// Labels: model_role, model_id.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM adapter calls.
	// Labels: model_role, model_id, status (success|error).
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption. Labels: model_role, type (prompt|completion).
	LLMTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations. Labels: tool_name, status.
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds. Labels: tool_name.
	ToolExecutionDuration *prometheus.HistogramVec

	// ErrorCounter tracks errors by component and taxonomy kind.
	ErrorCounter *prometheus.CounterVec

	// ActiveSessions is a gauge of currently active sessions.
	ActiveSessions prometheus.Gauge

	// CurrentMode is a gauge set to 1 for the active mode label, 0 otherwise.
	CurrentMode *prometheus.GaugeVec

	// SensorSample observes one sensor reading. Labels: metric (cpu|memory|disk).
	SensorSample *prometheus.GaugeVec

	// SchedulerJobDuration measures scheduler job run time in seconds. Labels: job.
	SchedulerJobDuration *prometheus.HistogramVec

	// SchedulerJobCounter counts scheduler job runs. Labels: job, status (completed|failed|skipped).
	SchedulerJobCounter *prometheus.CounterVec

	// HTTPRequestDuration measures HTTP API request latency. Labels: method, path, status_code.
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestCounter counts HTTP requests. Labels: method, path, status_code.
	HTTPRequestCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the default registry.
// Call once at startup.
func NewMetrics() *Metrics {
	return &Metrics{
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nexuscore_llm_request_duration_seconds",
				Help:    "Duration of LLM adapter requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"model_role", "model_id"},
		),
		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexuscore_llm_requests_total",
				Help: "Total LLM adapter requests by model role, id, and status",
			},
			[]string{"model_role", "model_id", "status"},
		),
		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexuscore_llm_tokens_total",
				Help: "Total tokens used by model role and type",
			},
			[]string{"model_role", "type"},
		),
		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexuscore_tool_executions_total",
				Help: "Total tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nexuscore_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexuscore_errors_total",
				Help: "Total errors by component and taxonomy kind",
			},
			[]string{"component", "kind"},
		),
		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "nexuscore_active_sessions",
				Help: "Current number of active sessions",
			},
		),
		CurrentMode: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nexuscore_mode",
				Help: "1 for the currently active mode, 0 for all others",
			},
			[]string{"mode"},
		),
		SensorSample: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nexuscore_sensor_percent",
				Help: "Latest sensor sample percentage by metric",
			},
			[]string{"metric"},
		),
		SchedulerJobDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nexuscore_scheduler_job_duration_seconds",
				Help:    "Duration of scheduler job runs in seconds",
				Buckets: []float64{0.01, 0.1, 1, 5, 30, 60, 300, 1800},
			},
			[]string{"job"},
		),
		SchedulerJobCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexuscore_scheduler_job_runs_total",
				Help: "Total scheduler job runs by job and outcome",
			},
			[]string{"job", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nexuscore_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexuscore_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
	}
}

// RecordLLMRequest records metrics for one LLM adapter call.
func (m *Metrics) RecordLLMRequest(modelRole, modelID, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestCounter.WithLabelValues(modelRole, modelID, status).Inc()
	m.LLMRequestDuration.WithLabelValues(modelRole, modelID).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(modelRole, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(modelRole, "completion").Add(float64(completionTokens))
	}
}

// RecordToolExecution records metrics for one tool execution.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordError increments the error counter for a component and taxonomy kind.
func (m *Metrics) RecordError(component, kind string) {
	m.ErrorCounter.WithLabelValues(component, kind).Inc()
}

// SetMode zeroes every other mode gauge and sets the active one to 1.
func (m *Metrics) SetMode(active string, all []string) {
	for _, mode := range all {
		if mode == active {
			m.CurrentMode.WithLabelValues(mode).Set(1)
		} else {
			m.CurrentMode.WithLabelValues(mode).Set(0)
		}
	}
}

// RecordSensorSample publishes the latest CPU/memory/disk percentages.
func (m *Metrics) RecordSensorSample(cpuPercent, memPercent, diskPercent float64) {
	m.SensorSample.WithLabelValues("cpu").Set(cpuPercent)
	m.SensorSample.WithLabelValues("memory").Set(memPercent)
	m.SensorSample.WithLabelValues("disk").Set(diskPercent)
}

// RecordSchedulerJob records one scheduler job run outcome.
func (m *Metrics) RecordSchedulerJob(job, status string, durationSeconds float64) {
	m.SchedulerJobCounter.WithLabelValues(job, status).Inc()
	m.SchedulerJobDuration.WithLabelValues(job).Observe(durationSeconds)
}

// RecordHTTPRequest records metrics for one HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	m.HTTPRequestCounter.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
}
