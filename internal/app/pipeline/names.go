package pipeline

// Metric names emitted through ports.Observability.
const (
	MetricSamples          = "sensorflow_samples_total"
	MetricSamplesRejected  = "sensorflow_samples_rejected_total"
	MetricSamplesMissing   = "sensorflow_samples_unreadable_total"
	MetricFlushes          = "sensorflow_flushes_total"
	MetricUploadsFailed    = "sensorflow_uploads_failed_total"
	MetricAlertsSuppressed = "sensorflow_alerts_suppressed_total"
	MetricSinkConnected    = "sensorflow_sink_connected"
	MetricUploadLatency    = "sensorflow_upload_latency_seconds"
)

// Notification categories. Each one is rate limited independently.
const (
	CategoryBelowThreshold = "below_threshold"
	CategoryBehind         = "scheduler_behind"
	CategoryConnect        = "sink_connect"
	CategoryUpload         = "sink_upload"
)
