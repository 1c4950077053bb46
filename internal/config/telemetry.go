package config

// TelemetryConfig holds OTLP trace export configuration.
//
// Tracing is disabled when Endpoint is empty. See
// internal/observability/otel.go for exporter setup.
type TelemetryConfig struct {
	// Endpoint is the OTLP/HTTP collector endpoint (e.g., localhost:4318).
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	// Environment is the deployment environment tag (default: dev)
	Environment string `mapstructure:"environment" json:"environment"`
	// ServiceName is the service name on exported spans (default: docket)
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}
