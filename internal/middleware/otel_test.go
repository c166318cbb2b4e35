package middleware

import "timesheets/internal/config"

func infrastructureTestConfig() config.TelemetryConfig {
	return config.TelemetryConfig{
		ServiceName:   "timesheets-test",
		EnableMetrics: true,
		EnableTracing: true,
		SampleRate:    1,
	}
}
