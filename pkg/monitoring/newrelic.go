package monitoring

import (
	"fmt"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// Config holds New Relic configuration
type Config struct {
	LicenseKey string
	AppName    string
	Enabled    bool
	LogLevel   string
}

// NewRelicApp wraps the New Relic application. Methods are safe on a
// disabled or nil app.
type NewRelicApp struct {
	*newrelic.Application
	enabled bool
}

// New creates a new New Relic application
func New(cfg Config) (*NewRelicApp, error) {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		// Return disabled app
		return &NewRelicApp{nil, false}, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigAppLogForwardingEnabled(true),
		newrelic.ConfigDistributedTracerEnabled(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create New Relic application: %w", err)
	}

	return &NewRelicApp{app, true}, nil
}

// Disabled returns an app that records nothing.
func Disabled() *NewRelicApp {
	return &NewRelicApp{}
}

func (nr *NewRelicApp) active() bool {
	return nr != nil && nr.enabled && nr.Application != nil
}

// RecordCustomEvent records a custom event
func (nr *NewRelicApp) RecordCustomEvent(eventType string, params map[string]interface{}) {
	if !nr.active() {
		return
	}
	nr.Application.RecordCustomEvent(eventType, params)
}

// RecordCustomMetric records a custom metric
func (nr *NewRelicApp) RecordCustomMetric(name string, value float64) {
	if !nr.active() {
		return
	}
	nr.Application.RecordCustomMetric(name, value)
}

// Shutdown gracefully shuts down the New Relic application
func (nr *NewRelicApp) Shutdown(timeout time.Duration) {
	if !nr.active() {
		return
	}
	nr.Application.Shutdown(timeout)
}

// RecordRequestCreated records a new transport request
func (nr *NewRelicApp) RecordRequestCreated(vehicleType string, distanceKm, fare float64) {
	nr.RecordCustomEvent("TransportRequestCreated", map[string]interface{}{
		"vehicle_type": vehicleType,
		"distance_km":  distanceKm,
		"fare":         fare,
	})
}

// RecordStatusChange records a lifecycle transition
func (nr *NewRelicApp) RecordStatusChange(requestID, from, to string) {
	nr.RecordCustomEvent("TransportRequestStatusChanged", map[string]interface{}{
		"request_id": requestID,
		"from":       from,
		"to":         to,
	})
}

// RecordRequestCompleted records a completed trip
func (nr *NewRelicApp) RecordRequestCompleted(requestID string, fare, distanceKm float64, durationMinutes int) {
	nr.RecordCustomEvent("TransportRequestCompleted", map[string]interface{}{
		"request_id":  requestID,
		"fare":        fare,
		"distance_km": distanceKm,
		"duration":    durationMinutes,
	})
}

// RecordLocationUpdate records a driver location ping
func (nr *NewRelicApp) RecordLocationUpdate() {
	nr.RecordCustomMetric("custom/driver/location_update", 1)
}

// RecordAcceptLatency records how long a request waited for a driver
func (nr *NewRelicApp) RecordAcceptLatency(latency time.Duration) {
	nr.RecordCustomMetric("custom/transport/accept_latency_ms", float64(latency.Milliseconds()))
}

// IsEnabled returns whether New Relic is enabled
func (nr *NewRelicApp) IsEnabled() bool {
	return nr.active()
}
