// Package metrics contains the prometheus metrics exported by partsd.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ProfilesApplied counts profile applications by subsystem and profile.
	ProfilesApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partsd_profile_applied_total",
			Help: "Profiles applied by subsystem and profile",
		},
		[]string{"subsystem", "profile"},
	)

	// SysfsWrites counts sysfs node writes by status (ok/error).
	SysfsWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partsd_sysfs_writes_total",
			Help: "Sysfs node writes by status",
		},
		[]string{"status"},
	)

	// SettingsWrites counts settings provider writes by status (ok/error).
	SettingsWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partsd_settings_writes_total",
			Help: "Settings provider writes by status",
		},
		[]string{"status"},
	)

	// Events counts host events dispatched to services by type.
	Events = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partsd_events_total",
			Help: "Host events dispatched by type",
		},
		[]string{"type"},
	)

	// EventsDropped counts events dropped because a service's queue was full.
	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "partsd_events_dropped_total",
			Help: "Host events dropped because a service queue was full",
		},
	)
)

// Status returns the status label for err.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
