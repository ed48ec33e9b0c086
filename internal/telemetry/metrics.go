package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ScansTotal counts scan passes per radio.
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "popchain",
			Name:      "scans_total",
			Help:      "Total number of scan passes",
		},
		[]string{"radio"},
	)

	// ScanErrors counts failed scan passes per radio.
	ScanErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "popchain",
			Name:      "scan_errors_total",
			Help:      "Total number of failed scan passes",
		},
		[]string{"radio"},
	)

	// DevicesScanned counts devices observed across all scans.
	DevicesScanned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "popchain",
			Name:      "devices_scanned_total",
			Help:      "Total number of device observations produced by the scanner",
		},
	)

	// CommitsTotal counts accepted scan commitments.
	CommitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "popchain",
			Name:      "commits_total",
			Help:      "Total number of accepted scan commitments",
		},
	)

	// RevealsTotal counts successful reveals.
	RevealsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "popchain",
			Name:      "reveals_total",
			Help:      "Total number of successful scan reveals",
		},
	)

	// NullifierRejections counts replayed nullifiers.
	NullifierRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "popchain",
			Name:      "nullifier_rejections_total",
			Help:      "Total number of rejected duplicate nullifiers",
		},
	)

	// SignalsReported counts accepted signal reports.
	SignalsReported = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "popchain",
			Name:      "signals_reported_total",
			Help:      "Total number of accepted signal reports",
		},
	)

	// TrackedDevices gauges the tracked device population by state.
	TrackedDevices = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "popchain",
			Name:      "tracked_devices",
			Help:      "Number of tracked devices by lifecycle state",
		},
		[]string{"state"},
	)

	once sync.Once
)

// InitMetrics registers all metrics with the default Prometheus registry.
// Idempotent: safe to call from every bootstrap path.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(ScansTotal)
		prometheus.DefaultRegisterer.Register(ScanErrors)
		prometheus.DefaultRegisterer.Register(DevicesScanned)
		prometheus.DefaultRegisterer.Register(CommitsTotal)
		prometheus.DefaultRegisterer.Register(RevealsTotal)
		prometheus.DefaultRegisterer.Register(NullifierRejections)
		prometheus.DefaultRegisterer.Register(SignalsReported)
		prometheus.DefaultRegisterer.Register(TrackedDevices)
	})
}
