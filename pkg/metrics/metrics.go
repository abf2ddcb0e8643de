package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Protection core metrics
var (
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulwark_auth_attempts_total",
			Help: "Authentication attempts observed by the protection core",
		},
		[]string{"result"},
	)

	DenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulwark_denials_total",
			Help: "Requests denied by the protection core",
		},
		[]string{"cause"},
	)

	BansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulwark_bans_total",
			Help: "IP bans issued",
		},
		[]string{"reason"},
	)

	AccountLocksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bulwark_account_locks_total",
			Help: "Account locks triggered",
		},
	)

	ProtectionEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulwark_protection_events_total",
			Help: "Security events emitted by the protection core",
		},
		[]string{"type", "severity"},
	)

	ActiveBans = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bulwark_active_bans",
			Help: "IP bans currently in force",
		},
	)

	ActiveLocks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bulwark_active_locks",
			Help: "Accounts currently locked",
		},
	)

	TrackedKeys = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bulwark_tracked_keys",
			Help: "Keys tracked per protection component",
		},
		[]string{"component"},
	)
)
