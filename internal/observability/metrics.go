// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Sale metrics
	PurchasesTotal     prometheus.Counter
	PurchaseRejections *prometheus.CounterVec
	SaleVolumeUSD      prometheus.Counter
	TokensSold         prometheus.Counter

	// Airdrop metrics
	ClaimsTotal         prometheus.Counter
	ClaimRejections     *prometheus.CounterVec
	ReferralBonusesPaid prometheus.Counter
	ParticipantsTotal   prometheus.Gauge

	// Aggregation metrics
	SnapshotsComputed   prometheus.Counter
	SnapshotDuration    prometheus.Histogram
	BalanceFetchErrors  *prometheus.CounterVec
	TreasuryTotalUSD    prometheus.Gauge
	LiquidityLockActive prometheus.Gauge
	ClientRebuilds      *prometheus.CounterVec

	// Cache metrics
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter

	// RPC metrics
	RPCCallLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSnapshotTimestamp prometheus.Gauge
	UptimeSeconds         prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "brainark_core"
	}

	return &Metrics{
		// Sale metrics
		PurchasesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "purchases_total",
			Help:      "Total number of recorded purchases",
		}),
		PurchaseRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "purchase_rejections_total",
			Help:      "Total number of rejected purchases by reason",
		}, []string{"reason"}),
		SaleVolumeUSD: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "volume_usd_total",
			Help:      "Total USD value of recorded purchases",
		}),
		TokensSold: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "tokens_sold_total",
			Help:      "Total BAK tokens sold",
		}),

		// Airdrop metrics
		ClaimsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "airdrop",
			Name:      "claims_total",
			Help:      "Total number of successful claims",
		}),
		ClaimRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "airdrop",
			Name:      "claim_rejections_total",
			Help:      "Total number of rejected claims by reason",
		}, []string{"reason"}),
		ReferralBonusesPaid: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "airdrop",
			Name:      "referral_bonuses_paid_total",
			Help:      "Total number of referral bonuses credited",
		}),
		ParticipantsTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "airdrop",
			Name:      "participants_total",
			Help:      "Current number of claimed participants",
		}),

		// Aggregation metrics
		SnapshotsComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "treasury",
			Name:      "snapshots_computed_total",
			Help:      "Total number of liquidity snapshots computed",
		}),
		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "treasury",
			Name:      "snapshot_duration_seconds",
			Help:      "Liquidity snapshot computation duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		BalanceFetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "treasury",
			Name:      "balance_fetch_errors_total",
			Help:      "Total number of balance fetches treated as zero, by chain",
		}, []string{"chain"}),
		TreasuryTotalUSD: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "treasury",
			Name:      "total_usd",
			Help:      "Aggregate treasury value in USD from the latest snapshot",
		}),
		LiquidityLockActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "treasury",
			Name:      "lock_active",
			Help:      "1 while the liquidity lock is active, 0 once released",
		}),
		ClientRebuilds: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evm",
			Name:      "client_rebuilds_total",
			Help:      "Total number of pooled client invalidations by chain",
		}, []string{"chain"}),

		// Cache metrics
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of result cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of result cache misses",
		}),
		CacheEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Total number of result cache evictions",
		}),

		// RPC metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evm",
			Name:      "rpc_call_latency_seconds",
			Help:      "JSON-RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"chain", "method"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSnapshotTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_snapshot_timestamp",
			Help:      "Unix timestamp of the last computed liquidity snapshot",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPurchase records a completed purchase.
func RecordPurchase(usdValue, tokenAmount float64) {
	DefaultMetrics.PurchasesTotal.Inc()
	DefaultMetrics.SaleVolumeUSD.Add(usdValue)
	DefaultMetrics.TokensSold.Add(tokenAmount)
}

// RecordPurchaseRejection records a rejected purchase.
func RecordPurchaseRejection(reason string) {
	DefaultMetrics.PurchaseRejections.WithLabelValues(reason).Inc()
}

// RecordClaim records a successful claim.
func RecordClaim(withReferrer bool) {
	DefaultMetrics.ClaimsTotal.Inc()
	if withReferrer {
		DefaultMetrics.ReferralBonusesPaid.Inc()
	}
}

// RecordClaimRejection records a rejected claim.
func RecordClaimRejection(reason string) {
	DefaultMetrics.ClaimRejections.WithLabelValues(reason).Inc()
}

// RecordSnapshot records a computed liquidity snapshot.
func RecordSnapshot(totalUSD float64, lockActive bool, durationSeconds float64) {
	DefaultMetrics.SnapshotsComputed.Inc()
	DefaultMetrics.SnapshotDuration.Observe(durationSeconds)
	DefaultMetrics.TreasuryTotalUSD.Set(totalUSD)
	if lockActive {
		DefaultMetrics.LiquidityLockActive.Set(1)
	} else {
		DefaultMetrics.LiquidityLockActive.Set(0)
	}
	DefaultMetrics.LastSnapshotTimestamp.SetToCurrentTime()
}

// RecordBalanceFetchError records a balance fetch treated as zero.
func RecordBalanceFetchError(chain string) {
	DefaultMetrics.BalanceFetchErrors.WithLabelValues(chain).Inc()
}

// RecordClientRebuild records a pooled client invalidation.
func RecordClientRebuild(chain string) {
	DefaultMetrics.ClientRebuilds.WithLabelValues(chain).Inc()
}

// RecordCacheHit records a result cache hit or miss.
func RecordCacheHit(hit bool) {
	if hit {
		DefaultMetrics.CacheHits.Inc()
	} else {
		DefaultMetrics.CacheMisses.Inc()
	}
}

// RecordCacheEviction records a capacity eviction from the result cache.
func RecordCacheEviction() {
	DefaultMetrics.CacheEvictions.Inc()
}

// RecordRPCCall records one JSON-RPC call's latency.
func RecordRPCCall(chain, method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(chain, method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
