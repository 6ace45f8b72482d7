package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	settlementCounter     *prometheus.CounterVec
	sweepSwapCounter      *prometheus.CounterVec
	referralBonusCounter  prometheus.Counter
	forceCompleteCounter  prometheus.Counter
	idempotencyCounter    *prometheus.CounterVec
	workerRunCounter      *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		settlementCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_settlements_total",
			Help: "Settlement outcomes by transaction kind",
		}, []string{"kind", "outcome"})

		sweepSwapCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swap_sweep_swaps_total",
			Help: "Due swaps handled by the sweep, by result",
		}, []string{"result"})

		referralBonusCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "referral_bonuses_total",
			Help: "Referral bonuses paid out",
		})

		forceCompleteCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "withdrawal_force_completes_total",
			Help: "Withdrawals force-completed by an admin",
		})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			settlementCounter,
			sweepSwapCounter,
			referralBonusCounter,
			forceCompleteCounter,
			idempotencyCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementSettlement(kind, outcome string) {
	if settlementCounter == nil {
		return
	}
	settlementCounter.WithLabelValues(kind, outcome).Inc()
}

func IncrementSweepSwap(result string) {
	if sweepSwapCounter == nil {
		return
	}
	sweepSwapCounter.WithLabelValues(result).Inc()
}

func IncrementReferralBonus() {
	if referralBonusCounter == nil {
		return
	}
	referralBonusCounter.Inc()
}

func IncrementForceComplete() {
	if forceCompleteCounter == nil {
		return
	}
	forceCompleteCounter.Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
