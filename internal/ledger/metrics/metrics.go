package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the ledger.
// Tracks issuance volume, value movement and failed payouts.
type Metrics struct {
	GroupsCreated  prometheus.Counter
	TokensMinted   prometheus.Counter
	BonusPayouts   prometheus.Counter
	Deposits       prometheus.Counter
	Withdrawals    prometheus.Counter
	PayoutFailures *prometheus.CounterVec
	MintDuration   prometheus.Histogram
	Rejections     *prometheus.CounterVec
}

// New registers the ledger metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		GroupsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "copyroom_groups_created_total",
			Help: "Total number of groups created",
		}),
		TokensMinted: factory.NewCounter(prometheus.CounterOpts{
			Name: "copyroom_tokens_minted_total",
			Help: "Total number of tokens minted across all groups",
		}),
		BonusPayouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "copyroom_bonus_payouts_total",
			Help: "Total number of bonus payouts released to recipients",
		}),
		Deposits: factory.NewCounter(prometheus.CounterOpts{
			Name: "copyroom_bank_deposits_total",
			Help: "Total number of bank deposits, including bare transfers",
		}),
		Withdrawals: factory.NewCounter(prometheus.CounterOpts{
			Name: "copyroom_bank_withdrawals_total",
			Help: "Total number of completed bank withdrawals",
		}),
		PayoutFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "copyroom_payout_failures_total",
			Help: "Payouts that could not be released and were credited to a bank instead",
		}, []string{"kind"}),
		MintDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "copyroom_mint_duration_seconds",
			Help:    "Duration of mint operations including payout",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "copyroom_rejected_mutations_total",
			Help: "Mutations rejected by the ledger, by error code",
		}, []string{"op", "code"}),
	}
}

func (m *Metrics) IncrementGroupsCreated() {
	if m == nil {
		return
	}
	m.GroupsCreated.Inc()
}

func (m *Metrics) AddTokensMinted(n uint64) {
	if m == nil {
		return
	}
	m.TokensMinted.Add(float64(n))
}

func (m *Metrics) IncrementBonusPayouts() {
	if m == nil {
		return
	}
	m.BonusPayouts.Inc()
}

func (m *Metrics) IncrementDeposits() {
	if m == nil {
		return
	}
	m.Deposits.Inc()
}

func (m *Metrics) IncrementWithdrawals() {
	if m == nil {
		return
	}
	m.Withdrawals.Inc()
}

// IncrementPayoutFailures records a failed release; kind is "bonus",
// "withdrawal" or "refund".
func (m *Metrics) IncrementPayoutFailures(kind string) {
	if m == nil {
		return
	}
	m.PayoutFailures.WithLabelValues(kind).Inc()
}

// ObserveMint records the duration of a mint operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveMint(start time.Time) {
	if m == nil {
		return
	}
	m.MintDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementRejected(op, code string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(op, code).Inc()
}
