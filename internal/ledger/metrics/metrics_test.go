package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementGroupsCreated()
	m.AddTokensMinted(3)
	m.AddTokensMinted(2)
	m.IncrementPayoutFailures("bonus")
	m.IncrementRejected("mint_group", "not_whitelisted")
	m.ObserveMint(time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GroupsCreated))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.TokensMinted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PayoutFailures.WithLabelValues("bonus")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PayoutFailures.WithLabelValues("withdrawal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejections.WithLabelValues("mint_group", "not_whitelisted")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.MintDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementGroupsCreated()
		m.AddTokensMinted(1)
		m.IncrementBonusPayouts()
		m.IncrementDeposits()
		m.IncrementWithdrawals()
		m.IncrementPayoutFailures("refund")
		m.ObserveMint(time.Now())
		m.IncrementRejected("withdraw", "insufficient_funds")
	})
}
