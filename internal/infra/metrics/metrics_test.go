//go:build !integration

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	IncTransition("SUCCESS", "webhook")
	assert.Equal(t, 1.0, testutil.ToFloat64(paymentTransitionsTotal.WithLabelValues("success", "webhook")))

	IncWebhook("", "ignored")
	assert.Equal(t, 1.0, testutil.ToFloat64(webhookEventsTotal.WithLabelValues("unknown", "ignored")))

	ObserveVerify("ok", "captured", time.Now())
	assert.Equal(t, 1.0, testutil.ToFloat64(PaymentVerifyRequests.WithLabelValues("ok", "captured")))
}

func TestMustRegister_Once(t *testing.T) {
	assert.NotPanics(t, func() {
		MustRegister()
		MustRegister()
	})
}
