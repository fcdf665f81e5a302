package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveRequest("/api/cart", http.MethodGet, "200", 0.01)
	m.ObserveRequest("/api/cart", http.MethodGet, "200", 0.02)
	m.CheckoutOutcome("created")
	m.LedgerOperation("confirm_paid", "ok")
	m.ReviewOutcome("not_purchased")
	m.OutboxRelayed("review.created", "sent")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues("/api/cart", http.MethodGet, "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.checkouts.WithLabelValues("created")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ledger.WithLabelValues("confirm_paid", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.reviews.WithLabelValues("not_purchased")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.outboxRelayed.WithLabelValues("review.created", "sent")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveRequest("/", http.MethodGet, "200", 0)
		m.CheckoutOutcome("created")
		m.LedgerOperation("cancel", "ok")
		m.ReviewOutcome("created")
		m.OutboxRelayed("order.paid", "sent")
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.CheckoutOutcome("gateway_error")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `storefront_checkout_sessions_total{outcome="gateway_error"} 1`)
}
