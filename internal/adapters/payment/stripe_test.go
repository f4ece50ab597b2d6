package payment_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staysense/internal/adapters/payment"
	"staysense/internal/domain"
)

func TestStripe_CreateCheckoutSession(t *testing.T) {
	var form url.Values
	var path, auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		assert.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_123","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_123"}`))
	}))
	defer ts.Close()

	s, err := payment.NewStripeWithURL("sk_test_abc", ts.URL)
	require.NoError(t, err)

	sess, err := s.CreateCheckoutSession(context.Background(), domain.CheckoutRequest{
		CustomerEmail: "guest@example.com",
		ProductName:   "Hotel HighRise",
		Description:   "delhi",
		ImageURL:      "https://img.example/1.jpg",
		Currency:      "inr",
		UnitAmount:    1000000,
		Quantity:      1,
		SuccessURL:    "http://localhost:8080/hotels/9/checkout/success",
		CancelURL:     "http://localhost:8080/hotels/9/checkout/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_123", sess.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_123", sess.URL)

	assert.Equal(t, "/v1/checkout/sessions", path)
	assert.Equal(t, "Bearer sk_test_abc", auth)
	assert.Equal(t, "payment", form.Get("mode"))
	assert.Equal(t, "card", form.Get("payment_method_types[0]"))
	assert.Equal(t, "guest@example.com", form.Get("customer_email"))
	assert.Equal(t, "inr", form.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "1000000", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "Hotel HighRise", form.Get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "1", form.Get("line_items[0][quantity]"))
	assert.Equal(t, "http://localhost:8080/hotels/9/checkout/success", form.Get("success_url"))
}

func TestStripe_UpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad currency"}}`))
	}))
	defer ts.Close()

	s, err := payment.NewStripeWithURL("sk_test_abc", ts.URL)
	require.NoError(t, err)

	_, err = s.CreateCheckoutSession(context.Background(), domain.CheckoutRequest{
		ProductName: "x", Currency: "zzz", UnitAmount: 1,
		SuccessURL: "http://a/s", CancelURL: "http://a/c",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstream))
}

func TestNewStripe_RequiresKey(t *testing.T) {
	_, err := payment.NewStripe("")
	assert.Error(t, err)
}
