package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"staysense/internal/adapters/observability"
	"staysense/internal/domain"
)

// Stripe creates hosted checkout sessions.
type Stripe struct {
	api *client.API
}

func NewStripe(secretKey string) (*Stripe, error) {
	return NewStripeWithURL(secretKey, "")
}

// NewStripeWithURL points the API backend at baseURL when it is non-empty.
func NewStripeWithURL(secretKey, baseURL string) (*Stripe, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: 20 * time.Second},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if baseURL != "" {
		cfg.URL = stripe.String(baseURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
	api := client.New(secretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return &Stripe{api: api}, nil
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.ProductName),
	}
	if req.Description != "" {
		product.Description = stripe.String(req.Description)
	}
	if req.ImageURL != "" {
		product.Images = stripe.StringSlice([]string{req.ImageURL})
	}
	qty := req.Quantity
	if qty <= 0 {
		qty = 1
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(req.Currency),
					ProductData: product,
					UnitAmount:  stripe.Int64(req.UnitAmount),
				},
				Quantity: stripe.Int64(qty),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx

	start := time.Now()
	sess, err := s.api.CheckoutSessions.New(params)
	status := http.StatusOK
	var serr *stripe.Error
	if errors.As(err, &serr) {
		status = serr.HTTPStatusCode
	} else if err != nil {
		status = 0
	}
	observability.ObserveExternal("stripe", "checkout_session", status, time.Since(start))
	if err != nil {
		return domain.CheckoutSession{}, domain.Upstream("stripe", err)
	}
	return domain.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}
