package app

import (
	"context"
	"fmt"
	"strings"

	"staysense/internal/domain"
)

// CheckoutService starts a hosted payment for one night at a hotel.
type CheckoutService struct {
	hotels   domain.HotelRepository
	gateway  domain.PaymentGateway
	baseURL  string
	currency string
}

func NewCheckoutService(h domain.HotelRepository, g domain.PaymentGateway, baseURL, currency string) *CheckoutService {
	if currency == "" {
		currency = "inr"
	}
	return &CheckoutService{hotels: h, gateway: g, baseURL: strings.TrimRight(baseURL, "/"), currency: currency}
}

// Start creates a checkout session and returns the URL to send the buyer to.
func (s *CheckoutService) Start(ctx context.Context, actor *domain.Identity, hotelID int64) (string, error) {
	if actor == nil {
		return "", domain.ErrUnauthorized
	}
	if s.gateway == nil {
		return "", domain.Upstream("payment", fmt.Errorf("no payment gateway configured"))
	}
	hv, err := s.hotels.GetHotel(ctx, hotelID)
	if err != nil {
		return "", err
	}

	req := domain.CheckoutRequest{
		CustomerEmail: actor.Username,
		ProductName:   hv.Name,
		Description:   hv.Address,
		Currency:      s.currency,
		UnitAmount:    hv.Price * 100,
		Quantity:      1,
		SuccessURL:    fmt.Sprintf("%s/hotels/%d/checkout/success", s.baseURL, hotelID),
		CancelURL:     fmt.Sprintf("%s/hotels/%d/checkout/cancel", s.baseURL, hotelID),
	}
	if len(hv.Images) > 0 {
		req.ImageURL = hv.Images[0].URL
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		return "", fmt.Errorf("checkout hotel %d: %w", hotelID, err)
	}
	if sess.URL == "" {
		return "", domain.Upstream("payment", fmt.Errorf("session %s has no url", sess.ID))
	}
	return sess.URL, nil
}
