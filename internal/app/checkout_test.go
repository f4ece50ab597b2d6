package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staysense/internal/app"
	"staysense/internal/domain"
	"staysense/internal/storage/memory"
)

func TestCheckout_BuildsSessionFromHotel(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	owner := newUser(t, s, "owner")
	buyer := newUser(t, s, "buyer@example.com")
	id, err := s.CreateHotel(ctx, domain.Hotel{
		Name: "Hotel HighRise", Address: "delhi", Price: 10000, AuthorID: owner.UserID,
		Images: []domain.Image{{URL: "https://cdn.test/1.jpg", Filename: "1.jpg"}, {URL: "https://cdn.test/2.jpg"}},
	})
	require.NoError(t, err)

	gw := &fakeGateway{}
	svc := app.NewCheckoutService(s, gw, "http://localhost:8080/", "")
	url, err := svc.Start(ctx, buyer, id)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.test/cs_test_1", url)

	assert.Equal(t, domain.CheckoutRequest{
		CustomerEmail: "buyer@example.com",
		ProductName:   "Hotel HighRise",
		Description:   "delhi",
		ImageURL:      "https://cdn.test/1.jpg",
		Currency:      "inr",
		UnitAmount:    1000000,
		Quantity:      1,
		SuccessURL:    "http://localhost:8080/hotels/1/checkout/success",
		CancelURL:     "http://localhost:8080/hotels/1/checkout/cancel",
	}, gw.got)
}

func TestCheckout_Failures(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	owner := newUser(t, s, "owner")
	id, err := s.CreateHotel(ctx, domain.Hotel{Name: "H", AuthorID: owner.UserID})
	require.NoError(t, err)

	gw := &fakeGateway{err: domain.Upstream("stripe", errors.New("card_declined"))}
	svc := app.NewCheckoutService(s, gw, "http://x", "usd")

	_, err = svc.Start(ctx, nil, id)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Start(ctx, owner, id+1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Start(ctx, owner, id)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Equal(t, "usd", gw.got.Currency)
	assert.Empty(t, gw.got.ImageURL)
}
