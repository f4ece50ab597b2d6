package domain

import (
	"context"
	"io"
)

type HotelRepository interface {
	// Write paths
	CreateHotel(ctx context.Context, h Hotel) (int64, error)
	UpdateHotel(ctx context.Context, h Hotel) error
	DeleteHotel(ctx context.Context, id int64) error
	ToggleVote(ctx context.Context, hotelID, userID int64, d Direction) (VoteState, error)

	// Read paths
	GetHotel(ctx context.Context, id int64) (HotelView, error)
	ListHotels(ctx context.Context, q HotelsQuery) (HotelsPage, error)
	ListReviews(ctx context.Context, hotelID int64, limit int) ([]Review, error)
	// ListVotes returns the current up and down voter ids of one hotel.
	ListVotes(ctx context.Context, hotelID int64) (up, down []int64, err error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, u User) (int64, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	UpdateUser(ctx context.Context, u User) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type Geocoder interface {
	// Forward resolves an address to the first matching point.
	Forward(ctx context.Context, address string) (Point, error)
}

type ImageStore interface {
	Upload(ctx context.Context, in ImageUpload) (Image, error)
	Delete(ctx context.Context, key string) error
}

type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Data        io.Reader
}

type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
}

type CheckoutRequest struct {
	CustomerEmail string
	ProductName   string
	Description   string
	ImageURL      string
	Currency      string
	UnitAmount    int64 // minor units
	Quantity      int64
	SuccessURL    string
	CancelURL     string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// Read models & queries
type HotelView struct {
	ID         int64
	Name       string
	Address    string
	Price      int64
	Images     []Image
	Location   *Point
	AuthorID   int64
	AuthorName string
	Upvotes    []int64
	Downvotes  []int64
	Reviews    []Review
}

// Hotel returns the write model behind the view.
func (v HotelView) Hotel() Hotel {
	return Hotel{
		ID:        v.ID,
		Name:      v.Name,
		Address:   v.Address,
		Price:     v.Price,
		Images:    v.Images,
		Location:  v.Location,
		AuthorID:  v.AuthorID,
		Upvotes:   v.Upvotes,
		Downvotes: v.Downvotes,
	}
}

func (v HotelView) Score() int { return len(v.Upvotes) - len(v.Downvotes) }

type HotelsQuery struct {
	Page     int
	Limit    int
	AuthorID *int64
}

type HotelsPage struct {
	Items   []HotelView
	Page    int
	HasNext bool
}
