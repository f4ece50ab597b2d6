package domain

import "time"

type Review struct {
	ID         int64
	HotelID    int64
	AuthorID   int64
	AuthorName string
	Body       string
	Rating     int
	CreatedAt  time.Time
}
