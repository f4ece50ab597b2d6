package domain

import "time"

type Hotel struct {
	ID        int64
	Name      string
	Address   string
	Price     int64 // whole currency units
	Images    []Image
	Location  *Point
	AuthorID  int64
	Upvotes   []int64
	Downvotes []int64
	CreatedAt time.Time
}

type Image struct {
	URL      string `json:"url"`
	Filename string `json:"filename"` // object store key
}

// Point is a GeoJSON-style position: longitude first.
type Point struct{ Lon, Lat float64 }

// Coordinates returns the point as [lon, lat], the order map widgets expect.
func (p Point) Coordinates() [2]float64 { return [2]float64{p.Lon, p.Lat} }
