// Package memory is a process-local implementation of the hotel and user
// repositories. All operations run under one mutex and hand out copies.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"staysense/internal/domain"
)

type Store struct {
	mu      sync.Mutex
	hotels  map[int64]domain.Hotel
	users   map[int64]domain.User
	reviews map[int64][]domain.Review
	lastID  struct{ hotel, user, review int64 }
	now     func() time.Time
}

func New() *Store {
	return &Store{
		hotels:  map[int64]domain.Hotel{},
		users:   map[int64]domain.User{},
		reviews: map[int64][]domain.Review{},
		now:     time.Now,
	}
}

func cloneHotel(h domain.Hotel) domain.Hotel {
	h.Images = append([]domain.Image(nil), h.Images...)
	h.Upvotes = append([]int64(nil), h.Upvotes...)
	h.Downvotes = append([]int64(nil), h.Downvotes...)
	if h.Location != nil {
		p := *h.Location
		h.Location = &p
	}
	return h
}

func (s *Store) CreateHotel(_ context.Context, h domain.Hotel) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[h.AuthorID]; !ok {
		return 0, domain.ErrNotFound
	}
	s.lastID.hotel++
	h = cloneHotel(h)
	h.ID = s.lastID.hotel
	h.Upvotes, h.Downvotes = nil, nil
	h.CreatedAt = s.now().UTC()
	s.hotels[h.ID] = h
	return h.ID, nil
}

// UpdateHotel replaces the editable fields; author and votes are kept.
func (s *Store) UpdateHotel(_ context.Context, h domain.Hotel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.hotels[h.ID]
	if !ok {
		return domain.ErrNotFound
	}
	h = cloneHotel(h)
	cur.Name, cur.Address, cur.Price = h.Name, h.Address, h.Price
	cur.Images, cur.Location = h.Images, h.Location
	s.hotels[h.ID] = cur
	return nil
}

func (s *Store) DeleteHotel(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hotels[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.hotels, id)
	delete(s.reviews, id)
	return nil
}

func (s *Store) ToggleVote(_ context.Context, hotelID, userID int64, d domain.Direction) (domain.VoteState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hotels[hotelID]
	if !ok {
		return domain.Neutral, domain.ErrNotFound
	}
	st, err := domain.ApplyVote(&h, userID, d)
	if err != nil {
		return domain.MembershipOf(&h, userID), err
	}
	s.hotels[hotelID] = h
	return st, nil
}

func (s *Store) view(h domain.Hotel) domain.HotelView {
	h = cloneHotel(h)
	return domain.HotelView{
		ID:         h.ID,
		Name:       h.Name,
		Address:    h.Address,
		Price:      h.Price,
		Images:     h.Images,
		Location:   h.Location,
		AuthorID:   h.AuthorID,
		AuthorName: s.users[h.AuthorID].Username,
		Upvotes:    h.Upvotes,
		Downvotes:  h.Downvotes,
	}
}

func (s *Store) GetHotel(_ context.Context, id int64) (domain.HotelView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hotels[id]
	if !ok {
		return domain.HotelView{}, domain.ErrNotFound
	}
	return s.view(h), nil
}

func (s *Store) ListVotes(_ context.Context, hotelID int64) ([]int64, []int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hotels[hotelID]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	h = cloneHotel(h)
	return h.Upvotes, h.Downvotes, nil
}

func (s *Store) ListHotels(_ context.Context, q domain.HotelsQuery) (domain.HotelsPage, error) {
	limit, page := q.Limit, q.Page
	if limit <= 0 {
		limit = 5
	}
	if page <= 0 {
		page = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.hotels))
	for id, h := range s.hotels {
		if q.AuthorID != nil && h.AuthorID != *q.AuthorID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	out := domain.HotelsPage{Page: page}
	start := (page - 1) * limit
	if start >= len(ids) {
		return out, nil
	}
	end := start + limit
	if end < len(ids) {
		out.HasNext = true
	} else {
		end = len(ids)
	}
	for _, id := range ids[start:end] {
		out.Items = append(out.Items, s.view(s.hotels[id]))
	}
	return out, nil
}

// AddReview stores a review for an existing hotel.
func (s *Store) AddReview(_ context.Context, rv domain.Review) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hotels[rv.HotelID]; !ok {
		return 0, domain.ErrNotFound
	}
	s.lastID.review++
	rv.ID = s.lastID.review
	rv.AuthorName = s.users[rv.AuthorID].Username
	if rv.CreatedAt.IsZero() {
		rv.CreatedAt = s.now().UTC()
	}
	s.reviews[rv.HotelID] = append(s.reviews[rv.HotelID], rv)
	return rv.ID, nil
}

// ListReviews returns newest first.
func (s *Store) ListReviews(_ context.Context, hotelID int64, limit int) ([]domain.Review, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.reviews[hotelID]
	out := make([]domain.Review, 0, len(src))
	for i := len(src) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, src[i])
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, u domain.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.usernameTaken(u.Username, 0) {
		return 0, domain.ErrConflict
	}
	s.lastID.user++
	u.ID = s.lastID.user
	u.PasswordHash = append([]byte(nil), u.PasswordHash...)
	u.CreatedAt = s.now().UTC()
	s.users[u.ID] = u
	return u.ID, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (s *Store) UpdateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[u.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if s.usernameTaken(u.Username, u.ID) {
		return domain.ErrConflict
	}
	cur.Username = u.Username
	s.users[u.ID] = cur
	return nil
}

// usernameTaken matches case-insensitively, like the MySQL unique index.
func (s *Store) usernameTaken(name string, except int64) bool {
	for id, u := range s.users {
		if id != except && strings.EqualFold(u.Username, name) {
			return true
		}
	}
	return false
}
