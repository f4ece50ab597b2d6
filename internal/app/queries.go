package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"staysense/internal/domain"
)

const (
	PageSize        = 5
	reviewsPerHotel = 50
)

type HotelService struct {
	repo          domain.HotelRepository
	cache         domain.Cache
	images        domain.ImageStore
	geo           domain.Geocoder
	cacheTTL      time.Duration
	uploadWorkers int
}

// NewHotelService wires the hotel use cases. cache and geo may be nil.
func NewHotelService(r domain.HotelRepository, c domain.Cache, img domain.ImageStore, geo domain.Geocoder, ttl time.Duration, uploadWorkers int) *HotelService {
	if uploadWorkers <= 0 {
		uploadWorkers = 1
	}
	return &HotelService{repo: r, cache: c, images: img, geo: geo, cacheTTL: ttl, uploadWorkers: uploadWorkers}
}

func hotelKey(id int64) string { return fmt.Sprintf("hotel:%d", id) }

// Get returns the hotel with its author and reviews. The listing is served
// from cache when warm; vote sets are always read from the repository.
func (s *HotelService) Get(ctx context.Context, id int64) (domain.HotelView, error) {
	hv, err := s.listing(ctx, id)
	if err != nil {
		return domain.HotelView{}, err
	}
	hv.Upvotes, hv.Downvotes, err = s.repo.ListVotes(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		s.evict(ctx, id)
	}
	if err != nil {
		return domain.HotelView{}, err
	}
	return hv, nil
}

// listing is the cached, vote-free part of the hotel view.
func (s *HotelService) listing(ctx context.Context, id int64) (domain.HotelView, error) {
	key := hotelKey(id)
	var hv domain.HotelView
	if s.cache != nil {
		if ok, err := s.cache.Get(ctx, key, &hv); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		} else if ok {
			return hv, nil
		}
	}

	hv, err := s.repo.GetHotel(ctx, id)
	if err != nil {
		return domain.HotelView{}, err
	}
	if hv.Reviews, err = s.repo.ListReviews(ctx, id, reviewsPerHotel); err != nil {
		return domain.HotelView{}, fmt.Errorf("reviews of hotel %d: %w", id, err)
	}
	hv.Upvotes, hv.Downvotes = nil, nil
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, hv, int(s.cacheTTL.Seconds()))
	}
	return hv, nil
}

// List returns one page of hotels, newest first.
func (s *HotelService) List(ctx context.Context, page int) (domain.HotelsPage, error) {
	return s.repo.ListHotels(ctx, domain.HotelsQuery{Page: page, Limit: PageSize})
}

func (s *HotelService) ListByAuthor(ctx context.Context, authorID int64, page int) (domain.HotelsPage, error) {
	return s.repo.ListHotels(ctx, domain.HotelsQuery{Page: page, Limit: PageSize, AuthorID: &authorID})
}

// Owned loads a hotel for editing by its author.
func (s *HotelService) Owned(ctx context.Context, actor *domain.Identity, id int64) (domain.HotelView, error) {
	if actor == nil {
		return domain.HotelView{}, domain.ErrUnauthorized
	}
	hv, err := s.repo.GetHotel(ctx, id)
	if err != nil {
		return domain.HotelView{}, err
	}
	if hv.AuthorID != actor.UserID {
		return domain.HotelView{}, fmt.Errorf("hotel %d: %w", id, domain.ErrForbidden)
	}
	return hv, nil
}

// ForgetAuthor drops the cached listings of every hotel by authorID.
func (s *HotelService) ForgetAuthor(ctx context.Context, authorID int64) {
	if s.cache == nil {
		return
	}
	for page := 1; ; page++ {
		hs, err := s.ListByAuthor(ctx, authorID, page)
		if err != nil {
			log.Warn().Err(err).Int64("author", authorID).Msg("author listings not evicted")
			return
		}
		for _, hv := range hs.Items {
			s.evict(ctx, hv.ID)
		}
		if !hs.HasNext {
			return
		}
	}
}

func (s *HotelService) evict(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, hotelKey(id)); err != nil {
		log.Warn().Err(err).Int64("hotel", id).Msg("cache evict failed")
	}
}
