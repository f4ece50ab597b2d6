package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"staysense/internal/domain"
)

type HotelInput struct {
	Name    string `form:"hotel[name]" validate:"required,max=200"`
	Address string `form:"hotel[address]" validate:"required,max=500"`
	Price   int64  `form:"hotel[price]" validate:"gte=0,lte=100000000"`
}

type CreateHotelInput struct {
	HotelInput
	Images []domain.ImageUpload `form:"image" validate:"max=10"`
}

// Create uploads the images, geocodes the address and stores the new listing.
func (s *HotelService) Create(ctx context.Context, actor *domain.Identity, in CreateHotelInput) (int64, error) {
	if actor == nil {
		return 0, domain.ErrUnauthorized
	}
	if err := Validate(in); err != nil {
		return 0, err
	}

	loc, err := s.locate(ctx, in.Address)
	if err != nil {
		return 0, err
	}
	imgs, err := s.upload(ctx, in.Images)
	if err != nil {
		return 0, err
	}

	id, err := s.repo.CreateHotel(ctx, domain.Hotel{
		Name:     in.Name,
		Address:  in.Address,
		Price:    in.Price,
		Images:   imgs,
		Location: loc,
		AuthorID: actor.UserID,
	})
	if err != nil {
		s.discard(imgs)
		return 0, fmt.Errorf("create hotel: %w", err)
	}
	log.Info().Int64("hotel", id).Int64("author", actor.UserID).Int("images", len(imgs)).Msg("hotel created")
	return id, nil
}

// Update changes name, address and price; a new address is geocoded again.
func (s *HotelService) Update(ctx context.Context, actor *domain.Identity, id int64, in HotelInput) error {
	hv, err := s.Owned(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := Validate(in); err != nil {
		return err
	}

	h := hv.Hotel()
	if in.Address != h.Address {
		if h.Location, err = s.locate(ctx, in.Address); err != nil {
			return err
		}
	}
	h.Name, h.Address, h.Price = in.Name, in.Address, in.Price
	if err := s.repo.UpdateHotel(ctx, h); err != nil {
		return fmt.Errorf("update hotel %d: %w", id, err)
	}
	s.evict(ctx, id)
	return nil
}

// Delete removes the listing; stored images are removed best-effort afterwards.
func (s *HotelService) Delete(ctx context.Context, actor *domain.Identity, id int64) error {
	hv, err := s.Owned(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteHotel(ctx, id); err != nil {
		return fmt.Errorf("delete hotel %d: %w", id, err)
	}
	s.evict(ctx, id)
	s.discard(hv.Images)
	return nil
}

// Vote toggles the actor's vote on a hotel and returns the resulting state.
func (s *HotelService) Vote(ctx context.Context, actor *domain.Identity, id int64, d domain.Direction) (domain.VoteState, error) {
	if actor == nil {
		return domain.Neutral, domain.ErrUnauthorized
	}
	return s.repo.ToggleVote(ctx, id, actor.UserID, d)
}

func (s *HotelService) locate(ctx context.Context, address string) (*domain.Point, error) {
	if s.geo == nil {
		return nil, nil
	}
	p, err := s.geo.Forward(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", address, err)
	}
	return &p, nil
}

// upload pushes files concurrently and keeps their submitted order.
// On failure the files that did make it are removed again.
func (s *HotelService) upload(ctx context.Context, files []domain.ImageUpload) ([]domain.Image, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if s.images == nil {
		return nil, domain.Upstream("images", fmt.Errorf("no image store configured"))
	}

	out := make([]domain.Image, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.uploadWorkers)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			img, err := s.images.Upload(gctx, f)
			if err != nil {
				return fmt.Errorf("upload %q: %w", f.Filename, err)
			}
			out[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var done []domain.Image
		for _, img := range out {
			if img.Filename != "" {
				done = append(done, img)
			}
		}
		s.discard(done)
		return nil, err
	}
	return out, nil
}

// discard deletes stored images without failing the caller.
func (s *HotelService) discard(imgs []domain.Image) {
	if s.images == nil {
		return
	}
	// the request context may already be cancelled
	ctx := context.Background()
	for _, img := range imgs {
		if img.Filename == "" {
			continue
		}
		if err := s.images.Delete(ctx, img.Filename); err != nil {
			log.Warn().Err(err).Str("key", img.Filename).Msg("image delete failed")
		}
	}
}
