package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"staysense/internal/domain"
)

type RegisterInput struct {
	Username string `form:"username" validate:"required,min=3,max=254"`
	Password string `form:"password" validate:"required,min=6,maxbytes=72"`
}

type LoginInput struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

type ProfileInput struct {
	Username string `form:"user[username]" validate:"required,min=3,max=254"`
}

// Profile is a user page: the account and the listings it authored.
type Profile struct {
	User   domain.User
	Hotels domain.HotelsPage
}

type UserService struct {
	users  domain.UserRepository
	hotels domain.HotelRepository
	cost   int
}

func NewUserService(u domain.UserRepository, h domain.HotelRepository) *UserService {
	return &UserService{users: u, hotels: h, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *UserService) WithHashCost(cost int) *UserService {
	s.cost = cost
	return s
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := Validate(in); err != nil {
		return domain.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := domain.User{Username: in.Username, PasswordHash: hash}
	if u.ID, err = s.users.CreateUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	log.Info().Int64("user", u.ID).Msg("user registered")
	return u, nil
}

// Authenticate returns the user for valid credentials. Unknown usernames and
// wrong passwords both yield domain.ErrUnauthorized.
func (s *UserService) Authenticate(ctx context.Context, in LoginInput) (domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := Validate(in); err != nil {
		return domain.User{}, err
	}
	u, err := s.users.GetUserByUsername(ctx, in.Username)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}
	if err != nil {
		return domain.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(in.Password)); err != nil {
		return domain.User{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (domain.User, error) {
	return s.users.GetUser(ctx, id)
}

// Profile loads a user together with one page of their hotels.
func (s *UserService) Profile(ctx context.Context, actor *domain.Identity, id int64, page int) (Profile, error) {
	if actor == nil {
		return Profile{}, domain.ErrUnauthorized
	}
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	hs, err := s.hotels.ListHotels(ctx, domain.HotelsQuery{Page: page, Limit: PageSize, AuthorID: &id})
	if err != nil {
		return Profile{}, fmt.Errorf("hotels of user %d: %w", id, err)
	}
	return Profile{User: u, Hotels: hs}, nil
}

// Editable returns the user if the actor may edit that profile.
func (s *UserService) Editable(ctx context.Context, actor *domain.Identity, id int64) (domain.User, error) {
	if actor == nil {
		return domain.User{}, domain.ErrUnauthorized
	}
	if actor.UserID != id {
		return domain.User{}, fmt.Errorf("user %d: %w", id, domain.ErrForbidden)
	}
	return s.users.GetUser(ctx, id)
}

func (s *UserService) Update(ctx context.Context, actor *domain.Identity, id int64, in ProfileInput) (domain.User, error) {
	u, err := s.Editable(ctx, actor, id)
	if err != nil {
		return domain.User{}, err
	}
	in.Username = strings.TrimSpace(in.Username)
	if err := Validate(in); err != nil {
		return domain.User{}, err
	}
	u.Username = in.Username
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}
