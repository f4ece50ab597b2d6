package main

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"staysense/internal/adapters/observability"
	"staysense/internal/domain"
	"staysense/internal/shared"
	mysqlrepo "staysense/internal/storage/mysql"
)

// sample is the listing every seeded hotel copies.
var sample = domain.Hotel{
	Name:     "Hotel HighRise",
	Address:  "delhi",
	Price:    10000,
	Location: &domain.Point{Lon: 77.2090057, Lat: 28.6138954},
	Images: []domain.Image{{
		URL:      "https://res.cloudinary.com/diabrsvd6/image/upload/v1680943889/StaySense/hhbi8z180wk5okktrmy6.jpg",
		Filename: "StaySense/hhbi8z180wk5okktrmy6",
	}},
}

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Int("count", cfg.SeedCount).
		Int("workers", cfg.SeedWorkers).
		Str("author", cfg.SeedAuthor).
		Msg("seeder starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	author, err := ensureAuthor(ctx, repo, cfg.SeedAuthor)
	if err != nil {
		log.Fatal().Err(err).Msg("seed author")
	}

	workers := cfg.SeedWorkers
	if workers <= 0 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup
	var created, failed atomic.Int64

	for i := 0; i < cfg.SeedCount; i++ {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			defer sem.Release(1)

			h := sample
			h.AuthorID = author
			id, err := repo.CreateHotel(ctx, h)
			if err != nil {
				failed.Add(1)
				log.Warn().Int("n", n).Err(err).Msg("seed hotel failed")
				return
			}
			created.Add(1)
			log.Debug().Int64("id", id).Msg("seed hotel ok")
		}(i)
	}

	wg.Wait()
	log.Info().Int64("created", created.Load()).Int64("failed", failed.Load()).Msg("seeding completed")
}

// ensureAuthor returns the id of the seed user, creating it with a random
// password nobody knows when missing.
func ensureAuthor(ctx context.Context, users domain.UserRepository, username string) (int64, error) {
	u, err := users.GetUserByUsername(ctx, username)
	if err == nil {
		return u.ID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return 0, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.MinCost)
	if err != nil {
		return 0, err
	}
	return users.CreateUser(ctx, domain.User{Username: username, PasswordHash: hash})
}
