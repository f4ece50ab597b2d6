package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"

	"staysense/internal/domain"
)

const errDuplicateEntry = 1062

func lonLat(p *domain.Point) (any, any) {
	if p == nil {
		return nil, nil
	}
	return p.Lon, p.Lat
}

func imagesJSON(imgs []domain.Image) (string, error) {
	if imgs == nil {
		imgs = []domain.Image{}
	}
	b, err := json.Marshal(imgs)
	if err != nil {
		return "", fmt.Errorf("marshal images: %w", err)
	}
	return string(b), nil
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) CreateHotel(ctx context.Context, h domain.Hotel) (int64, error) {
	imgs, err := imagesJSON(h.Images)
	if err != nil {
		return 0, err
	}
	lon, lat := lonLat(h.Location)
	res, err := r.db.ExecContext(ctx, insertHotelSQL,
		h.Name,
		h.Address,
		h.Price,
		imgs,
		lon,
		lat,
		h.AuthorID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repo) UpdateHotel(ctx context.Context, h domain.Hotel) error {
	imgs, err := imagesJSON(h.Images)
	if err != nil {
		return err
	}
	lon, lat := lonLat(h.Location)
	_, err = r.db.ExecContext(ctx, updateHotelSQL,
		h.Name,
		h.Address,
		h.Price,
		imgs,
		lon,
		lat,
		h.ID,
	)
	return err
}

func (r *Repo) DeleteHotel(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, deleteHotelSQL, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ToggleVote reads the user's current membership and applies the single
// resulting write in one transaction, holding the hotel row lock throughout.
func (r *Repo) ToggleVote(ctx context.Context, hotelID, userID int64, d domain.Direction) (domain.VoteState, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Neutral, err
	}
	defer func() { _ = tx.Rollback() }()

	var locked int64
	if err := tx.QueryRowContext(ctx, lockHotelSQL, hotelID).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Neutral, domain.ErrNotFound
		}
		return domain.Neutral, err
	}

	current := domain.Neutral
	var dir int8
	switch err := tx.QueryRowContext(ctx, voteStateSQL, hotelID, userID).Scan(&dir); {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return domain.Neutral, err
	default:
		current = domain.VoteState(dir)
	}

	next, write, err := domain.PlanVote(current, d)
	if err != nil {
		return current, err
	}
	switch write {
	case domain.VoteInsert:
		_, err = tx.ExecContext(ctx, insertVoteSQL, hotelID, userID, int8(next))
	case domain.VoteUpdate:
		_, err = tx.ExecContext(ctx, updateVoteSQL, int8(next), hotelID, userID)
	case domain.VoteDelete:
		_, err = tx.ExecContext(ctx, deleteVoteSQL, hotelID, userID)
	}
	if err != nil {
		return current, fmt.Errorf("vote %s: %w", write, err)
	}
	if err := tx.Commit(); err != nil {
		return current, err
	}
	return next, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHotel(row rowScanner) (domain.HotelView, error) {
	var hv domain.HotelView
	var imgs []byte
	var lon, lat sql.NullFloat64
	if err := row.Scan(
		&hv.ID,
		&hv.Name,
		&hv.Address,
		&hv.Price,
		&imgs,
		&lon, &lat,
		&hv.AuthorID,
		&hv.AuthorName,
	); err != nil {
		return domain.HotelView{}, err
	}
	if lon.Valid && lat.Valid {
		hv.Location = &domain.Point{Lon: lon.Float64, Lat: lat.Float64}
	}
	if len(imgs) > 0 {
		if err := json.Unmarshal(imgs, &hv.Images); err != nil {
			return domain.HotelView{}, fmt.Errorf("decode images of hotel %d: %w", hv.ID, err)
		}
	}
	return hv, nil
}

// addVote appends one membership row to the matching set.
func addVote(hv *domain.HotelView, userID int64, dir int8) {
	switch domain.VoteState(dir) {
	case domain.Upvoted:
		hv.Upvotes = append(hv.Upvotes, userID)
	case domain.Downvoted:
		hv.Downvotes = append(hv.Downvotes, userID)
	}
}

func (r *Repo) GetHotel(ctx context.Context, id int64) (domain.HotelView, error) {
	hv, err := scanHotel(r.db.QueryRowContext(ctx, getHotelSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.HotelView{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.HotelView{}, err
	}
	if hv.Upvotes, hv.Downvotes, err = r.ListVotes(ctx, id); err != nil {
		return domain.HotelView{}, err
	}
	return hv, nil
}

// ListVotes reads the membership rows of one hotel, one row per voter.
func (r *Repo) ListVotes(ctx context.Context, hotelID int64) ([]int64, []int64, error) {
	rows, err := r.db.QueryContext(ctx, listVotesSQL, hotelID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var hv domain.HotelView
	found := false
	for rows.Next() {
		found = true
		var user sql.NullInt64
		var dir sql.NullInt16
		if err := rows.Scan(&user, &dir); err != nil {
			return nil, nil, err
		}
		if user.Valid && dir.Valid {
			addVote(&hv, user.Int64, int8(dir.Int16))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, domain.ErrNotFound
	}
	return hv.Upvotes, hv.Downvotes, nil
}

func (r *Repo) ListHotels(ctx context.Context, q domain.HotelsQuery) (domain.HotelsPage, error) {
	limit, page := q.Limit, q.Page
	if limit <= 0 {
		limit = 5
	}
	if page <= 0 {
		page = 1
	}
	var author any
	if q.AuthorID != nil {
		author = *q.AuthorID
	}
	// one extra row tells us whether a next page exists
	rows, err := r.db.QueryContext(ctx, listHotelsSQL, author, author, limit+1, (page-1)*limit)
	if err != nil {
		return domain.HotelsPage{}, err
	}
	defer rows.Close()

	out := domain.HotelsPage{Page: page}
	for rows.Next() {
		hv, err := scanHotel(rows)
		if err != nil {
			return domain.HotelsPage{}, err
		}
		if len(out.Items) == limit {
			out.HasNext = true
			continue
		}
		out.Items = append(out.Items, hv)
	}
	if err := rows.Err(); err != nil {
		return domain.HotelsPage{}, err
	}
	rows.Close()

	if err := r.loadPageVotes(ctx, out.Items); err != nil {
		return domain.HotelsPage{}, err
	}
	return out, nil
}

// loadPageVotes fills the vote sets of a page of hotels with one query.
func (r *Repo) loadPageVotes(ctx context.Context, items []domain.HotelView) error {
	if len(items) == 0 {
		return nil
	}
	byID := make(map[int64]*domain.HotelView, len(items))
	args := make([]any, 0, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
		args = append(args, items[i].ID)
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(items)), ",")
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(listPageVotesSQL, marks), args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var hotelID, userID int64
		var dir int8
		if err := rows.Scan(&hotelID, &userID, &dir); err != nil {
			return err
		}
		if hv, ok := byID[hotelID]; ok {
			addVote(hv, userID, dir)
		}
	}
	return rows.Err()
}

func (r *Repo) ListReviews(ctx context.Context, hotelID int64, limit int) ([]domain.Review, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, listReviewsSQL, hotelID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(
			&rv.ID,
			&rv.HotelID,
			&rv.AuthorID,
			&rv.AuthorName,
			&rv.Body,
			&rv.Rating,
			&rv.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *Repo) CreateUser(ctx context.Context, u domain.User) (int64, error) {
	res, err := r.db.ExecContext(ctx, insertUserSQL, u.Username, u.PasswordHash)
	if err != nil {
		if isDuplicate(err) {
			return 0, fmt.Errorf("username %q: %w", u.Username, domain.ErrConflict)
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, getUserSQL, id))
}

func (r *Repo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, getUserByUsernameSQL, username))
}

func (r *Repo) UpdateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, updateUserSQL, u.Username, u.ID)
	if isDuplicate(err) {
		return fmt.Errorf("username %q: %w", u.Username, domain.ErrConflict)
	}
	return err
}

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	return u, nil
}

func isDuplicate(err error) bool {
	var me *gomysql.MySQLError
	return errors.As(err, &me) && me.Number == errDuplicateEntry
}
