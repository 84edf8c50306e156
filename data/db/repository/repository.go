package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/glekoz/ticket-images/db/migrations"
	"github.com/glekoz/ticket-images/internal/models"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() {
	r.pool.Close()
}

// Migrate applies the embedded migration files in filename order.
func (r *Repository) Migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrations.Files, ".")
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		sql, err := fs.ReadFile(migrations.Files, name)
		if err != nil {
			return err
		}
		if _, err := r.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == models.UniqueViolation
}

func (r *Repository) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		u.Username, u.Email, u.PasswordHash,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, models.ErrUniqueViolation
		}
		return models.User{}, err
	}
	return u, nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, created_at
		 FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, models.ErrNotFound
		}
		return models.User{}, err
	}
	return u, nil
}

func (r *Repository) CreateToken(ctx context.Context, token string, userID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tokens (token, user_id) VALUES ($1, $2)`, token, userID)
	return err
}

func (r *Repository) GetTokenUser(ctx context.Context, token string) (int64, error) {
	var userID int64
	err := r.pool.QueryRow(ctx,
		`SELECT user_id FROM tokens WHERE token = $1`, token).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, models.ErrNotFound
		}
		return 0, err
	}
	return userID, nil
}

func (r *Repository) CreateTicket(ctx context.Context, t models.Ticket) (models.Ticket, error) {
	t.Status = models.TicketStatusCreated
	err := r.pool.QueryRow(ctx,
		`INSERT INTO tickets (user_id, title, description, status, num_images)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		t.UserID, t.Title, t.Description, t.Status, t.NumImages,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return models.Ticket{}, err
	}
	return t, nil
}

// GetUserTicket fetches a ticket scoped to its owner. A ticket that
// exists but belongs to someone else is reported as not found.
func (r *Repository) GetUserTicket(ctx context.Context, id, userID int64) (models.Ticket, error) {
	var t models.Ticket
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, title, description, status, num_images, created_at, updated_at
		 FROM tickets WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Status, &t.NumImages, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, models.ErrNotFound
		}
		return models.Ticket{}, err
	}
	return t, nil
}

func (r *Repository) ListTickets(ctx context.Context, f models.TicketFilter) ([]models.Ticket, int, error) {
	where := `WHERE user_id = $1`
	args := []any{f.UserID}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if !f.Created.IsZero() {
		args = append(args, f.Created)
		where += fmt.Sprintf(` AND created_at::date = $%d::date`, len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM tickets `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, title, description, status, num_images, created_at, updated_at
		 FROM tickets `+where+fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		var t models.Ticket
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Status,
			&t.NumImages, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, err
		}
		tickets = append(tickets, t)
	}
	return tickets, total, rows.Err()
}

// AddImage inserts the image row and bumps the owning ticket's
// updated_at in one transaction, so a vanished ticket surfaces as
// ErrNotFound instead of a dangling row.
func (r *Repository) AddImage(ctx context.Context, img models.Image) (models.Image, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.Image{}, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE tickets SET updated_at = now() WHERE id = $1`, img.TicketID)
	if err != nil {
		return models.Image{}, err
	}
	if tag.RowsAffected() == 0 {
		return models.Image{}, models.ErrNotFound
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO images (ticket_id, remote_url)
		 VALUES ($1, $2)
		 RETURNING id, uploaded_at`,
		img.TicketID, img.RemoteURL,
	).Scan(&img.ID, &img.UploadedAt)
	if err != nil {
		return models.Image{}, err
	}
	return img, tx.Commit(ctx)
}

func (r *Repository) ListImages(ctx context.Context, ticketID int64) ([]models.Image, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, ticket_id, remote_url, uploaded_at
		 FROM images WHERE ticket_id = $1 ORDER BY id`,
		ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []models.Image
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(&img.ID, &img.TicketID, &img.RemoteURL, &img.UploadedAt); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (r *Repository) TicketState(ctx context.Context, id int64) (models.TicketState, error) {
	var s models.TicketState
	err := r.pool.QueryRow(ctx,
		`SELECT t.id, t.status, t.num_images,
		        (SELECT count(*) FROM images i WHERE i.ticket_id = t.id)
		 FROM tickets t WHERE t.id = $1`,
		id,
	).Scan(&s.TicketID, &s.Status, &s.NumImages, &s.ImageCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.TicketState{}, models.ErrNotFound
		}
		return models.TicketState{}, err
	}
	return s, nil
}

// CompleteTicket performs the guarded status transition. The count
// check and the write are a single statement, so concurrent callers
// cannot both observe the pre-transition state and both win: the row
// lock taken by UPDATE serializes them and the status guard turns the
// losers into no-ops. Reports whether this call did the transition.
func (r *Repository) CompleteTicket(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tickets
		 SET status = $1, updated_at = now()
		 WHERE id = $2
		   AND status = $3
		   AND (SELECT count(*) FROM images WHERE ticket_id = $2) >= num_images`,
		models.TicketStatusCompleted, id, models.TicketStatusCreated)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// StalledTickets lists tickets still CREATED whose image count already
// meets the declared target — candidates left behind by a crash
// between image persistence and the completion check.
func (r *Repository) StalledTickets(ctx context.Context, limit int) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT t.id
		 FROM tickets t
		 WHERE t.status = $1
		   AND (SELECT count(*) FROM images i WHERE i.ticket_id = t.id) >= t.num_images
		 ORDER BY t.id
		 LIMIT $2`,
		models.TicketStatusCreated, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
