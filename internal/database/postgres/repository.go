package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/shortlyhq/shortly/internal/database"
	"github.com/shortlyhq/shortly/internal/models"
)

type urlRecord struct {
	ID          int64      `db:"id"`
	ShortCode   string     `db:"short_code"`
	OriginalURL string     `db:"original_url"`
	CreatedAt   time.Time  `db:"created_at"`
	ExpiresAt   *time.Time `db:"expires_at"`
}

func (r *urlRecord) ToURL() *models.URL {
	return &models.URL{
		ID:          r.ID,
		ShortCode:   r.ShortCode,
		OriginalURL: r.OriginalURL,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
	}
}

// URLRepository stores short link records in Postgres.
type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{
		db: db,
	}
}

func (r *URLRepository) Create(ctx context.Context, shortCode, originalURL string, expiresAt *time.Time) (*models.URL, error) {
	const op = "database.postgres.URLRepository.Create"

	rec := new(urlRecord)
	query := `INSERT INTO urls(short_code, original_url, expires_at)
		VALUES ($1, $2, $3)
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, shortCode, originalURL, expiresAt)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to create url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

func (r *URLRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.GetByShortCode"

	rec := new(urlRecord)
	query := `SELECT * FROM urls WHERE short_code = $1`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

func (r *URLRepository) Delete(ctx context.Context, shortCode string) error {
	const op = "database.postgres.URLRepository.Delete"

	query := `DELETE FROM urls WHERE short_code = $1`

	res, err := r.db.ExecContext(ctx, query, shortCode)
	if err != nil {
		return fmt.Errorf("%s: failed to delete url record: %w", op, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get rows affected: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
	}

	return nil
}

// ClickRepository appends durable click records. Rows are insert-only and
// never updated, so concurrent writers need no coordination.
type ClickRepository struct {
	db *sqlx.DB
}

func NewClickRepository(db *sqlx.DB) *ClickRepository {
	return &ClickRepository{
		db: db,
	}
}

func (r *ClickRepository) Insert(ctx context.Context, ev *models.ClickEvent) error {
	const op = "database.postgres.ClickRepository.Insert"

	query := `INSERT INTO clicks(short_code, ip, user_agent, referrer, clicked_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query, ev.ShortCode, ev.IP, ev.UserAgent, ev.Referrer, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("%s: failed to insert click record: %w", op, err)
	}

	return nil
}
