package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/shortlyhq/shortly/internal/database"
	"github.com/shortlyhq/shortly/internal/models"
)

var errUnknown = errors.New("unknown error")

var urlColumns = []string{"id", "short_code", "original_url", "created_at", "expires_at"}

func setupDB(t testing.TB) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}

	db := sqlx.NewDb(mockDB, "sqlmock")

	t.Cleanup(func() {
		mockDB.Close()
		db.Close()
	})

	return db, mock
}

func setupURLRepository(t testing.TB) (*URLRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock := setupDB(t)
	return NewURLRepository(db), mock
}

func TestURLRepository_Create(t *testing.T) {
	t.Run("short code exists", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		mock.ExpectQuery(`INSERT INTO urls`).
			WithArgs("code1", "https://example.com", nil).
			WillReturnError(&pgconn.PgError{Code: uniqueViolationErrCode})

		url, err := repo.Create(context.TODO(), "code1", "https://example.com", nil)

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrShortCodeExists)
		assert.Nil(t, url)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown error", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		mock.ExpectQuery(`INSERT INTO urls`).
			WithArgs("code1", "https://example.com", nil).
			WillReturnError(errUnknown)

		url, err := repo.Create(context.TODO(), "code1", "https://example.com", nil)

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, url)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		now := time.Now()
		mock.ExpectQuery(`INSERT INTO urls`).
			WithArgs("code1", "https://example.com", nil).
			WillReturnRows(sqlmock.NewRows(urlColumns).
				AddRow(int64(1), "code1", "https://example.com", now, nil))

		url, err := repo.Create(context.TODO(), "code1", "https://example.com", nil)

		assert.NoError(t, err)
		assert.Equal(t, &models.URL{
			ID:          1,
			ShortCode:   "code1",
			OriginalURL: "https://example.com",
			CreatedAt:   now,
		}, url)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestURLRepository_GetByShortCode(t *testing.T) {
	t.Run("url not found", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		mock.ExpectQuery(`SELECT \* FROM urls`).
			WithArgs("code1").
			WillReturnError(sql.ErrNoRows)

		url, err := repo.GetByShortCode(context.TODO(), "code1")

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrURLNotFound)
		assert.Nil(t, url)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		now := time.Now()
		expiresAt := now.Add(time.Hour)
		mock.ExpectQuery(`SELECT \* FROM urls`).
			WithArgs("code1").
			WillReturnRows(sqlmock.NewRows(urlColumns).
				AddRow(int64(1), "code1", "https://example.com", now, expiresAt))

		url, err := repo.GetByShortCode(context.TODO(), "code1")

		assert.NoError(t, err)
		assert.Equal(t, "https://example.com", url.OriginalURL)
		assert.NotNil(t, url.ExpiresAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestURLRepository_Delete(t *testing.T) {
	t.Run("url not found", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		mock.ExpectExec(`DELETE FROM urls`).
			WithArgs("code1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Delete(context.TODO(), "code1")

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrURLNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupURLRepository(t)

		mock.ExpectExec(`DELETE FROM urls`).
			WithArgs("code1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Delete(context.TODO(), "code1")

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestClickRepository_Insert(t *testing.T) {
	ev := &models.ClickEvent{
		ShortCode: "code1",
		IP:        "203.0.113.7",
		UserAgent: "curl/8.0",
		Referrer:  "https://news.example.org",
		Timestamp: time.Now().UTC(),
	}

	t.Run("insert error", func(t *testing.T) {
		db, mock := setupDB(t)
		repo := NewClickRepository(db)

		mock.ExpectExec(`INSERT INTO clicks`).
			WithArgs(ev.ShortCode, ev.IP, ev.UserAgent, ev.Referrer, ev.Timestamp).
			WillReturnError(errUnknown)

		err := repo.Insert(context.TODO(), ev)

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		db, mock := setupDB(t)
		repo := NewClickRepository(db)

		mock.ExpectExec(`INSERT INTO clicks`).
			WithArgs(ev.ShortCode, ev.IP, ev.UserAgent, ev.Referrer, ev.Timestamp).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := repo.Insert(context.TODO(), ev)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
