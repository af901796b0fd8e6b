package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goToken/internal/dbx"
	"github.com/MrEthical07/goToken/store/migrations"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const pgUniqueViolation = "23505"

const (
	insertRecordSQL = `
		INSERT INTO refresh_tokens (id, token, subject, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
	`
	findRecordSQL = `
		SELECT id, token, subject, expires_at, revoked, created_at, revoked_at
		FROM refresh_tokens
		WHERE token = $1
	`
	lockRecordSQL = `
		SELECT revoked
		FROM refresh_tokens
		WHERE token = $1
		FOR UPDATE
	`
	revokeRecordSQL = `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $2
		WHERE token = $1
	`
)

// PostgresStore keeps records in the refresh_tokens table. Transitions take a
// row lock with SELECT ... FOR UPDATE, so concurrent revocations of the same
// token serialize on that row.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresStore binds a [PostgresStore] to db. The schema is expected to
// exist; see [MigratePostgres].
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// OpenPostgres opens a pgx-backed *sql.DB for dsn.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// MigratePostgres applies the embedded refresh_tokens migrations.
func MigratePostgres(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// Insert adds rec. A duplicate token maps to ErrConflict.
func (s *PostgresStore) Insert(ctx context.Context, rec Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	return insertRecord(ctx, s.db, rec, s.now())
}

func insertRecord(ctx context.Context, db dbx.DBTX, rec Record, now time.Time) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}
	_, err := db.ExecContext(ctx, insertRecordSQL, rec.ID, rec.Token, rec.Subject, rec.ExpiresAt, created)
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrConflict
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

// FindByToken loads the record for token or returns ErrNotFound.
func (s *PostgresStore) FindByToken(ctx context.Context, token string) (*Record, error) {
	var (
		rec       Record
		revokedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, findRecordSQL, token).Scan(
		&rec.ID,
		&rec.Token,
		&rec.Subject,
		&rec.ExpiresAt,
		&rec.Revoked,
		&rec.CreatedAt,
		&revokedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if revokedAt.Valid {
		rec.RevokedAt = revokedAt.Time
	}
	return &rec, nil
}

// RevokeIfActive locks the row and flips revoked when it is still false.
func (s *PostgresStore) RevokeIfActive(ctx context.Context, token string) (RevokeResult, error) {
	res := RevokeFailed
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		res, err = revokeLocked(ctx, tx, token, s.now())
		return err
	})
	if err != nil {
		return RevokeFailed, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return res, nil
}

// Rotate revokes oldToken and inserts next in one transaction. When the old
// row is missing or already revoked the transaction commits without inserting.
func (s *PostgresStore) Rotate(ctx context.Context, oldToken string, next Record) (RevokeResult, error) {
	if err := validateRecord(next); err != nil {
		return RevokeFailed, err
	}
	now := s.now()
	res := RevokeFailed
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		res, err = revokeLocked(ctx, tx, oldToken, now)
		if err != nil || res != RevokeRevoked {
			return err
		}
		return insertRecord(ctx, tx, next, now)
	})
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, ErrConflict), errors.Is(err, ErrPersistence):
		return RevokeFailed, err
	default:
		return RevokeFailed, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
}

func revokeLocked(ctx context.Context, tx dbx.DBTX, token string, now time.Time) (RevokeResult, error) {
	var revoked bool
	if err := tx.QueryRowContext(ctx, lockRecordSQL, token).Scan(&revoked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RevokeNotFound, nil
		}
		return RevokeFailed, err
	}
	if revoked {
		return RevokeAlreadyRevoked, nil
	}
	if _, err := tx.ExecContext(ctx, revokeRecordSQL, token, now); err != nil {
		return RevokeFailed, err
	}
	return RevokeRevoked, nil
}

// Ping checks database reachability.
func (s *PostgresStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.db.PingContext(ctx); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return time.Since(start), nil
}
