package apps

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no app is registered under a package name.
var ErrNotFound = errors.New("app not found")

// Repository persists app signing records keyed by package name.
type Repository interface {
	Upsert(ctx context.Context, app App) (App, error)
	Get(ctx context.Context, packageName string) (App, error)
}

// PostgresRepository stores apps in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the apps table when it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS apps (
        id UUID PRIMARY KEY,
        package_name TEXT NOT NULL UNIQUE,
        fingerprints TEXT[] NOT NULL,
        multiple_signers BOOLEAN NOT NULL DEFAULT FALSE,
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL
    )`)
	return err
}

// Upsert inserts the app or replaces the signing data of an existing package.
func (r *PostgresRepository) Upsert(ctx context.Context, app App) (App, error) {
	id, err := uuid.Parse(app.ID)
	if err != nil {
		return App{}, err
	}
	const query = `
        INSERT INTO apps (id, package_name, fingerprints, multiple_signers, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5)
        ON CONFLICT (package_name) DO UPDATE
            SET fingerprints = EXCLUDED.fingerprints,
                multiple_signers = EXCLUDED.multiple_signers,
                updated_at = EXCLUDED.updated_at
        RETURNING id, created_at, updated_at`
	var storedID uuid.UUID
	var createdAt, updatedAt time.Time
	if err := r.db.QueryRow(ctx, query, id, app.PackageName, app.Fingerprints, app.MultipleSigners, app.UpdatedAt.UTC()).
		Scan(&storedID, &createdAt, &updatedAt); err != nil {
		return App{}, err
	}
	app.ID = storedID.String()
	app.CreatedAt = createdAt.UTC()
	app.UpdatedAt = updatedAt.UTC()
	return app, nil
}

// Get fetches an app by package name.
func (r *PostgresRepository) Get(ctx context.Context, packageName string) (App, error) {
	row := r.db.QueryRow(ctx, `SELECT id, package_name, fingerprints, multiple_signers, created_at, updated_at
        FROM apps WHERE package_name = $1`, packageName)
	var a App
	var id uuid.UUID
	if err := row.Scan(&id, &a.PackageName, &a.Fingerprints, &a.MultipleSigners, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return App{}, ErrNotFound
		}
		return App{}, err
	}
	a.ID = id.String()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}
