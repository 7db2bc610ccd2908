// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/ivoox-scraper/internal/storage"
)

// FavoritesStoreConfig controls the Postgres connection pool used for
// favorites rows.
type FavoritesStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// FavoritesStore persists favorites in Postgres. The (user_id, ivoox_id)
// pair carries a unique constraint, which Toggle leans on.
type FavoritesStore struct {
	pool pgxQuerier
}

// NewFavoritesStore creates a Postgres-backed FavoritesStore using the
// provided config.
func NewFavoritesStore(ctx context.Context, cfg FavoritesStoreConfig) (*FavoritesStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &FavoritesStore{pool: pool}, nil
}

// NewFavoritesStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewFavoritesStoreWithPool(pool pgxQuerier) (*FavoritesStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &FavoritesStore{pool: pool}, nil
}

const insertFavoriteSQL = `
INSERT INTO favorites (user_id, ivoox_id, name, ivoox_url, thumbnail_url, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, ivoox_id) DO NOTHING`

const deleteFavoriteSQL = `
DELETE FROM favorites WHERE user_id = $1 AND ivoox_id = $2`

const listFavoritesSQL = `
SELECT user_id, ivoox_id, name, ivoox_url, thumbnail_url, created_at
FROM favorites WHERE user_id = $1 ORDER BY created_at DESC`

// Toggle inserts the favorite; when the row already exists it removes it
// instead. Returns true when the favorite was added.
func (s *FavoritesStore) Toggle(ctx context.Context, fav storage.Favorite) (bool, error) {
	createdAt := fav.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx, insertFavoriteSQL,
		fav.UserID, fav.IvooxID, fav.Name, fav.URL, fav.Thumbnail, createdAt)
	if err != nil {
		return false, fmt.Errorf("insert favorite: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	if _, err := s.pool.Exec(ctx, deleteFavoriteSQL, fav.UserID, fav.IvooxID); err != nil {
		return false, fmt.Errorf("delete favorite: %w", err)
	}
	return false, nil
}

// List returns the user's favorites, newest first.
func (s *FavoritesStore) List(ctx context.Context, userID string) ([]storage.Favorite, error) {
	rows, err := s.pool.Query(ctx, listFavoritesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	var favorites []storage.Favorite
	for rows.Next() {
		var fav storage.Favorite
		if err := rows.Scan(&fav.UserID, &fav.IvooxID, &fav.Name, &fav.URL, &fav.Thumbnail, &fav.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		favorites = append(favorites, fav)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorites: %w", err)
	}
	return favorites, nil
}

// Close releases the underlying pool.
func (s *FavoritesStore) Close() {
	s.pool.Close()
}
