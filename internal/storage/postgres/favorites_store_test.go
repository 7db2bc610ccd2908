package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ivoox-scraper/internal/storage"
)

func newMockStore(t *testing.T) (*FavoritesStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewFavoritesStoreWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

var testFavorite = storage.Favorite{
	UserID:    "u1",
	IvooxID:   "f1417677",
	Name:      "Horizonte",
	URL:       "http://www.ivoox.com/podcast-horizonte_sq_f1417677_1.html",
	Thumbnail: "t.jpg",
	CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
}

func TestToggle_InsertsWhenAbsent(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec(insertFavoriteSQL).
		WithArgs(testFavorite.UserID, testFavorite.IvooxID, testFavorite.Name,
			testFavorite.URL, testFavorite.Thumbnail, testFavorite.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	added, err := store.Toggle(context.Background(), testFavorite)
	require.NoError(t, err)
	require.True(t, added)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestToggle_DeletesWhenConflict(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	// ON CONFLICT DO NOTHING reports zero rows, so the second statement
	// removes the existing row.
	mock.ExpectExec(insertFavoriteSQL).
		WithArgs(testFavorite.UserID, testFavorite.IvooxID, testFavorite.Name,
			testFavorite.URL, testFavorite.Thumbnail, testFavorite.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec(deleteFavoriteSQL).
		WithArgs(testFavorite.UserID, testFavorite.IvooxID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	added, err := store.Toggle(context.Background(), testFavorite)
	require.NoError(t, err)
	require.False(t, added)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestToggle_InsertError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec(insertFavoriteSQL).
		WithArgs(testFavorite.UserID, testFavorite.IvooxID, testFavorite.Name,
			testFavorite.URL, testFavorite.Thumbnail, testFavorite.CreatedAt).
		WillReturnError(errors.New("connection reset"))

	_, err := store.Toggle(context.Background(), testFavorite)
	require.Error(t, err)
}

func TestList_ScansRowsNewestFirst(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	older := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"user_id", "ivoox_id", "name", "ivoox_url", "thumbnail_url", "created_at"}).
		AddRow("u1", "f1417677", "Horizonte", "http://x", "t.jpg", testFavorite.CreatedAt).
		AddRow("u1", "f1167962", "Nadie Sabe Nada", "http://y", "t2.jpg", older)
	mock.ExpectQuery(listFavoritesSQL).WithArgs("u1").WillReturnRows(rows)

	favorites, err := store.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, favorites, 2)
	require.Equal(t, "f1417677", favorites[0].IvooxID)
	require.Equal(t, "f1167962", favorites[1].IvooxID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList_QueryError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery(listFavoritesSQL).WithArgs("u1").WillReturnError(errors.New("boom"))

	_, err := store.List(context.Background(), "u1")
	require.Error(t, err)
}

func TestNewFavoritesStore_RequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewFavoritesStore(context.Background(), FavoritesStoreConfig{})
	require.Error(t, err)
}

func TestNewFavoritesStoreWithPool_RequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewFavoritesStoreWithPool(nil)
	require.Error(t, err)
}
