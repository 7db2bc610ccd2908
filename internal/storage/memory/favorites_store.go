// Package memory provides an in-memory FavoriteStore for development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/ivoox-scraper/internal/storage"
)

type favoriteKey struct {
	userID  string
	ivooxID string
}

// FavoritesStore keeps favorites in a map guarded by a mutex.
type FavoritesStore struct {
	mu        sync.RWMutex
	favorites map[favoriteKey]storage.Favorite
}

// NewFavoritesStore constructs a FavoritesStore.
func NewFavoritesStore() *FavoritesStore {
	return &FavoritesStore{
		favorites: make(map[favoriteKey]storage.Favorite),
	}
}

// Toggle adds the favorite when absent and removes it when present.
func (s *FavoritesStore) Toggle(_ context.Context, fav storage.Favorite) (bool, error) {
	key := favoriteKey{userID: fav.UserID, ivooxID: fav.IvooxID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.favorites[key]; ok {
		delete(s.favorites, key)
		return false, nil
	}
	if fav.CreatedAt.IsZero() {
		fav.CreatedAt = time.Now().UTC()
	}
	s.favorites[key] = fav
	return true, nil
}

// List returns the user's favorites, newest first.
func (s *FavoritesStore) List(_ context.Context, userID string) ([]storage.Favorite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []storage.Favorite
	for key, fav := range s.favorites {
		if key.userID == userID {
			out = append(out, fav)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
