// SPDX-License-Identifier: MIT

package recsync

import (
	"context"
	"sync"

	"github.com/asrawiee-collab/StreamHaven-sub004/internal/content"
)

type favoriteKey struct {
	profileID string
	stableID  string
	sourceID  string
}

// Fake is an in-memory Syncer for tests and for running without a
// cloud backend. Writes resolve conflicts with the package helpers, so
// it behaves like a real remote.
type Fake struct {
	mu        sync.Mutex
	profiles  map[string]content.Profile
	favorites map[favoriteKey]content.Favorite
	history   map[favoriteKey]content.WatchHistory

	// Err, when set, is returned by every operation.
	Err error
}

// NewFake returns an empty in-memory Syncer.
func NewFake() *Fake {
	return &Fake{
		profiles:  make(map[string]content.Profile),
		favorites: make(map[favoriteKey]content.Favorite),
		history:   make(map[favoriteKey]content.WatchHistory),
	}
}

func (f *Fake) SyncProfile(_ context.Context, p content.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.profiles[p.ID] = p
	return nil
}

func (f *Fake) DeleteProfile(_ context.Context, profileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	delete(f.profiles, profileID)
	return nil
}

func (f *Fake) SyncFavorite(_ context.Context, fav content.Favorite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	key := favoriteKey{fav.ProfileID, fav.StableID, fav.SourceID}
	if existing, ok := f.favorites[key]; ok {
		fav = ResolveFavorite(existing, fav)
	}
	f.favorites[key] = fav
	return nil
}

func (f *Fake) DeleteFavorite(_ context.Context, fav content.Favorite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	delete(f.favorites, favoriteKey{fav.ProfileID, fav.StableID, fav.SourceID})
	return nil
}

func (f *Fake) SyncWatchHistory(_ context.Context, h content.WatchHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	key := favoriteKey{h.ProfileID, h.StableID, h.SourceID}
	if existing, ok := f.history[key]; ok {
		h = ResolveWatchHistory(existing, h)
	}
	f.history[key] = h
	return nil
}

func (f *Fake) DeleteWatchHistory(_ context.Context, h content.WatchHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	delete(f.history, favoriteKey{h.ProfileID, h.StableID, h.SourceID})
	return nil
}

// Profile returns the stored profile, for assertions.
func (f *Fake) Profile(id string) (content.Profile, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	return p, ok
}

// Favorite returns the stored favorite, for assertions.
func (f *Fake) Favorite(profileID, stableID, sourceID string) (content.Favorite, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fav, ok := f.favorites[favoriteKey{profileID, stableID, sourceID}]
	return fav, ok
}

// WatchHistory returns the stored history record, for assertions.
func (f *Fake) WatchHistory(profileID, stableID, sourceID string) (content.WatchHistory, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.history[favoriteKey{profileID, stableID, sourceID}]
	return h, ok
}
