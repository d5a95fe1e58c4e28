// SPDX-License-Identifier: MIT

// Package recsync defines the remote record sync collaborator: the
// boundary through which profiles, favorites and watch history reach a
// cloud backend. All operations are idempotent and safe to call from
// background tasks.
package recsync

import (
	"context"

	"github.com/asrawiee-collab/StreamHaven-sub004/internal/content"
)

// Syncer pushes and removes user records remotely. Implementations
// must be idempotent: repeating a call with the same record is a no-op.
type Syncer interface {
	SyncProfile(ctx context.Context, p content.Profile) error
	DeleteProfile(ctx context.Context, profileID string) error

	SyncFavorite(ctx context.Context, f content.Favorite) error
	DeleteFavorite(ctx context.Context, f content.Favorite) error

	SyncWatchHistory(ctx context.Context, h content.WatchHistory) error
	DeleteWatchHistory(ctx context.Context, h content.WatchHistory) error
}

// ResolveFavorite picks the winner between a local and a remote
// favorite record: last-modified-wins.
func ResolveFavorite(local, remote content.Favorite) content.Favorite {
	if remote.ModifiedAt.After(local.ModifiedAt) {
		return remote
	}
	return local
}

// ResolveWatchHistory picks the winner between a local and a remote
// watch-history record. Progress beats recency: the furthest playback
// position wins, with modifiedAt as the tie-breaker.
func ResolveWatchHistory(local, remote content.WatchHistory) content.WatchHistory {
	if remote.Position > local.Position {
		return remote
	}
	if remote.Position == local.Position && remote.ModifiedAt.After(local.ModifiedAt) {
		return remote
	}
	return local
}
