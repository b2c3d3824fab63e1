package adapter

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	cacheport "go-hirechat/internal/infrastructure/cache/port"
	chat "go-hirechat/internal/pkg/chat/application/domain"
	repository "go-hirechat/internal/pkg/chat/persistence/repository/port"
)

const profileKeyPrefix = "chat:profile:"

// CachedUserDirectory is a read-through cache in front of a UserDirectory.
// Cache errors degrade to the underlying directory.
type CachedUserDirectory struct {
	inner repository.UserDirectory
	cache cacheport.Cache
	ttl   time.Duration
}

func NewCachedUserDirectory(inner repository.UserDirectory, cache cacheport.Cache, ttl time.Duration) *CachedUserDirectory {
	return &CachedUserDirectory{inner: inner, cache: cache, ttl: ttl}
}

var _ repository.UserDirectory = (*CachedUserDirectory)(nil)

func profileKey(id int64) string {
	return profileKeyPrefix + strconv.FormatInt(id, 10)
}

func (d *CachedUserDirectory) Exists(ctx context.Context, userID int64) (bool, error) {
	if _, ok := d.cached(ctx, userID); ok {
		return true, nil
	}
	return d.inner.Exists(ctx, userID)
}

func (d *CachedUserDirectory) Profiles(ctx context.Context, userIDs []int64) (map[int64]chat.UserProfile, error) {
	out := make(map[int64]chat.UserProfile, len(userIDs))
	var missing []int64
	for _, id := range userIDs {
		if p, ok := d.cached(ctx, id); ok {
			out[id] = p
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := d.inner.Profiles(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, p := range fetched {
		out[id] = p
		if raw, err := json.Marshal(p); err == nil {
			_ = d.cache.Set(ctx, profileKey(id), string(raw), d.ttl)
		}
	}
	return out, nil
}

func (d *CachedUserDirectory) cached(ctx context.Context, id int64) (chat.UserProfile, bool) {
	raw, err := d.cache.Get(ctx, profileKey(id))
	if err != nil {
		return chat.UserProfile{}, false
	}
	var p chat.UserProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return chat.UserProfile{}, false
	}
	return p, true
}
