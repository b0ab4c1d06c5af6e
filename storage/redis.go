package storage

import (
	"context"
	"encoding/json"
	"hompy/backend"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	profileRedisKey      = "hompy_user_data"
	likedPostsRedisKey   = "hompy_liked_posts"
	postsCacheRedisKey   = "hompy_posts_cache"
	postsCacheTsRedisKey = "hompy_posts_cache_ts"
)

// RedisGateway keeps the visitor-local state in redis, JSON-encoded.
// Unparsable values are treated as absent and deleted.
type RedisGateway struct {
	redisClient *redis.Client
}

func NewRedisGateway(options *redis.Options) *RedisGateway {
	return &RedisGateway{
		redisClient: redis.NewClient(options),
	}
}

func (g *RedisGateway) Profile() (UserProfile, bool) {
	val, err := g.redisClient.Get(context.Background(), profileRedisKey).Result()
	if err != nil {
		return UserProfile{}, false
	}

	var profile UserProfile
	if err := json.Unmarshal([]byte(val), &profile); err != nil {
		log.Errorf("Error unmarshalling stored profile: %s", err)
		g.redisClient.Del(context.Background(), profileRedisKey)
		return UserProfile{}, false
	}
	return profile, true
}

func (g *RedisGateway) SaveProfile(profile UserProfile) {
	ctx := context.Background()
	if !profile.Complete() {
		g.redisClient.Del(ctx, profileRedisKey)
		return
	}

	bytes, err := json.Marshal(profile)
	if err == nil {
		g.redisClient.Set(ctx, profileRedisKey, bytes, 0)
	}
}

func (g *RedisGateway) LikedPosts() []int {
	val, err := g.redisClient.Get(context.Background(), likedPostsRedisKey).Result()
	if err != nil {
		return nil
	}

	var liked []int
	if err := json.Unmarshal([]byte(val), &liked); err != nil {
		log.Errorf("Error unmarshalling liked posts: %s", err)
		g.redisClient.Del(context.Background(), likedPostsRedisKey)
		return nil
	}
	return liked
}

func (g *RedisGateway) IsLiked(rowIndex int) bool {
	for _, id := range g.LikedPosts() {
		if id == rowIndex {
			return true
		}
	}
	return false
}

func (g *RedisGateway) SetLiked(rowIndex int, liked bool) {
	current := g.LikedPosts()
	updated := make([]int, 0, len(current)+1)
	for _, id := range current {
		if id != rowIndex {
			updated = append(updated, id)
		}
	}
	if liked {
		updated = append(updated, rowIndex)
	}

	bytes, err := json.Marshal(updated)
	if err == nil {
		g.redisClient.Set(context.Background(), likedPostsRedisKey, bytes, 0)
	}
}

func (g *RedisGateway) PostsSnapshot() ([]backend.Post, time.Time, bool) {
	ctx := context.Background()

	tsVal, err := g.redisClient.Get(ctx, postsCacheTsRedisKey).Result()
	if err != nil {
		return nil, time.Time{}, false
	}
	millis, err := strconv.ParseInt(tsVal, 10, 64)
	if err != nil {
		g.ClearPostsSnapshot()
		return nil, time.Time{}, false
	}

	val, err := g.redisClient.Get(ctx, postsCacheRedisKey).Result()
	if err != nil {
		return nil, time.Time{}, false
	}

	var posts []backend.Post
	if err := json.Unmarshal([]byte(val), &posts); err != nil {
		log.Errorf("Error unmarshalling cached posts: %s", err)
		g.ClearPostsSnapshot()
		return nil, time.Time{}, false
	}
	return posts, time.UnixMilli(millis), true
}

func (g *RedisGateway) SavePostsSnapshot(posts []backend.Post, fetchedAt time.Time) {
	bytes, err := json.Marshal(posts)
	if err != nil {
		return
	}
	ctx := context.Background()
	g.redisClient.Set(ctx, postsCacheRedisKey, bytes, 0)
	g.redisClient.Set(ctx, postsCacheTsRedisKey, strconv.FormatInt(fetchedAt.UnixMilli(), 10), 0)
}

func (g *RedisGateway) ClearPostsSnapshot() {
	g.redisClient.Del(context.Background(), postsCacheRedisKey, postsCacheTsRedisKey)
}
