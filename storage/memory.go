package storage

import (
	"hompy/backend"
	"sync"
	"time"
)

// MemGateway holds the same state as RedisGateway in process memory.
// It backs the one-shot CLI commands and the tests.
type MemGateway struct {
	mu sync.Mutex

	profile    UserProfile
	hasProfile bool

	liked map[int]bool

	posts     []backend.Post
	fetchedAt time.Time
	hasPosts  bool
}

func NewMemGateway() *MemGateway {
	return &MemGateway{
		liked: make(map[int]bool),
	}
}

func (g *MemGateway) Profile() (UserProfile, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.profile, g.hasProfile
}

func (g *MemGateway) SaveProfile(profile UserProfile) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !profile.Complete() {
		g.profile = UserProfile{}
		g.hasProfile = false
		return
	}
	g.profile = profile
	g.hasProfile = true
}

func (g *MemGateway) LikedPosts() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	liked := make([]int, 0, len(g.liked))
	for id := range g.liked {
		liked = append(liked, id)
	}
	return liked
}

func (g *MemGateway) IsLiked(rowIndex int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.liked[rowIndex]
}

func (g *MemGateway) SetLiked(rowIndex int, liked bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if liked {
		g.liked[rowIndex] = true
	} else {
		delete(g.liked, rowIndex)
	}
}

func (g *MemGateway) PostsSnapshot() ([]backend.Post, time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.hasPosts {
		return nil, time.Time{}, false
	}
	posts := make([]backend.Post, len(g.posts))
	copy(posts, g.posts)
	return posts, g.fetchedAt, true
}

func (g *MemGateway) SavePostsSnapshot(posts []backend.Post, fetchedAt time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.posts = make([]backend.Post, len(posts))
	copy(g.posts, posts)
	g.fetchedAt = fetchedAt
	g.hasPosts = true
}

func (g *MemGateway) ClearPostsSnapshot() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.posts = nil
	g.hasPosts = false
}
