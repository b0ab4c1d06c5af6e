package feed

import (
	"context"
	"fmt"
	"hompy/backend"
	"hompy/storage"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// TagAll is the wildcard tag that disables tag filtering.
const TagAll = "all"

// PostsAPI is the subset of the backend client the feed controller needs.
type PostsAPI interface {
	ListPosts(ctx context.Context, tag string) ([]backend.Post, error)
	UpdateLike(ctx context.Context, rowIndex int, direction backend.LikeDirection) (int64, error)
	UpdateShare(ctx context.Context, rowIndex int) (int64, error)
}

type LikeResult struct {
	Liked bool  `json:"liked"`
	Count int64 `json:"count"`
}

type ShareResult struct {
	Count int64  `json:"count"`
	Link  string `json:"link"`
}

// Controller owns the post snapshot and everything derived from it:
// tag/search filtering, pinned-then-recency ordering, pagination and the
// like/share counters. The snapshot is fetched once per cache window and
// persisted through the storage gateway.
type Controller struct {
	mu sync.Mutex

	client      PostsAPI
	store       storage.Gateway
	publicURL   string
	cacheWindow time.Duration
	pageSize    int
	now         func() time.Time

	snapshot  []backend.Post
	tag       string
	search    string
	page      int
	endOfFeed bool
}

func NewController(
	client PostsAPI,
	store storage.Gateway,
	publicURL string,
	cacheWindow time.Duration,
	pageSize int,
) *Controller {
	return &Controller{
		client:      client,
		store:       store,
		publicURL:   publicURL,
		cacheWindow: cacheWindow,
		pageSize:    pageSize,
		now:         time.Now,
		tag:         TagAll,
	}
}

// EnsureLoaded makes sure an in-memory snapshot exists, adopting the
// persisted cache when it is younger than the cache window and fetching
// from the backend otherwise. On failure the snapshot stays empty and the
// error is returned for the caller to surface.
func (c *Controller) EnsureLoaded(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureLoadedLocked(ctx)
}

// The lock is held across the fetch, so a second caller cannot start a
// duplicate load of the same generation.
func (c *Controller) ensureLoadedLocked(ctx context.Context) error {
	if len(c.snapshot) > 0 {
		return nil
	}

	if posts, fetchedAt, ok := c.store.PostsSnapshot(); ok && c.now().Sub(fetchedAt) < c.cacheWindow {
		c.snapshot = posts
		log.Debug("Loaded posts snapshot from cache")
		return nil
	}

	posts, err := c.client.ListPosts(ctx, TagAll)
	if err != nil {
		log.Errorf("Error fetching posts: %v", err)
		return err
	}
	c.snapshot = posts
	c.store.SavePostsSnapshot(posts, c.now())
	return nil
}

// SetFilter installs a new tag/search combination. Changing either one
// resets pagination to the first page.
func (c *Controller) SetFilter(tag string, search string) {
	if tag == "" {
		tag = TagAll
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tag == tag && c.search == search {
		return
	}
	c.tag = tag
	c.search = search
	c.page = 0
	c.endOfFeed = false
}

func (c *Controller) Filter() (tag string, search string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tag, c.search
}

// Query filters the snapshot by exact tag match (unless tag is "all") and
// case-insensitive substring search over title, note and tag (unless the
// search term is empty). Pinned posts sort first, then date descending;
// the sort is stable, so snapshot order breaks ties.
func (c *Controller) Query(tag string, search string) []backend.Post {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queryLocked(tag, search)
}

func (c *Controller) queryLocked(tag string, search string) []backend.Post {
	posts := make([]backend.Post, 0, len(c.snapshot))
	needle := strings.ToLower(search)

	for _, post := range c.snapshot {
		if tag != "" && !strings.EqualFold(tag, TagAll) && !strings.EqualFold(post.Tag, tag) {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(post.Title), needle) &&
			!strings.Contains(strings.ToLower(post.Note), needle) &&
			!strings.Contains(strings.ToLower(post.Tag), needle) {
			continue
		}
		posts = append(posts, post)
	}

	dates := make([]time.Time, len(posts))
	for i, post := range posts {
		dates[i] = parsePostDate(post.Date)
	}
	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].Pin != posts[j].Pin {
			return posts[i].Pin
		}
		return dates[i].After(dates[j])
	})

	return posts
}

// NextPage returns the next page for the current filter and advances the
// pagination cursor.
func (c *Controller) NextPage(ctx context.Context) ([]backend.Post, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageLocked(ctx, c.page)
}

// Page returns page n for the current filter; subsequent NextPage calls
// continue from n+1.
func (c *Controller) Page(ctx context.Context, n int) ([]backend.Post, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageLocked(ctx, n)
}

func (c *Controller) pageLocked(ctx context.Context, n int) ([]backend.Post, error) {
	if err := c.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}

	filtered := c.queryLocked(c.tag, c.search)
	total := len(filtered)

	start := n * c.pageSize
	if start >= total {
		c.endOfFeed = true
		c.page = n
		return []backend.Post{}, nil
	}
	end := start + c.pageSize
	if end >= total {
		end = total
		c.endOfFeed = true
	} else {
		c.endOfFeed = false
	}
	c.page = n + 1

	return filtered[start:end], nil
}

// EndOfFeed reports whether the last served page reached the end of the
// filtered result; the pager hides itself once this turns true.
func (c *Controller) EndOfFeed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endOfFeed
}

func (c *Controller) PageSize() int {
	return c.pageSize
}

// Tags returns the distinct non-empty tags of the snapshot, sorted.
func (c *Controller) Tags(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}

	unique := make(map[string]bool)
	for _, post := range c.snapshot {
		if post.Tag != "" {
			unique[post.Tag] = true
		}
	}
	tags := make([]string, 0, len(unique))
	for tag := range unique {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags, nil
}

// Get looks a post up by its backend row index.
func (c *Controller) Get(ctx context.Context, rowIndex int) (backend.Post, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoadedLocked(ctx); err != nil {
		return backend.Post{}, false
	}
	if i := c.indexOfLocked(rowIndex); i >= 0 {
		return c.snapshot[i], true
	}
	return backend.Post{}, false
}

// ToggleLike flips the local liked state of a post, optimistically adjusts
// the displayed counter, and confirms with the backend. On failure both
// the liked set and the counter revert to their pre-toggle state.
func (c *Controller) ToggleLike(ctx context.Context, rowIndex int) (LikeResult, error) {
	c.mu.Lock()
	i := c.indexOfLocked(rowIndex)
	if i < 0 {
		c.mu.Unlock()
		return LikeResult{}, fmt.Errorf("unknown post %d", rowIndex)
	}

	wasLiked := c.store.IsLiked(rowIndex)
	liked := !wasLiked
	previousCount := c.snapshot[i].Like

	c.store.SetLiked(rowIndex, liked)
	direction := backend.LikeDecrement
	if liked {
		direction = backend.LikeIncrement
		c.snapshot[i].Like++
	} else if c.snapshot[i].Like > 0 {
		c.snapshot[i].Like--
	}
	c.mu.Unlock()

	newCount, err := c.client.UpdateLike(ctx, rowIndex, direction)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		log.Errorf("Error updating like for post %d: %v", rowIndex, err)
		c.store.SetLiked(rowIndex, wasLiked)
		if i := c.indexOfLocked(rowIndex); i >= 0 {
			c.snapshot[i].Like = previousCount
		}
		return LikeResult{Liked: wasLiked, Count: previousCount}, err
	}
	if i := c.indexOfLocked(rowIndex); i >= 0 {
		c.snapshot[i].Like = newCount
	}
	return LikeResult{Liked: liked, Count: newCount}, nil
}

// Share increments the share counter and returns the shareable link for
// the post.
func (c *Controller) Share(ctx context.Context, rowIndex int) (ShareResult, error) {
	link := fmt.Sprintf("%s?post=%d", c.publicURL, rowIndex)

	newCount, err := c.client.UpdateShare(ctx, rowIndex)
	if err != nil {
		log.Errorf("Error updating share for post %d: %v", rowIndex, err)
		return ShareResult{Link: link}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOfLocked(rowIndex); i >= 0 {
		c.snapshot[i].Share = newCount
	}
	return ShareResult{Count: newCount, Link: link}, nil
}

// Liked reports whether the local user has liked the post.
func (c *Controller) Liked(rowIndex int) bool {
	return c.store.IsLiked(rowIndex)
}

func (c *Controller) indexOfLocked(rowIndex int) int {
	for i, post := range c.snapshot {
		if post.RowIndex == rowIndex {
			return i
		}
	}
	return -1
}

func parsePostDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed
		}
	}
	log.Warningf("Invalid post date %q", value)
	return time.Time{}
}
