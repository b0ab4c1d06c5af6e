package storage

import (
	"hompy/backend"
	"time"
)

// UserProfile is the locally persisted identity of the site visitor.
type UserProfile struct {
	Username   string `json:"username"`
	Age        string `json:"age"`
	Location   string `json:"location"`
	ColorClass string `json:"colorClass"`
}

// Complete reports whether all three identity fields are filled in.
// Only complete profiles are persisted.
func (p UserProfile) Complete() bool {
	return p.Username != "" && p.Age != "" && p.Location != ""
}

// Gateway persists the visitor-local state: the user profile, the set of
// liked post row indices, and the cached post snapshot with its fetch time.
type Gateway interface {
	Profile() (UserProfile, bool)
	SaveProfile(profile UserProfile)

	LikedPosts() []int
	IsLiked(rowIndex int) bool
	SetLiked(rowIndex int, liked bool)

	PostsSnapshot() ([]backend.Post, time.Time, bool)
	SavePostsSnapshot(posts []backend.Post, fetchedAt time.Time)
	ClearPostsSnapshot()
}
