// Package likes keeps a post's like set and like counter in sync.
package likes

import (
	"github.com/blogjet/blogjet/internal/entities"
	"github.com/blogjet/blogjet/internal/identity"
)

// Normalize repairs partially written like data in place.
// Entries are canonicalized, blank and repeated entries are dropped and
// the counter is reset to the size of the set, which is ground truth.
func Normalize(p *entities.Post) {
	out := make([]string, 0, len(p.Likes))
	seen := make(map[string]struct{}, len(p.Likes))

	for _, v := range p.Likes {
		id := identity.Canonical(v)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	p.Likes = out

	if p.LikeCount < 0 || p.LikeCount != len(p.Likes) {
		p.LikeCount = len(p.Likes)
	}
}

// Drift returns the difference between the counter and the like set size.
// Zero means the post is consistent.
func Drift(p *entities.Post) int {
	return p.LikeCount - len(p.Likes)
}

// Toggle flips requester's membership in the post's like set.
// It returns true when the post became liked by requester.
func Toggle(p *entities.Post, requester string) bool {
	Normalize(p)

	requester = identity.Canonical(requester)

	idx := -1
	for i, v := range p.Likes {
		if v == requester {
			idx = i
			break
		}
	}

	if idx == -1 {
		p.Likes = append(p.Likes, requester)
		p.LikeCount++

		return true
	}

	p.Likes = append(p.Likes[:idx], p.Likes[idx+1:]...)
	if p.LikeCount--; p.LikeCount < 0 {
		p.LikeCount = 0
	}

	return false
}
