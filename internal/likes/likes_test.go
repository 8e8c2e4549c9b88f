package likes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogjet/blogjet/internal/entities"
)

const (
	alice = "507f1f77bcf86cd799439011"
	bob   = "507f1f77bcf86cd799439012"
)

func TestToggle(t *testing.T) {
	tt := []struct {
		name  string
		post  entities.Post
		user  string
		liked bool
		likes []string
		count int
	}{
		{
			name:  "like empty post",
			post:  entities.Post{},
			user:  alice,
			liked: true,
			likes: []string{alice},
			count: 1,
		},
		{
			name:  "unlike",
			post:  entities.Post{Likes: []string{alice, bob}, LikeCount: 2},
			user:  alice,
			liked: false,
			likes: []string{bob},
			count: 1,
		},
		{
			name:  "negative counter is healed",
			post:  entities.Post{Likes: nil, LikeCount: -3},
			user:  bob,
			liked: true,
			likes: []string{bob},
			count: 1,
		},
		{
			name:  "counter ahead of membership",
			post:  entities.Post{Likes: []string{alice}, LikeCount: 7},
			user:  bob,
			liked: true,
			likes: []string{alice, bob},
			count: 2,
		},
		{
			name:  "upper case membership",
			post:  entities.Post{Likes: []string{"507F1F77BCF86CD799439011"}, LikeCount: 1},
			user:  alice,
			liked: false,
			likes: []string{},
			count: 0,
		},
		{
			name:  "blank and duplicate entries dropped",
			post:  entities.Post{Likes: []string{"", alice, alice}, LikeCount: 3},
			user:  alice,
			liked: false,
			likes: []string{},
			count: 0,
		},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			p := tc.post
			liked := Toggle(&p, tc.user)

			assert.Equal(t, tc.liked, liked)
			assert.Equal(t, tc.likes, p.Likes)
			assert.Equal(t, tc.count, p.LikeCount)
			assert.Zero(t, Drift(&p))
		})
	}
}

func TestToggle_DoubleToggleRestores(t *testing.T) {
	for _, user := range []string{alice, bob} {
		p := entities.Post{Likes: []string{bob}, LikeCount: 1}

		Toggle(&p, user)
		Toggle(&p, user)

		assert.ElementsMatch(t, []string{bob}, p.Likes)
		assert.Equal(t, 1, p.LikeCount)
	}
}

func TestToggle_FloorAtZero(t *testing.T) {
	p := entities.Post{Likes: []string{alice}, LikeCount: 0}

	require.False(t, Toggle(&p, alice))

	assert.Empty(t, p.Likes)
	assert.Equal(t, 0, p.LikeCount)
}

func TestToggle_InvariantHolds(t *testing.T) {
	p := entities.Post{LikeCount: 5}

	for _, u := range []string{alice, bob, alice, alice, bob, bob} {
		Toggle(&p, u)
		require.Equal(t, len(p.Likes), p.LikeCount)
	}
}

func TestDrift(t *testing.T) {
	assert.Equal(t, 0, Drift(&entities.Post{}))
	assert.Equal(t, 1, Drift(&entities.Post{LikeCount: 2, Likes: []string{alice}}))
	assert.Equal(t, -1, Drift(&entities.Post{LikeCount: 0, Likes: []string{alice}}))
}

func TestNormalize(t *testing.T) {
	p := entities.Post{Likes: []string{" " + alice + " ", bob, alice}, LikeCount: -1}

	Normalize(&p)

	assert.Equal(t, []string{alice, bob}, p.Likes)
	assert.Equal(t, 2, p.LikeCount)
}
