// Package seed creates the team user and the default posts.
package seed

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/blogjet/blogjet/internal/auth"
	"github.com/blogjet/blogjet/internal/entities"
	"github.com/blogjet/blogjet/internal/storage"
)

var log = logrus.WithField("layer", "seed").WithField("package", "seed")

const (
	// TeamUsername is the owner of default posts.
	TeamUsername = "Blogjet Team"
	// TeamEmail ...
	TeamEmail = "blogjet-team@blogjet.com"
)

// nolint:gochecknoglobals
var defaultPosts = []entities.Post{
	{
		Slug:      "welcome-to-blogjet",
		Title:     "Welcome to Blogjet!",
		Content:   "This is a default post. Start blogging now!",
		Excerpt:   "This is a default post. Start blogging now!",
		Image:     "https://images.unsplash.com/photo-1519125323398-675f0ddb6308?auto=format&fit=crop&w=400&q=80",
		Tag:       "Welcome",
		IsDefault: true,
	},
	{
		Slug:      "getting-started",
		Title:     "Getting Started",
		Content:   "Create your first post by clicking Create-Blog.",
		Excerpt:   "Create your first post by clicking Create-Blog.",
		Image:     "https://images.unsplash.com/photo-1465101046530-73398c7f28ca?auto=format&fit=crop&w=400&q=80",
		Tag:       "Guide",
		IsDefault: true,
	},
}

// Seed ensures the team user exists and inserts default posts which are missing.
// Posts that already exist are left untouched, so Seed is safe to run on every start.
func Seed(ctx context.Context, s storage.Storage, teamPassword string) error {
	hash, err := auth.HashPassword(teamPassword)
	if err != nil {
		return err
	}

	team, err := s.EnsureUser(ctx, &entities.User{
		Username:     TeamUsername,
		Email:        TeamEmail,
		PasswordHash: hash,
	})
	if err != nil {
		return fmt.Errorf("failed to ensure team user: %w", err)
	}

	for i := range defaultPosts {
		p := defaultPosts[i]
		p.Author = team.ID
		p.Likes = []string{}

		if err := s.UpsertPostBySlug(ctx, &p); err != nil {
			return fmt.Errorf("failed to upsert post %s: %w", p.Slug, err)
		}
	}

	log.WithField("team", team.ID).WithField("posts", len(defaultPosts)).Info("default posts upserted")

	return nil
}
