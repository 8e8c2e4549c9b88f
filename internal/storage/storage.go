// Package storage contains a storage interface.
package storage

import (
	"context"
	"fmt"

	"github.com/blogjet/blogjet/internal/entities"
)

//go:generate mockgen -destination=./mock/storage.go -package=mock -source=storage.go

var (
	// ErrNotFound ...
	ErrNotFound = fmt.Errorf("not found")
	// ErrAlreadyExists is returned when unique field is taken.
	ErrAlreadyExists = fmt.Errorf("already exists")
)

// Storage provides methods for interacting with database.
// Every write replaces a whole document, there are no partial updates.
type Storage interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, u *entities.User) error
	// EnsureUser creates user if there is no user with the same username and returns the stored one.
	EnsureUser(ctx context.Context, u *entities.User) (*entities.User, error)
	GetUser(ctx context.Context, id string) (*entities.User, error)
	GetUserByEmail(ctx context.Context, email string) (*entities.User, error)

	ListPosts(ctx context.Context, p ListPostsParams) ([]*entities.Post, error)
	GetPost(ctx context.Context, id string) (*entities.Post, error)
	CreatePost(ctx context.Context, p *entities.Post) error
	// UpsertPostBySlug creates post if there is no post with the same slug. Existing post is left as is.
	UpsertPostBySlug(ctx context.Context, p *entities.Post) error
	UpdatePost(ctx context.Context, p *entities.Post) error
	// DeletePost deletes post with its comments.
	DeletePost(ctx context.Context, id string) error
	DeleteAllPosts(ctx context.Context) (int64, error)

	ListComments(ctx context.Context, postID string) ([]*entities.Comment, error)
	GetComment(ctx context.Context, id string) (*entities.Comment, error)
	CreateComment(ctx context.Context, c *entities.Comment) error
	UpdateComment(ctx context.Context, c *entities.Comment) error
	DeleteComment(ctx context.Context, id string) error

	ListTasks(ctx context.Context) ([]*entities.Task, error)
	GetTask(ctx context.Context, id string) (*entities.Task, error)
	CreateTask(ctx context.Context, t *entities.Task) error
	UpdateTask(ctx context.Context, t *entities.Task) error
	DeleteTask(ctx context.Context, id string) error
}

// ListPostsParams ...
type ListPostsParams struct {
	// Author filters posts by author when set.
	Author *string
}
