// Package service contains interface for service business-logic.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/blogjet/blogjet/internal/entities"
)

//go:generate mockgen -destination=./mock/service.go -package=mock -source=service.go

var (
	// ErrValidation is returned when input does not satisfy the resource schema.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials is returned when login email or password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Service ...
type Service interface {
	Register(ctx context.Context, username, email, password string) (*Session, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	Me(ctx context.Context, requester string) (*entities.User, error)

	ListPosts(ctx context.Context) ([]*entities.Post, error)
	ListPostsByAuthor(ctx context.Context, author string) ([]*entities.Post, error)
	GetPost(ctx context.Context, id string) (*entities.Post, error)
	CreatePost(ctx context.Context, p *entities.Post) error
	UpdatePost(ctx context.Context, requester, id string, u PostUpdate) (*entities.Post, error)
	DeletePost(ctx context.Context, requester, id string) error
	// ToggleLike flips requester's like on the post and returns the stored post.
	ToggleLike(ctx context.Context, requester, id string) (*entities.Post, error)

	ListComments(ctx context.Context, postID string) ([]*entities.Comment, error)
	GetComment(ctx context.Context, id string) (*entities.Comment, error)
	CreateComment(ctx context.Context, c *entities.Comment) error
	UpdateComment(ctx context.Context, requester, id, content string) (*entities.Comment, error)
	DeleteComment(ctx context.Context, requester, id string) error

	ListTasks(ctx context.Context) ([]*entities.Task, error)
	GetTask(ctx context.Context, id string) (*entities.Task, error)
	CreateTask(ctx context.Context, t *entities.Task) error
	UpdateTask(ctx context.Context, id string, u TaskUpdate) (*entities.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// Session is issued on register and login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *entities.User
}

// PostUpdate holds post fields to change. Empty fields keep the stored value.
type PostUpdate struct {
	Title   string
	Content string
	Excerpt string
	Image   string
	Tag     string
}

// TaskUpdate holds task fields to change. Nil fields keep the stored value.
type TaskUpdate struct {
	Title       *string
	Description *string
	AssignedTo  *string
	Status      *entities.TaskStatus
	Deadline    *time.Time
	Project     *string
}
