// Package impl is implementation of service interface.
package impl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/blogjet/blogjet/internal/auth"
	"github.com/blogjet/blogjet/internal/entities"
	"github.com/blogjet/blogjet/internal/guard"
	"github.com/blogjet/blogjet/internal/likes"
	"github.com/blogjet/blogjet/internal/service"
	"github.com/blogjet/blogjet/internal/storage"
)

var log = logrus.WithField("layer", "service").WithField("package", "impl")

// srv ...
type srv struct {
	s      storage.Storage
	tokens auth.Issuer
}

// New creates new instance of service.
func New(s storage.Storage, tokens auth.Issuer) service.Service {
	return srv{
		s:      s,
		tokens: tokens,
	}
}

func (s srv) Register(ctx context.Context, username, email, password string) (*service.Session, error) {
	username, email = strings.TrimSpace(username), normalizeEmail(email)
	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", service.ErrValidation)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &entities.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}

	if err := s.s.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.session(u)
}

func (s srv) Login(ctx context.Context, email, password string) (*service.Session, error) {
	u, err := s.s.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, service.ErrInvalidCredentials
		}

		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, service.ErrInvalidCredentials
	}

	return s.session(u)
}

func (s srv) session(u *entities.User) (*service.Session, error) {
	token, expiresAt, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &service.Session{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      u,
	}, nil
}

func (s srv) Me(ctx context.Context, requester string) (*entities.User, error) {
	u, err := s.s.GetUser(ctx, requester)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

func (s srv) ListPosts(ctx context.Context) ([]*entities.Post, error) {
	return s.listPosts(ctx, storage.ListPostsParams{})
}

func (s srv) ListPostsByAuthor(ctx context.Context, author string) ([]*entities.Post, error) {
	return s.listPosts(ctx, storage.ListPostsParams{Author: &author})
}

func (s srv) listPosts(ctx context.Context, p storage.ListPostsParams) ([]*entities.Post, error) {
	pp, err := s.s.ListPosts(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	for _, v := range pp {
		reconcile(v)
	}

	return pp, nil
}

func (s srv) GetPost(ctx context.Context, id string) (*entities.Post, error) {
	p, err := s.s.GetPost(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	reconcile(p)

	return p, nil
}

func (s srv) CreatePost(ctx context.Context, p *entities.Post) error {
	p.ID, p.Slug, p.IsDefault = "", "", false
	p.Likes, p.LikeCount = []string{}, 0

	if err := s.s.CreatePost(ctx, p); err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}

	return nil
}

func (s srv) UpdatePost(ctx context.Context, requester, id string, u service.PostUpdate) (*entities.Post, error) {
	p, err := s.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := guard.Authorize(p.Author, requester); err != nil {
		return nil, err
	}

	p.Title = firstNonEmpty(strings.TrimSpace(u.Title), p.Title)
	p.Content = firstNonEmpty(u.Content, p.Content)
	p.Excerpt = firstNonEmpty(u.Excerpt, p.Excerpt)
	p.Image = firstNonEmpty(u.Image, p.Image)
	p.Tag = firstNonEmpty(u.Tag, p.Tag)

	if err := s.s.UpdatePost(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	return p, nil
}

func (s srv) DeletePost(ctx context.Context, requester, id string) error {
	p, err := s.s.GetPost(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get post: %w", err)
	}

	if err := guard.Authorize(p.Author, requester); err != nil {
		return err
	}

	if err := s.s.DeletePost(ctx, id); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	return nil
}

// ToggleLike reads the post, flips the membership and writes the whole document back.
// Concurrent toggles on the same post are last-writer-wins.
func (s srv) ToggleLike(ctx context.Context, requester, id string) (*entities.Post, error) {
	p, err := s.s.GetPost(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	if d := likes.Drift(p); d != 0 {
		log.WithField("post", id).WithField("drift", d).Warn("like counter does not match like set")
	}

	liked := likes.Toggle(p, requester)

	if err := s.s.UpdatePost(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	log.WithField("post", id).WithField("liked", liked).WithField("count", p.LikeCount).Debug("like toggled")

	return p, nil
}

func (s srv) ListComments(ctx context.Context, postID string) ([]*entities.Comment, error) {
	cc, err := s.s.ListComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	return cc, nil
}

func (s srv) GetComment(ctx context.Context, id string) (*entities.Comment, error) {
	c, err := s.s.GetComment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}

	return c, nil
}

func (s srv) CreateComment(ctx context.Context, c *entities.Comment) error {
	if strings.TrimSpace(c.Content) == "" {
		return fmt.Errorf("%w: content is required", service.ErrValidation)
	}

	if err := s.s.CreateComment(ctx, c); err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}

	if u, err := s.s.GetUser(ctx, c.Author); err == nil {
		c.AuthorName = u.Username
	}

	return nil
}

func (s srv) UpdateComment(ctx context.Context, requester, id, content string) (*entities.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", service.ErrValidation)
	}

	c, err := s.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := guard.Authorize(c.Author, requester); err != nil {
		return nil, err
	}

	c.Content = content

	if err := s.s.UpdateComment(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}

	return c, nil
}

func (s srv) DeleteComment(ctx context.Context, requester, id string) error {
	c, err := s.GetComment(ctx, id)
	if err != nil {
		return err
	}

	if err := guard.Authorize(c.Author, requester); err != nil {
		return err
	}

	if err := s.s.DeleteComment(ctx, id); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	return nil
}

func (s srv) ListTasks(ctx context.Context) ([]*entities.Task, error) {
	tt, err := s.s.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tt, nil
}

func (s srv) GetTask(ctx context.Context, id string) (*entities.Task, error) {
	t, err := s.s.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return t, nil
}

func (s srv) CreateTask(ctx context.Context, t *entities.Task) error {
	if t.Status == "" {
		t.Status = entities.TaskTodo
	}

	if err := validateTask(t); err != nil {
		return err
	}

	if err := s.s.CreateTask(ctx, t); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

func (s srv) UpdateTask(ctx context.Context, id string, u service.TaskUpdate) (*entities.Task, error) {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.AssignedTo != nil {
		t.AssignedTo = *u.AssignedTo
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Deadline != nil {
		t.Deadline = u.Deadline
	}
	if u.Project != nil {
		t.Project = *u.Project
	}

	if err := validateTask(t); err != nil {
		return nil, err
	}

	if err := s.s.UpdateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return t, nil
}

func (s srv) DeleteTask(ctx context.Context, id string) error {
	if err := s.s.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return nil
}

// reconcile fixes like data on read so responses always satisfy the counter invariant.
func reconcile(p *entities.Post) {
	if d := likes.Drift(p); d != 0 {
		log.WithField("post", p.ID).WithField("drift", d).Debug("reconciling like counter")
	}

	likes.Normalize(p)
}

func validateTask(t *entities.Task) error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return fmt.Errorf("%w: title is required", service.ErrValidation)
	}

	if !t.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", service.ErrValidation, t.Status)
	}

	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func firstNonEmpty(v, fallback string) string {
	if v != "" {
		return v
	}

	return fallback
}
