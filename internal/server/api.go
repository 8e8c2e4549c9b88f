package server

import (
	"time"

	"github.com/blogjet/blogjet/internal/entities"
)

// Error ...
// swagger:model
type Error struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// ForbiddenError is returned when requester does not own the resource.
// swagger:model
type ForbiddenError struct {
	Message string `json:"message"`
	Author  string `json:"author"`
	User    string `json:"user"`
}

// Message ...
// swagger:model
type Message struct {
	Message string `json:"message"`
}

// RegisterRequest ...
// swagger:model
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest ...
// swagger:model
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse ...
// swagger:model
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// User ...
// swagger:model
type User struct {
	ID        string    `json:"_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Author is a populated reference to a user.
type Author struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

// CreatePostRequest ...
// swagger:model
type CreatePostRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required"`
	Excerpt string `json:"excerpt" validate:"required,max=500"`
	Image   string `json:"image" validate:"required"`
	Tag     string `json:"tag" validate:"required,max=50"`
}

// UpdatePostRequest ...
// Empty fields keep stored values.
// swagger:model
type UpdatePostRequest struct {
	Title   string `json:"title" validate:"max=200"`
	Content string `json:"content"`
	Excerpt string `json:"excerpt" validate:"max=500"`
	Image   string `json:"image"`
	Tag     string `json:"tag" validate:"max=50"`
}

// Post ...
// swagger:model
type Post struct {
	ID        string    `json:"_id"`
	Slug      string    `json:"slug,omitempty"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Excerpt   string    `json:"excerpt"`
	Image     string    `json:"image"`
	Tag       string    `json:"tag"`
	Author    Author    `json:"author"`
	Likes     []string  `json:"likes"`
	LikeCount int       `json:"likeCount"`
	IsDefault bool      `json:"isDefault"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateCommentRequest ...
// swagger:model
type CreateCommentRequest struct {
	PostID  string `json:"postId" validate:"required"`
	Content string `json:"content" validate:"required,max=2000"`
}

// UpdateCommentRequest ...
// swagger:model
type UpdateCommentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// Comment ...
// swagger:model
type Comment struct {
	ID        string    `json:"_id"`
	Post      string    `json:"post"`
	Author    Author    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateTaskRequest ...
// swagger:model
type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description"`
	AssignedTo  string     `json:"assignedTo"`
	Status      string     `json:"status"`
	Deadline    *time.Time `json:"deadline"`
	Project     string     `json:"project"`
}

// UpdateTaskRequest ...
// Omitted fields keep stored values.
// swagger:model
type UpdateTaskRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description"`
	AssignedTo  *string    `json:"assignedTo"`
	Status      *string    `json:"status"`
	Deadline    *time.Time `json:"deadline"`
	Project     *string    `json:"project"`
}

// Task ...
// swagger:model
type Task struct {
	ID          string     `json:"_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	AssignedTo  string     `json:"assignedTo,omitempty"`
	Status      string     `json:"status"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Project     string     `json:"project,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func toAPIUser(u *entities.User) User {
	return User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

func toAPIPost(p *entities.Post) Post {
	likes := p.Likes
	if likes == nil {
		likes = []string{}
	}

	return Post{
		ID:        p.ID,
		Slug:      p.Slug,
		Title:     p.Title,
		Content:   p.Content,
		Excerpt:   p.Excerpt,
		Image:     p.Image,
		Tag:       p.Tag,
		Author:    Author{ID: p.Author, Username: p.AuthorName},
		Likes:     likes,
		LikeCount: p.LikeCount,
		IsDefault: p.IsDefault,
		CreatedAt: p.CreatedAt,
	}
}

func toAPIPosts(pp []*entities.Post) []Post {
	out := make([]Post, len(pp))
	for i, v := range pp {
		out[i] = toAPIPost(v)
	}

	return out
}

func toAPIComment(c *entities.Comment) Comment {
	return Comment{
		ID:        c.ID,
		Post:      c.Post,
		Author:    Author{ID: c.Author, Username: c.AuthorName},
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
}

func toAPIComments(cc []*entities.Comment) []Comment {
	out := make([]Comment, len(cc))
	for i, v := range cc {
		out[i] = toAPIComment(v)
	}

	return out
}

func toAPITask(t *entities.Task) Task {
	return Task{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		AssignedTo:  t.AssignedTo,
		Status:      string(t.Status),
		Deadline:    t.Deadline,
		Project:     t.Project,
		CreatedAt:   t.CreatedAt,
	}
}

func toAPITasks(tt []*entities.Task) []Task {
	out := make([]Task, len(tt))
	for i, v := range tt {
		out[i] = toAPITask(v)
	}

	return out
}
