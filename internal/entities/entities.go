// Package entities contains main entities of service.
package entities

import (
	"time"
)

// User ...
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Post ...
type Post struct {
	ID         string
	Slug       string
	Title      string
	Content    string
	Excerpt    string
	Image      string
	Tag        string
	Author     string
	AuthorName string
	// Likes holds canonical identities of users who liked the post.
	Likes     []string
	LikeCount int
	IsDefault bool
	CreatedAt time.Time
}

// Comment ...
type Comment struct {
	ID         string
	Post       string
	Author     string
	AuthorName string
	Content    string
	CreatedAt  time.Time
}

// TaskStatus ...
type TaskStatus string

const (
	// TaskTodo ...
	TaskTodo TaskStatus = "todo"
	// TaskInProgress ...
	TaskInProgress TaskStatus = "in progress"
	// TaskDone ...
	TaskDone TaskStatus = "done"
)

// Valid reports whether s is one of known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskDone:
		return true
	default:
		return false
	}
}

// Task ...
type Task struct {
	ID          string
	Title       string
	Description string
	AssignedTo  string
	Status      TaskStatus
	Deadline    *time.Time
	Project     string
	CreatedAt   time.Time
}
