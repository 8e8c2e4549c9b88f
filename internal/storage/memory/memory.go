// Package memory is in-memory implementation of storage interface.
// State is lost when the process restarts; it is meant for development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/blogjet/blogjet/internal/entities"
	"github.com/blogjet/blogjet/internal/storage"
)

type memory struct {
	mu sync.RWMutex

	users    map[string]*entities.User
	posts    map[string]*entities.Post
	comments map[string]*entities.Comment
	tasks    map[string]*entities.Task

	// order keeps insertion order to break created_at ties.
	order map[string]uint64
	seq   uint64
}

// New creates new instance of in-memory storage.
func New() storage.Storage {
	return &memory{
		users:    make(map[string]*entities.User),
		posts:    make(map[string]*entities.Post),
		comments: make(map[string]*entities.Comment),
		tasks:    make(map[string]*entities.Task),
		order:    make(map[string]uint64),
	}
}

func (m *memory) Ping(_ context.Context) error {
	return nil
}

func (m *memory) nextID() string {
	m.seq++
	id := primitive.NewObjectID().Hex()
	m.order[id] = m.seq

	return id
}

func (m *memory) CreateUser(_ context.Context, u *entities.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.createUser(u)
}

func (m *memory) createUser(u *entities.User) error {
	for _, v := range m.users {
		if strings.EqualFold(v.Email, u.Email) || v.Username == u.Username {
			return storage.ErrAlreadyExists
		}
	}

	u.ID = m.nextID()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	c := *u
	m.users[u.ID] = &c

	return nil
}

func (m *memory) EnsureUser(_ context.Context, u *entities.User) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.users {
		if v.Username == u.Username {
			c := *v
			return &c, nil
		}
	}

	if err := m.createUser(u); err != nil {
		return nil, err
	}

	c := *u

	return &c, nil
}

func (m *memory) GetUser(_ context.Context, id string) (*entities.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	c := *u

	return &c, nil
}

func (m *memory) GetUserByEmail(_ context.Context, email string) (*entities.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, v := range m.users {
		if strings.EqualFold(v.Email, email) {
			c := *v
			return &c, nil
		}
	}

	return nil, storage.ErrNotFound
}

func (m *memory) ListPosts(_ context.Context, p storage.ListPostsParams) ([]*entities.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*entities.Post, 0, len(m.posts))
	for _, v := range m.posts {
		if p.Author != nil && v.Author != *p.Author {
			continue
		}
		out = append(out, m.populatePost(v))
	}

	sort.Slice(out, func(i, j int) bool {
		return m.newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})

	return out, nil
}

func (m *memory) GetPost(_ context.Context, id string) (*entities.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.posts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return m.populatePost(p), nil
}

func (m *memory) CreatePost(_ context.Context, p *entities.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.createPost(p)
}

func (m *memory) createPost(p *entities.Post) error {
	if p.Slug != "" {
		for _, v := range m.posts {
			if v.Slug == p.Slug {
				return storage.ErrAlreadyExists
			}
		}
	}

	p.ID = m.nextID()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	m.posts[p.ID] = copyPost(p)

	return nil
}

func (m *memory) UpsertPostBySlug(_ context.Context, p *entities.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.posts {
		if p.Slug != "" && v.Slug == p.Slug {
			return nil
		}
	}

	return m.createPost(p)
}

func (m *memory) UpdatePost(_ context.Context, p *entities.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[p.ID]; !ok {
		return storage.ErrNotFound
	}

	m.posts[p.ID] = copyPost(p)

	return nil
}

func (m *memory) DeletePost(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[id]; !ok {
		return storage.ErrNotFound
	}

	delete(m.posts, id)
	delete(m.order, id)
	for k, v := range m.comments {
		if v.Post == id {
			delete(m.comments, k)
			delete(m.order, k)
		}
	}

	return nil
}

func (m *memory) DeleteAllPosts(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := int64(len(m.posts))
	for k := range m.posts {
		delete(m.order, k)
	}
	for k := range m.comments {
		delete(m.order, k)
	}
	m.posts = make(map[string]*entities.Post)
	m.comments = make(map[string]*entities.Comment)

	return n, nil
}

func (m *memory) ListComments(_ context.Context, postID string) ([]*entities.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*entities.Comment, 0)
	for _, v := range m.comments {
		if v.Post == postID {
			out = append(out, m.populateComment(v))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return m.newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})

	return out, nil
}

func (m *memory) GetComment(_ context.Context, id string) (*entities.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.comments[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return m.populateComment(c), nil
}

func (m *memory) CreateComment(_ context.Context, c *entities.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[c.Post]; !ok {
		return storage.ErrNotFound
	}

	c.ID = m.nextID()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	v := *c
	m.comments[c.ID] = &v

	return nil
}

func (m *memory) UpdateComment(_ context.Context, c *entities.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.comments[c.ID]; !ok {
		return storage.ErrNotFound
	}

	v := *c
	m.comments[c.ID] = &v

	return nil
}

func (m *memory) DeleteComment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.comments[id]; !ok {
		return storage.ErrNotFound
	}

	delete(m.comments, id)
	delete(m.order, id)

	return nil
}

func (m *memory) ListTasks(_ context.Context) ([]*entities.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*entities.Task, 0, len(m.tasks))
	for _, v := range m.tasks {
		out = append(out, copyTask(v))
	}

	sort.Slice(out, func(i, j int) bool {
		return m.newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})

	return out, nil
}

func (m *memory) GetTask(_ context.Context, id string) (*entities.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return copyTask(t), nil
}

func (m *memory) CreateTask(_ context.Context, t *entities.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t.ID = m.nextID()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	m.tasks[t.ID] = copyTask(t)

	return nil
}

func (m *memory) UpdateTask(_ context.Context, t *entities.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[t.ID]; !ok {
		return storage.ErrNotFound
	}

	m.tasks[t.ID] = copyTask(t)

	return nil
}

func (m *memory) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; !ok {
		return storage.ErrNotFound
	}

	delete(m.tasks, id)
	delete(m.order, id)

	return nil
}

// newer orders by created_at descending, then by insertion order descending.
func (m *memory) newer(a, b time.Time, aID, bID string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}

	return m.order[aID] > m.order[bID]
}

func (m *memory) populatePost(p *entities.Post) *entities.Post {
	out := copyPost(p)
	if u, ok := m.users[p.Author]; ok {
		out.AuthorName = u.Username
	}

	return out
}

func (m *memory) populateComment(c *entities.Comment) *entities.Comment {
	out := *c
	if u, ok := m.users[c.Author]; ok {
		out.AuthorName = u.Username
	}

	return &out
}

func copyPost(p *entities.Post) *entities.Post {
	out := *p
	if p.Likes != nil {
		out.Likes = append(make([]string, 0, len(p.Likes)), p.Likes...)
	}

	return &out
}

func copyTask(t *entities.Task) *entities.Task {
	out := *t
	if t.Deadline != nil {
		d := *t.Deadline
		out.Deadline = &d
	}

	return &out
}
