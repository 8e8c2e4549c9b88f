//+build integration

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	m "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/blogjet/blogjet/internal/entities"
	"github.com/blogjet/blogjet/internal/storage"
)

var (
	db  *sql.DB
	ctx = context.Background()
	s   storage.Storage
)

func TestMain(m *testing.M) {
	shutdown := setup()

	s = New(db)

	code := m.Run()
	shutdown()
	os.Exit(code)
}

func setup() func() {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:15",
		Env:          map[string]string{"POSTGRES_PASSWORD": "root"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		logrus.WithError(err).Fatal("failed to start container")
	}

	host, err := c.Host(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("failed to get host")
	}

	port, err := c.MappedPort(ctx, "5432")
	if err != nil {
		logrus.WithError(err).Fatal("failed to map port")
	}

	dsn := fmt.Sprintf("host=%s port=%d user=postgres password=root sslmode=disable", host, port.Int())

	db, err = sql.Open("postgres", dsn)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open connection")
	}

	if err := db.Ping(); err != nil {
		logrus.WithError(err).Fatal("failed to ping postgres")
	}

	shutdownFn := func() {
		if c != nil {
			_ = c.Terminate(ctx)
		}
	}

	migrate("postgres", "root", host, "postgres", port.Int())

	return shutdownFn
}

func migrate(username, password, hostname, dbname string, port int) {
	_, currFile, _, ok := runtime.Caller(0)
	if !ok {
		logrus.Fatal("failed to get current file location")
	}

	migrations := filepath.Join(currFile, "../../../../scripts/migrations/postgres/")

	migrator, err := m.New(
		fmt.Sprintf("file://%s", migrations),
		fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			username, password, hostname, port, dbname),
	)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create migrator")
	}
	defer migrator.Close()

	if err := migrator.Up(); err != nil {
		logrus.WithError(err).Fatal("failed to migrate")
	}
}

func cleanup(t *testing.T) {
	_, err := db.ExecContext(ctx, `DELETE FROM comment`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `DELETE FROM post`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `DELETE FROM task`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `DELETE FROM "user"`)
	require.NoError(t, err)
}

func createUser(t *testing.T, name string) *entities.User {
	u := entities.User{Username: name, Email: name + "@example.com", PasswordHash: "hash"}
	require.NoError(t, s.CreateUser(ctx, &u))

	return &u
}

func TestPg_Ping(t *testing.T) {
	require.NoError(t, s.Ping(ctx))
}

func TestPg_Users(t *testing.T) {
	defer cleanup(t)

	u := createUser(t, "alice")
	require.NotEmpty(t, u.ID)

	err := s.CreateUser(ctx, &entities.User{Username: "alice", Email: "other@example.com"})
	require.True(t, errors.Is(err, storage.ErrAlreadyExists))

	got, err := s.GetUserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = s.GetUser(ctx, "missing")
	assert.Equal(t, storage.ErrNotFound, err)

	ensured, err := s.EnsureUser(ctx, &entities.User{Username: "alice", Email: "ignored@example.com"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, ensured.ID)
	assert.Equal(t, "alice@example.com", ensured.Email)
}

func TestPg_Posts(t *testing.T) {
	defer cleanup(t)

	author := createUser(t, "alice")

	now := time.Now().UTC().Truncate(time.Millisecond)
	older := entities.Post{Title: "older", Content: "c", Author: author.ID, CreatedAt: now.Add(-time.Hour)}
	newer := entities.Post{Title: "newer", Content: "c", Author: "someone", CreatedAt: now}
	require.NoError(t, s.CreatePost(ctx, &older))
	require.NoError(t, s.CreatePost(ctx, &newer))

	pp, err := s.ListPosts(ctx, storage.ListPostsParams{})
	require.NoError(t, err)
	require.Len(t, pp, 2)
	assert.Equal(t, "newer", pp[0].Title)
	assert.Equal(t, "alice", pp[1].AuthorName)
	assert.Empty(t, pp[0].AuthorName)
	assert.Equal(t, []string{}, pp[1].Likes)

	pp, err = s.ListPosts(ctx, storage.ListPostsParams{Author: &author.ID})
	require.NoError(t, err)
	require.Len(t, pp, 1)

	p, err := s.GetPost(ctx, older.ID)
	require.NoError(t, err)
	p.Likes = []string{"x", "y"}
	p.LikeCount = 2
	p.Title = "changed"
	require.NoError(t, s.UpdatePost(ctx, p))

	p, err = s.GetPost(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "changed", p.Title)
	assert.Equal(t, []string{"x", "y"}, p.Likes)
	assert.Equal(t, 2, p.LikeCount)

	assert.Equal(t, storage.ErrNotFound, s.UpdatePost(ctx, &entities.Post{ID: "missing"}))

	c := entities.Comment{Post: older.ID, Author: author.ID, Content: "hi"}
	require.NoError(t, s.CreateComment(ctx, &c))

	require.NoError(t, s.DeletePost(ctx, older.ID))
	assert.Equal(t, storage.ErrNotFound, s.DeletePost(ctx, older.ID))
	_, err = s.GetComment(ctx, c.ID)
	assert.Equal(t, storage.ErrNotFound, err)

	n, err := s.DeleteAllPosts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestPg_UpsertPostBySlug(t *testing.T) {
	defer cleanup(t)

	require.NoError(t, s.UpsertPostBySlug(ctx, &entities.Post{Slug: "welcome", Title: "first", IsDefault: true}))
	require.NoError(t, s.UpsertPostBySlug(ctx, &entities.Post{Slug: "welcome", Title: "second"}))

	pp, err := s.ListPosts(ctx, storage.ListPostsParams{})
	require.NoError(t, err)
	require.Len(t, pp, 1)
	assert.Equal(t, "first", pp[0].Title)
	assert.True(t, pp[0].IsDefault)

	err = s.CreatePost(ctx, &entities.Post{Slug: "welcome"})
	assert.True(t, errors.Is(err, storage.ErrAlreadyExists))

	// posts without slug never collide
	require.NoError(t, s.CreatePost(ctx, &entities.Post{Title: "a"}))
	require.NoError(t, s.CreatePost(ctx, &entities.Post{Title: "b"}))
}

func TestPg_Comments(t *testing.T) {
	defer cleanup(t)

	assert.Equal(t, storage.ErrNotFound, s.CreateComment(ctx, &entities.Comment{Post: "missing", Content: "x"}))

	author := createUser(t, "bob")
	p := entities.Post{Title: "post", Author: author.ID}
	require.NoError(t, s.CreatePost(ctx, &p))

	now := time.Now().UTC()
	first := entities.Comment{Post: p.ID, Author: author.ID, Content: "first", CreatedAt: now.Add(-time.Minute)}
	second := entities.Comment{Post: p.ID, Author: author.ID, Content: "second", CreatedAt: now}
	require.NoError(t, s.CreateComment(ctx, &first))
	require.NoError(t, s.CreateComment(ctx, &second))

	cc, err := s.ListComments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, cc, 2)
	assert.Equal(t, "second", cc[0].Content)
	assert.Equal(t, "bob", cc[0].AuthorName)

	first.Content = "edited"
	require.NoError(t, s.UpdateComment(ctx, &first))
	c, err := s.GetComment(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", c.Content)

	require.NoError(t, s.DeleteComment(ctx, first.ID))
	assert.Equal(t, storage.ErrNotFound, s.DeleteComment(ctx, first.ID))
}

func TestPg_Tasks(t *testing.T) {
	defer cleanup(t)

	deadline := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)
	task := entities.Task{Title: "write", Status: entities.TaskTodo, Deadline: &deadline, Project: "blog"}
	require.NoError(t, s.CreateTask(ctx, &task))

	tt, err := s.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tt, 1)
	assert.Equal(t, "blog", tt[0].Project)
	require.NotNil(t, tt[0].Deadline)
	assert.True(t, deadline.Equal(*tt[0].Deadline))

	task.Status = entities.TaskInProgress
	task.Deadline = nil
	require.NoError(t, s.UpdateTask(ctx, &task))

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.TaskInProgress, got.Status)
	assert.Nil(t, got.Deadline)

	require.NoError(t, s.DeleteTask(ctx, task.ID))
	_, err = s.GetTask(ctx, task.ID)
	assert.Equal(t, storage.ErrNotFound, err)
	assert.Equal(t, storage.ErrNotFound, s.DeleteTask(ctx, task.ID))
}
