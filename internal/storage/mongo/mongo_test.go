//+build integration

package mongo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/blogjet/blogjet/internal/entities"
	"github.com/blogjet/blogjet/internal/storage"
)

var (
	db  *mongo.Database
	ctx = context.Background()
	s   storage.Storage
)

func TestMain(m *testing.M) {
	shutdown := setup()

	var err error
	if s, err = New(ctx, db); err != nil {
		logrus.WithError(err).Fatal("failed to create storage")
	}

	code := m.Run()
	shutdown()
	os.Exit(code)
}

func setup() func() {
	req := testcontainers.ContainerRequest{
		Image:        "mongo:6",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections"),
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

	port, err := c.MappedPort(ctx, "27017")
	if err != nil {
		logrus.WithError(err).Fatal("failed to map port")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(fmt.Sprintf("mongodb://%s:%d", host, port.Int())))
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect")
	}

	db = client.Database("blogjet_test")

	return func() {
		_ = client.Disconnect(ctx)
		_ = c.Terminate(ctx)
	}
}

func cleanup(t *testing.T) {
	for _, v := range []string{usersCollection, postsCollection, commentsCollection, tasksCollection} {
		_, err := db.Collection(v).DeleteMany(ctx, bson.M{})
		require.NoError(t, err)
	}
}

func TestStore_Users(t *testing.T) {
	defer cleanup(t)

	u := entities.User{Username: "alice", Email: "alice@example.com", PasswordHash: "hash"}
	require.NoError(t, s.CreateUser(ctx, &u))
	require.True(t, primitive.IsValidObjectID(u.ID))

	err := s.CreateUser(ctx, &entities.User{Username: "other", Email: "ALICE@example.com"})
	assert.True(t, errors.Is(err, storage.ErrAlreadyExists))

	got, err := s.GetUserByEmail(ctx, "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.GetUser(ctx, "not-an-object-id")
	assert.Equal(t, storage.ErrNotFound, err)

	ensured, err := s.EnsureUser(ctx, &entities.User{Username: "alice", Email: "ignored@example.com"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, ensured.ID)

	_, err = s.EnsureUser(ctx, &entities.User{Username: "bob", Email: "alice@example.com"})
	assert.True(t, errors.Is(err, storage.ErrAlreadyExists))
}

func TestStore_Posts(t *testing.T) {
	defer cleanup(t)

	author := entities.User{Username: "alice", Email: "alice@example.com"}
	require.NoError(t, s.CreateUser(ctx, &author))

	now := time.Now().UTC().Truncate(time.Millisecond)
	older := entities.Post{Title: "older", Author: author.ID, CreatedAt: now.Add(-time.Hour)}
	newer := entities.Post{Title: "newer", Author: primitive.NewObjectID().Hex(), CreatedAt: now}
	require.NoError(t, s.CreatePost(ctx, &older))
	require.NoError(t, s.CreatePost(ctx, &newer))

	pp, err := s.ListPosts(ctx, storage.ListPostsParams{})
	require.NoError(t, err)
	require.Len(t, pp, 2)
	assert.Equal(t, "newer", pp[0].Title)
	assert.Equal(t, "alice", pp[1].AuthorName)
	assert.Equal(t, []string{}, pp[1].Likes)

	pp, err = s.ListPosts(ctx, storage.ListPostsParams{Author: &author.ID})
	require.NoError(t, err)
	require.Len(t, pp, 1)

	liker := primitive.NewObjectID().Hex()
	p, err := s.GetPost(ctx, older.ID)
	require.NoError(t, err)
	p.Likes = []string{liker}
	p.LikeCount = 1
	require.NoError(t, s.UpdatePost(ctx, p))

	p, err = s.GetPost(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{liker}, p.Likes)
	assert.Equal(t, 1, p.LikeCount)

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

func TestStore_GetPost_MalformedLikes(t *testing.T) {
	defer cleanup(t)

	liker := primitive.NewObjectID()
	tt := []struct {
		name      string
		likes     interface{}
		likeCount interface{}
		wantLikes []string
		wantCount int
	}{
		{name: "string likes", likes: "oops", likeCount: int32(3), wantLikes: []string{}, wantCount: 3},
		{name: "string count", likes: bson.A{liker}, likeCount: "7", wantLikes: []string{liker.Hex()}, wantCount: 0},
		{name: "negative count", likes: bson.A{}, likeCount: int64(-2), wantLikes: []string{}, wantCount: 0},
		{name: "fractional count", likes: bson.A{}, likeCount: 1.5, wantLikes: []string{}, wantCount: 0},
		{name: "double count", likes: bson.A{}, likeCount: 2.0, wantLikes: []string{}, wantCount: 2},
		{name: "mixed entries", likes: bson.A{liker, 42, liker.Hex(), nil}, likeCount: int32(2), wantLikes: []string{liker.Hex(), liker.Hex()}, wantCount: 2},
		{name: "missing fields", wantLikes: []string{}, wantCount: 0},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			id := primitive.NewObjectID()
			doc := bson.M{"_id": id, "title": tc.name, "createdAt": time.Now()}
			if tc.likes != nil {
				doc["likes"] = tc.likes
			}
			if tc.likeCount != nil {
				doc["likeCount"] = tc.likeCount
			}

			_, err := db.Collection(postsCollection).InsertOne(ctx, doc)
			require.NoError(t, err)

			p, err := s.GetPost(ctx, id.Hex())
			require.NoError(t, err)
			assert.Equal(t, tc.wantLikes, p.Likes)
			assert.Equal(t, tc.wantCount, p.LikeCount)
		})
	}
}

func TestStore_UpsertPostBySlug(t *testing.T) {
	defer cleanup(t)

	first := entities.Post{Slug: "welcome", Title: "first"}
	require.NoError(t, s.UpsertPostBySlug(ctx, &first))
	require.NotEmpty(t, first.ID)

	second := entities.Post{Slug: "welcome", Title: "second"}
	require.NoError(t, s.UpsertPostBySlug(ctx, &second))
	assert.Empty(t, second.ID)

	require.NoError(t, s.CreatePost(ctx, &entities.Post{Title: "a"}))
	require.NoError(t, s.CreatePost(ctx, &entities.Post{Title: "b"}))

	pp, err := s.ListPosts(ctx, storage.ListPostsParams{})
	require.NoError(t, err)
	require.Len(t, pp, 3)

	err = s.CreatePost(ctx, &entities.Post{Slug: "welcome"})
	assert.True(t, errors.Is(err, storage.ErrAlreadyExists))
}

func TestStore_Comments(t *testing.T) {
	defer cleanup(t)

	assert.Equal(t, storage.ErrNotFound, s.CreateComment(ctx, &entities.Comment{Post: primitive.NewObjectID().Hex()}))
	assert.Equal(t, storage.ErrNotFound, s.CreateComment(ctx, &entities.Comment{Post: "bad"}))

	p := entities.Post{Title: "post"}
	require.NoError(t, s.CreatePost(ctx, &p))

	now := time.Now().UTC()
	first := entities.Comment{Post: p.ID, Content: "first", CreatedAt: now.Add(-time.Minute)}
	second := entities.Comment{Post: p.ID, Content: "second", CreatedAt: now}
	require.NoError(t, s.CreateComment(ctx, &first))
	require.NoError(t, s.CreateComment(ctx, &second))

	cc, err := s.ListComments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, cc, 2)
	assert.Equal(t, "second", cc[0].Content)

	first.Content = "edited"
	require.NoError(t, s.UpdateComment(ctx, &first))
	c, err := s.GetComment(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", c.Content)

	require.NoError(t, s.DeleteComment(ctx, first.ID))
	assert.Equal(t, storage.ErrNotFound, s.DeleteComment(ctx, first.ID))
}

func TestStore_Tasks(t *testing.T) {
	defer cleanup(t)

	task := entities.Task{Title: "write", Status: entities.TaskTodo}
	require.NoError(t, s.CreateTask(ctx, &task))

	task.Status = entities.TaskDone
	require.NoError(t, s.UpdateTask(ctx, &task))

	tt, err := s.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tt, 1)
	assert.Equal(t, entities.TaskDone, tt[0].Status)

	require.NoError(t, s.DeleteTask(ctx, task.ID))
	_, err = s.GetTask(ctx, task.ID)
	assert.Equal(t, storage.ErrNotFound, err)
	assert.Equal(t, storage.ErrNotFound, s.UpdateTask(ctx, &task))
}
