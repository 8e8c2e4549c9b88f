package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogjet/blogjet/internal/auth"
	"github.com/blogjet/blogjet/internal/service/impl"
	"github.com/blogjet/blogjet/internal/storage/memory"
)

type client struct {
	t      *testing.T
	router http.Handler
}

func (c client) do(method, url, token, body string, out interface{}) int {
	r := httptest.NewRequest(method, url, strings.NewReader(body))
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()

	c.router.ServeHTTP(w, r)

	if out != nil {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}

	return w.Code
}

func (c client) register(name string) AuthResponse {
	var resp AuthResponse
	code := c.do(http.MethodPost, "/api/auth/register", "",
		fmt.Sprintf(`{"username":%q,"email":"%s@example.com","password":"password"}`, name, name), &resp)
	require.Equal(c.t, http.StatusCreated, code)

	return resp
}

func newTestRouter(t *testing.T) client {
	tokens := auth.NewTokens("secret", time.Hour)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		SetupRouter(impl.New(memory.New(), tokens), tokens, r, Options{
			Timeout:        time.Second,
			MaxBodySize:    1 << 20,
			AllowedOrigins: []string{"*"},
		})
	})

	return client{t: t, router: router}
}

func TestRouter_OwnershipFlow(t *testing.T) {
	c := newTestRouter(t)

	a, b := c.register("alice"), c.register("bob")

	var post Post
	code := c.do(http.MethodPost, "/api/posts", a.Token,
		`{"title":"hello","content":"content","excerpt":"excerpt","image":"image.png","tag":"news"}`, &post)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, a.User.ID, post.Author.ID)

	var forbidden ForbiddenError
	code = c.do(http.MethodPut, "/api/posts/"+post.ID, b.Token, `{"title":"hijacked"}`, &forbidden)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, a.User.ID, forbidden.Author)
	assert.Equal(t, b.User.ID, forbidden.User)

	code = c.do(http.MethodDelete, "/api/posts/"+post.ID, b.Token, "", nil)
	assert.Equal(t, http.StatusForbidden, code)

	var msg Message
	code = c.do(http.MethodDelete, "/api/posts/"+post.ID, a.Token, "", &msg)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Post deleted successfully", msg.Message)

	code = c.do(http.MethodGet, "/api/posts/"+post.ID, "", "", &msg)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Post not found", msg.Message)
}

func TestRouter_Auth(t *testing.T) {
	c := newTestRouter(t)

	var msg Message
	code := c.do(http.MethodPost, "/api/posts", "", `{}`, &msg)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "No token provided", msg.Message)

	code = c.do(http.MethodPost, "/api/posts", "garbage", `{}`, &msg)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid token", msg.Message)

	expired := auth.NewTokens("secret", -time.Minute)
	token, _, err := expired.Issue("507f1f77bcf86cd799439011")
	require.NoError(t, err)

	code = c.do(http.MethodGet, "/api/tasks", token, "", &msg)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Token expired", msg.Message)

	a := c.register("alice")

	var login AuthResponse
	code = c.do(http.MethodPost, "/api/auth/login", "", `{"email":"ALICE@example.com","password":"password"}`, &login)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, a.User.ID, login.User.ID)

	var me User
	code = c.do(http.MethodGet, "/api/auth/me", login.Token, "", &me)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice", me.Username)
}

func TestRouter_LikesAndComments(t *testing.T) {
	c := newTestRouter(t)

	a, b := c.register("alice"), c.register("bob")

	var post Post
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/posts", a.Token,
		`{"title":"hello","content":"content","excerpt":"excerpt","image":"image.png","tag":"news"}`, &post))

	var liked Post
	require.Equal(t, http.StatusOK, c.do(http.MethodPut, "/api/posts/"+post.ID+"/like", b.Token, "", &liked))
	assert.Equal(t, []string{b.User.ID}, liked.Likes)
	assert.Equal(t, 1, liked.LikeCount)
	assert.Equal(t, "alice", liked.Author.Username)

	var unliked Post
	require.Equal(t, http.StatusOK, c.do(http.MethodPut, "/api/posts/"+post.ID+"/like", b.Token, "", &unliked))
	assert.Equal(t, []string{}, unliked.Likes)
	assert.Equal(t, 0, unliked.LikeCount)

	var comment Comment
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/api/comments", b.Token,
		fmt.Sprintf(`{"postId":%q,"content":"nice"}`, post.ID), &comment))
	assert.Equal(t, "bob", comment.Author.Username)

	var comments []Comment
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/comments/post/"+post.ID, "", "", &comments))
	require.Len(t, comments, 1)

	assert.Equal(t, http.StatusForbidden, c.do(http.MethodDelete, "/api/comments/"+comment.ID, a.Token, "", nil))
	assert.Equal(t, http.StatusOK, c.do(http.MethodDelete, "/api/comments/"+comment.ID, b.Token, "", nil))
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/api/comments/"+comment.ID, "", "", nil))

	var mine []Post
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/posts/mine", a.Token, "", &mine))
	assert.Len(t, mine, 1)
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/posts/mine", b.Token, "", &mine))
	assert.Len(t, mine, 0)
}
