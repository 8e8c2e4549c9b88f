// Package server Blogjet
//
// The Blogjet is a blogging backend: users, posts, comments, likes and tasks.
//
//     Schemes: https
//     BasePath: /api
//     Version: 1.0.0
//
//     Produces:
//     - application/json
//     Consumes:
//     - application/json
//
// swagger:meta
package server

import (
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/blogjet/blogjet/internal/auth"
	mm "github.com/blogjet/blogjet/internal/middleware"
	"github.com/blogjet/blogjet/internal/service"
)

//go:generate swagger generate spec -t swagger -m -c . -o ../../static/swagger.json

var log = logrus.WithField("layer", "api").WithField("package", "server")

// Options configures router middlewares.
type Options struct {
	Timeout        time.Duration
	MaxBodySize    int64
	AllowedOrigins []string
}

type server struct {
	s        service.Service
	validate *validator.Validate
}

// SetupRouter setups handlers to chi router.
func SetupRouter(s service.Service, v auth.Verifier, r chi.Router, opts Options) {
	r.Use(
		middleware.RequestID,
		mm.Logger,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		middleware.Timeout(opts.Timeout),
		mm.BodyLimiter(opts.MaxBodySize),
	)

	srv := server{
		s:        s,
		validate: newValidator(),
	}

	authenticated := mm.Authenticated(v)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", srv.register)
		r.Post("/login", srv.login)
		r.With(authenticated).Get("/me", srv.me)
	})

	r.Route("/posts", func(r chi.Router) {
		r.Get("/", srv.listPosts)
		r.With(authenticated).Get("/mine", srv.listMyPosts)
		r.Get("/{id}", srv.getPost)
		r.With(authenticated).Post("/", srv.createPost)
		r.With(authenticated).Put("/{id}", srv.updatePost)
		r.With(authenticated).Delete("/{id}", srv.deletePost)
		r.With(authenticated).Put("/{id}/like", srv.toggleLike)
	})

	r.Route("/comments", func(r chi.Router) {
		r.Get("/post/{postId}", srv.listComments)
		r.Get("/{id}", srv.getComment)
		r.With(authenticated).Post("/", srv.createComment)
		r.With(authenticated).Put("/{id}", srv.updateComment)
		r.With(authenticated).Delete("/{id}", srv.deleteComment)
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Use(authenticated)

		r.Get("/", srv.listTasks)
		r.Get("/{id}", srv.getTask)
		r.Post("/", srv.createTask)
		r.Put("/{id}", srv.updateTask)
		r.Delete("/{id}", srv.deleteTask)
	})
}

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})

	return v
}
