package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"

	"github.com/blogjet/blogjet/internal/entities"
	"github.com/blogjet/blogjet/internal/guard"
	mm "github.com/blogjet/blogjet/internal/middleware"
	"github.com/blogjet/blogjet/internal/service"
	"github.com/blogjet/blogjet/internal/storage"
)

func (s server) register(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /auth/register Auth Register
	//
	// Creates a user and returns a token.
	//
	// ---
	// parameters:
	// - name: request
	//   in: body
	//   required: true
	//   schema:
	//     "$ref": "#/definitions/RegisterRequest"
	// responses:
	//   '201':
	//     schema:
	//       "$ref": "#/definitions/AuthResponse"
	//   '400':
	//     description: bad request or user already exists
	//     schema:
	//       "$ref": "#/definitions/Error"

	var req RegisterRequest
	if err := s.decode(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	session, err := s.s.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			writeError(w, http.StatusBadRequest, "User already exists")
			return
		}
		writeServiceError(r.Context(), w, err, "Error registering user", "")
		return
	}

	writeOK(w, http.StatusCreated, toAuthResponse(session))
}

func (s server) login(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /auth/login Auth Login
	//
	// Exchanges email and password for a token.
	//
	// ---
	// parameters:
	// - name: request
	//   in: body
	//   required: true
	//   schema:
	//     "$ref": "#/definitions/LoginRequest"
	// responses:
	//   '200':
	//     schema:
	//       "$ref": "#/definitions/AuthResponse"
	//   '400':
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '401':
	//     schema:
	//       "$ref": "#/definitions/Error"

	var req LoginRequest
	if err := s.decode(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	session, err := s.s.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		writeServiceError(r.Context(), w, err, "Error logging in", "")
		return
	}

	writeOK(w, http.StatusOK, toAuthResponse(session))
}

func (s server) me(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /auth/me Auth Me
	//
	// Returns the authenticated user.
	//
	// ---
	// security:
	// - bearer: []
	// responses:
	//   '200':
	//     schema:
	//       "$ref": "#/definitions/User"
	//   '401':
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '404':
	//     schema:
	//       "$ref": "#/definitions/Error"

	u, err := s.s.Me(r.Context(), requester(r))
	if err != nil {
		writeServiceError(r.Context(), w, err, "Error fetching user", "User not found")
		return
	}

	writeOK(w, http.StatusOK, toAPIUser(u))
}

func (s server) listPosts(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /posts Posts ListPosts
	//
	// Returns all posts, newest first.
	//
	// ---
	// responses:
	//   '200':
	//     schema:
	//       type: array
	//       items:
	//         "$ref": "#/definitions/Post"
	//   '500':
	//     schema:
	//       "$ref": "#/definitions/Error"

	pp, err := s.s.ListPosts(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err, "Error fetching posts", "")
		return
	}

	writeOK(w, http.StatusOK, toAPIPosts(pp))
}

func (s server) listMyPosts(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /posts/mine Posts ListMyPosts
	//
	// Returns posts of the authenticated user, newest first.
	//
	// ---
	// security:
	// - bearer: []
	// responses:
	//   '200':
	//     schema:
	//       type: array
	//       items:
	//         "$ref": "#/definitions/Post"
	//   '401':
	//     schema:
	//       "$ref": "#/definitions/Error"

	pp, err := s.s.ListPostsByAuthor(r.Context(), requester(r))
	if err != nil {
		writeServiceError(r.Context(), w, err, "Error fetching user posts", "")
		return
	}

	writeOK(w, http.StatusOK, toAPIPosts(pp))
}

func (s server) getPost(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /posts/{id} Posts GetPost
	//
	// Returns post by id.
	//
	// ---
	// parameters:
	// - name: id
	//   in: path
	//   required: true
	//   type: string
	// responses:
	//   '200':
	//     schema:
	//       "$ref": "#/definitions/Post"
	//   '404':
	//     schema:
	//       "$ref": "#/definitions/Error"

	p, err := s.s.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(r.Context(), w, err, "Error fetching post", "Post not found")
		return
	}

	writeOK(w, http.StatusOK, toAPIPost(p))
}

func (s server) createPost(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /posts Posts CreatePost
	//
	// Creates post owned by the authenticated user.
	//
	// ---
	// security:
	// - bearer: []
	// parameters:
	// - name: request
	//   in: body
	//   required: true
	//   schema:
	//     "$ref": "#/definitions/CreatePostRequest"
	// responses:
	//   '201':
	//     schema:
	//       "$ref": "#/definitions/Post"
	//   '400':
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '401':
	//     schema:
	//       "$ref": "#/definitions/Error"

	var req CreatePostRequest
	if err := s.decode(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	p := entities.Post{
		Title:   strings.TrimSpace(req.Title),
		Content: req.Content,
		Excerpt: req.Excerpt,
		Image:   req.Image,
		Tag:     req.Tag,
		Author:  requester(r),
	}

	if err := s.s.CreatePost(r.Context(), &p); err != nil {
		writeServiceError(r.Context(), w, err, "Error creating post", "")
		return
	}

	writeOK(w, http.StatusCreated, toAPIPost(&p))
}

func (s server) updatePost(w http.ResponseWriter, r *http.Request) {
	// swagger:operation PUT /posts/{id} Posts UpdatePost
	//
	// Updates post. Only the author may update it.
	//
	// ---
	// security:
	// - bearer: []
	// parameters:
	// - name: id
	//   in: path
	//   required: true
	//   type: string
	// - name: request
	//   in: body
	//   required: true
	//   schema:
	//     "$ref": "#/definitions/UpdatePostRequest"
	// responses:
	//   '200':
	//     schema:
	//       "$ref": "#/definitions/Post"
	//   '401':
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '403':
	//     schema:
	//       "$ref": "#/definitions/ForbiddenError"
	//   '404':
	//     schema:
	//       "$ref": "#/definitions/Error"

	var req UpdatePostRequest
	if err := s.decode(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	p, err := s.s.UpdatePost(r.Context(), requester(r), chi.URLParam(r, "id"), service.PostUpdate{
		Title:   req.Title,
		Content: req.Content,
		Excerpt: req.Excerpt,
		Image:   req.Image,
		Tag:     req.Tag,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err, "Error updating post", "Post not found")
		return
	}

	writeOK(w, http.StatusOK, toAPIPost(p))
}

func (s server) deletePost(w http.ResponseWriter, r *http.Request) {
	// swagger:operation DELETE /posts/{id} Posts DeletePost
	//
	// Deletes post with its comments. Only the author may delete it.
	//
	// ---
	// security:
	// - bearer: []
	// parameters:
	// - name: id
	//   in: path
	//   required: true
	//   type: string
	// responses:
	//   '200':
	//     schema:
	//       "$ref": "#/definitions/Message"
	//   '401':
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '403':
	//     schema:
	//       "$ref": "#/definitions/ForbiddenError"
	//   '404':
	//     schema:
	//       "$ref": "#/definitions/Error"

	if err := s.s.DeletePost(r.Context(), requester(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(r.Context(), w, err, "Error deleting post", "Post not found")
		return
	}

	writeOK(w, http.StatusOK, Message{Message: "Post deleted successfully"})
}

func (s server) toggleLike(w http.ResponseWriter, r *http.Request) {
	// swagger:operation PUT /posts/{id}/like Posts ToggleLike
	//
	// Likes the post or removes the like when it is already there.
	//
	// ---
	// security:
	// - bearer: []
	// parameters:
	// - name: id
	//   in: path
	//   required: true
	//   type: string
	// responses:
	//   '200':
	//     schema:
	//       "$ref": "#/definitions/Post"
	//   '401':
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '404':
	//     schema:
	//       "$ref": "#/definitions/Error"

	p, err := s.s.ToggleLike(r.Context(), requester(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(r.Context(), w, err, "Error updating like", "Post not found")
		return
	}

	writeOK(w, http.StatusOK, toAPIPost(p))
}

func (s server) listComments(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /comments/post/{postId} Comments ListComments
	//
	// Returns comments of the post, newest first.
	//
	// ---
	// parameters:
	// - name: postId
	//   in: path
	//   required: true
	//   type: string
	// responses:
	//   '200':
	//     schema:
	//       type: array
	//       items:
	//         "$ref": "#/definitions/Comment"

	cc, err := s.s.ListComments(r.Context(), chi.URLParam(r, "postId"))
	if err != nil {
		writeServiceError(r.Context(), w, err, "Error fetching comments", "")
		return
	}

	writeOK(w, http.StatusOK, toAPIComments(cc))
}

func (s server) getComment(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /comments/{id} Comments GetComment
	//
	// Returns the comment.
	//
	// ---
	// parameters:
	// - name: id
	//   in: path
	//   required: true
	//   type: string
	// responses:
	//   '200':
	//     schema:
	//       "$ref": "#/definitions/Comment"
	//   '404':
	//     schema:
	//       "$ref": "#/definitions/Error"

	c, err := s.s.GetComment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(r.Context(), w, err, "Error fetching comment", "Comment not found")
		return
	}

	writeOK(w, http.StatusOK, toAPIComment(c))
}

func (s server) createComment(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /comments Comments CreateComment
	//
	// Adds comment to the post.
	//
	// ---
	// security:
	// - bearer: []
	// parameters:
	// - name: request
	//   in: body
	//   required: true
	//   schema:
	//     "$ref": "#/definitions/CreateCommentRequest"
	// responses:
	//   '201':
	//     schema:
	//       "$ref": "#/definitions/Comment"
	//   '404':
	//     description: post not found
	//     schema:
	//       "$ref": "#/definitions/Error"

	var req CreateCommentRequest
	if err := s.decode(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	c := entities.Comment{
		Post:    req.PostID,
		Author:  requester(r),
		Content: req.Content,
	}

	if err := s.s.CreateComment(r.Context(), &c); err != nil {
		writeServiceError(r.Context(), w, err, "Error creating comment", "Post not found")
		return
	}

	writeOK(w, http.StatusCreated, toAPIComment(&c))
}

func (s server) updateComment(w http.ResponseWriter, r *http.Request) {
	// swagger:operation PUT /comments/{id} Comments UpdateComment
	//
	// Changes content of the comment. Only the author may do it.
	//
	// ---
	// security:
	// - bearer: []
	// parameters:
	// - name: id
	//   in: path
	//   required: true
	//   type: string
	// - name: request
	//   in: body
	//   required: true
	//   schema:
	//     "$ref": "#/definitions/UpdateCommentRequest"
	// responses:
	//   '200':
	//     schema:
	//       "$ref": "#/definitions/Comment"
	//   '400':
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '401':
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '403':
	//     description: requester is not the author
	//     schema:
	//       "$ref": "#/definitions/ForbiddenError"
	//   '404':
	//     schema:
	//       "$ref": "#/definitions/Error"

	var req UpdateCommentRequest
	if err := s.decode(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	c, err := s.s.UpdateComment(r.Context(), requester(r), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeServiceError(r.Context(), w, err, "Error updating comment", "Comment not found")
		return
	}

	writeOK(w, http.StatusOK, toAPIComment(c))
}

func (s server) deleteComment(w http.ResponseWriter, r *http.Request) {
	// swagger:operation DELETE /comments/{id} Comments DeleteComment
	//
	// Deletes the comment. Only the author may do it.
	//
	// ---
	// security:
	// - bearer: []
	// parameters:
	// - name: id
	//   in: path
	//   required: true
	//   type: string
	// responses:
	//   '200':
	//     schema:
	//       "$ref": "#/definitions/Message"
	//   '401':
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '403':
	//     description: requester is not the author
	//     schema:
	//       "$ref": "#/definitions/ForbiddenError"
	//   '404':
	//     schema:
	//       "$ref": "#/definitions/Error"

	if err := s.s.DeleteComment(r.Context(), requester(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(r.Context(), w, err, "Error deleting comment", "Comment not found")
		return
	}

	writeOK(w, http.StatusOK, Message{Message: "Comment deleted"})
}

func (s server) listTasks(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /tasks Tasks ListTasks
	//
	// Returns all tasks, newest first.
	//
	// ---
	// security:
	// - bearer: []
	// responses:
	//   '200':
	//     schema:
	//       type: array
	//       items:
	//         "$ref": "#/definitions/Task"
	//   '401':
	//     schema:
	//       "$ref": "#/definitions/Error"

	tt, err := s.s.ListTasks(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err, "Error fetching tasks", "")
		return
	}

	writeOK(w, http.StatusOK, toAPITasks(tt))
}

func (s server) getTask(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /tasks/{id} Tasks GetTask
	//
	// Returns the task.
	//
	// ---
	// security:
	// - bearer: []
	// parameters:
	// - name: id
	//   in: path
	//   required: true
	//   type: string
	// responses:
	//   '200':
	//     schema:
	//       "$ref": "#/definitions/Task"
	//   '401':
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '404':
	//     schema:
	//       "$ref": "#/definitions/Error"

	t, err := s.s.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(r.Context(), w, err, "Error fetching task", "Task not found")
		return
	}

	writeOK(w, http.StatusOK, toAPITask(t))
}

func (s server) createTask(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /tasks Tasks CreateTask
	//
	// Creates a task. Status defaults to todo.
	//
	// ---
	// security:
	// - bearer: []
	// parameters:
	// - name: request
	//   in: body
	//   required: true
	//   schema:
	//     "$ref": "#/definitions/CreateTaskRequest"
	// responses:
	//   '201':
	//     schema:
	//       "$ref": "#/definitions/Task"
	//   '400':
	//     description: bad request or unknown status
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '401':
	//     schema:
	//       "$ref": "#/definitions/Error"

	var req CreateTaskRequest
	if err := s.decode(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	t := entities.Task{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		Status:      entities.TaskStatus(req.Status),
		Deadline:    req.Deadline,
		Project:     req.Project,
	}

	if err := s.s.CreateTask(r.Context(), &t); err != nil {
		writeServiceError(r.Context(), w, err, "Error creating task", "")
		return
	}

	writeOK(w, http.StatusCreated, toAPITask(&t))
}

func (s server) updateTask(w http.ResponseWriter, r *http.Request) {
	// swagger:operation PUT /tasks/{id} Tasks UpdateTask
	//
	// Updates the task. Omitted fields keep stored values.
	//
	// ---
	// security:
	// - bearer: []
	// parameters:
	// - name: id
	//   in: path
	//   required: true
	//   type: string
	// - name: request
	//   in: body
	//   required: true
	//   schema:
	//     "$ref": "#/definitions/UpdateTaskRequest"
	// responses:
	//   '200':
	//     schema:
	//       "$ref": "#/definitions/Task"
	//   '400':
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '401':
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '404':
	//     schema:
	//       "$ref": "#/definitions/Error"

	var req UpdateTaskRequest
	if err := s.decode(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	u := service.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		Deadline:    req.Deadline,
		Project:     req.Project,
	}
	if req.Status != nil {
		status := entities.TaskStatus(*req.Status)
		u.Status = &status
	}

	t, err := s.s.UpdateTask(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		writeServiceError(r.Context(), w, err, "Error updating task", "Task not found")
		return
	}

	writeOK(w, http.StatusOK, toAPITask(t))
}

func (s server) deleteTask(w http.ResponseWriter, r *http.Request) {
	// swagger:operation DELETE /tasks/{id} Tasks DeleteTask
	//
	// Deletes the task.
	//
	// ---
	// security:
	// - bearer: []
	// parameters:
	// - name: id
	//   in: path
	//   required: true
	//   type: string
	// responses:
	//   '200':
	//     schema:
	//       "$ref": "#/definitions/Message"
	//   '401':
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '404':
	//     schema:
	//       "$ref": "#/definitions/Error"

	if err := s.s.DeleteTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(r.Context(), w, err, "Error deleting task", "Task not found")
		return
	}

	writeOK(w, http.StatusOK, Message{Message: "Task deleted"})
}

// decode reads json body into v and validates it.
func (s server) decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %s", service.ErrValidation, err.Error())
	}

	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fmt.Sprintf("%s is %s", fe.Field(), fe.Tag())
			}

			return fmt.Errorf("%w: %s", service.ErrValidation, strings.Join(fields, ", "))
		}

		return fmt.Errorf("%w: %s", service.ErrValidation, err.Error())
	}

	return nil
}

func requester(r *http.Request) string {
	id, _ := mm.IdentityFrom(r.Context())

	return id
}

func toAuthResponse(s *service.Session) AuthResponse {
	return AuthResponse{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
		User:      toAPIUser(s.User),
	}
}

func writeOK(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeOK(w, status, Error{Message: message})
}

func writeValidationError(w http.ResponseWriter, err error) {
	writeOK(w, http.StatusBadRequest, Error{Message: "Validation failed", Error: err.Error()})
}

// writeServiceError maps service errors to statuses. notFound is the message for missing resources.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error, message, notFound string) {
	var notOwner *guard.NotOwnerError

	switch {
	case errors.Is(err, service.ErrValidation):
		writeValidationError(w, err)
	case notFound != "" && errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.As(err, &notOwner):
		writeOK(w, http.StatusForbidden, ForbiddenError{
			Message: "Not authorized",
			Author:  notOwner.Owner,
			User:    notOwner.Requester,
		})
	default:
		mm.GetLogger(ctx).WithError(err).Error(message)
		writeOK(w, http.StatusInternalServerError, Error{Message: message, Error: err.Error()})
	}
}
