// Package postgres is implementation of storage interface.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/blogjet/blogjet/internal/entities"
	"github.com/blogjet/blogjet/internal/storage"
)

var log = logrus.WithField("layer", "storage").WithField("package", "postgres")

const (
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"
)

type pg struct {
	db *sqlx.DB
}

type userDTO struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

type postDTO struct {
	ID         string         `db:"id"`
	Slug       sql.NullString `db:"slug"`
	Title      string         `db:"title"`
	Content    string         `db:"content"`
	Excerpt    string         `db:"excerpt"`
	Image      string         `db:"image"`
	Tag        string         `db:"tag"`
	Author     string         `db:"author"`
	AuthorName string         `db:"author_name"`
	Likes      pq.StringArray `db:"likes"`
	LikeCount  int            `db:"like_count"`
	IsDefault  bool           `db:"is_default"`
	CreatedAt  time.Time      `db:"created_at"`
}

type commentDTO struct {
	ID         string    `db:"id"`
	PostID     string    `db:"post_id"`
	Author     string    `db:"author"`
	AuthorName string    `db:"author_name"`
	Content    string    `db:"content"`
	CreatedAt  time.Time `db:"created_at"`
}

type taskDTO struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	AssignedTo  sql.NullString `db:"assigned_to"`
	Status      string         `db:"status"`
	Deadline    sql.NullTime   `db:"deadline"`
	Project     sql.NullString `db:"project"`
	CreatedAt   time.Time      `db:"created_at"`
}

const selectPost = `
	SELECT p.id, p.slug, p.title, p.content, p.excerpt, p.image, p.tag, p.author,
		COALESCE(u.username, '') AS author_name, p.likes, p.like_count, p.is_default, p.created_at
	FROM post p
	LEFT JOIN "user" u ON u.id = p.author
`

const selectComment = `
	SELECT c.id, c.post_id, c.author, COALESCE(u.username, '') AS author_name, c.content, c.created_at
	FROM comment c
	LEFT JOIN "user" u ON u.id = c.author
`

// New creates new instance of pg.
func New(db *sql.DB) storage.Storage {
	return pg{
		db: sqlx.NewDb(db, "postgres"),
	}
}

func (s pg) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping: %w", err)
	}

	return nil
}

func (s pg) CreateUser(ctx context.Context, u *entities.User) error {
	dto := toUserDTO(u)
	dto.ID = uuid.New().String()

	if _, err := sqlx.NamedExecContext(ctx, s.db, `
			INSERT INTO "user"(id, username, email, password_hash, created_at)
			VALUES(:id, :username, :email, :password_hash, :created_at)
		`, dto,
	); err != nil {
		return wrapExecError(err)
	}

	u.ID, u.CreatedAt = dto.ID, dto.CreatedAt

	return nil
}

func (s pg) EnsureUser(ctx context.Context, u *entities.User) (*entities.User, error) {
	dto := toUserDTO(u)
	dto.ID = uuid.New().String()

	if _, err := sqlx.NamedExecContext(ctx, s.db, `
			INSERT INTO "user"(id, username, email, password_hash, created_at)
			VALUES(:id, :username, :email, :password_hash, :created_at)
			ON CONFLICT(username) DO NOTHING
		`, dto,
	); err != nil {
		return nil, wrapExecError(err)
	}

	return s.getUser(ctx, `username = $1`, u.Username)
}

func (s pg) GetUser(ctx context.Context, id string) (*entities.User, error) {
	return s.getUser(ctx, `id = $1`, id)
}

func (s pg) GetUserByEmail(ctx context.Context, email string) (*entities.User, error) {
	return s.getUser(ctx, `lower(email) = lower($1)`, email)
}

func (s pg) getUser(ctx context.Context, where string, arg interface{}) (*entities.User, error) {
	var u userDTO

	if err := sqlx.GetContext(ctx, s.db, &u,
		`SELECT id, username, email, password_hash, created_at FROM "user" WHERE `+where, arg,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return &entities.User{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}, nil
}

func (s pg) ListPosts(ctx context.Context, p storage.ListPostsParams) ([]*entities.Post, error) {
	query, args := selectPost, []interface{}{}
	if p.Author != nil {
		query += ` WHERE p.author = $1`
		args = append(args, *p.Author)
	}
	query += ` ORDER BY p.created_at DESC, p.id DESC`

	var pp []*postDTO
	if err := sqlx.SelectContext(ctx, s.db, &pp, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	out := make([]*entities.Post, len(pp))
	for i, v := range pp {
		out[i] = v.toEntity()
	}

	return out, nil
}

func (s pg) GetPost(ctx context.Context, id string) (*entities.Post, error) {
	var p postDTO

	if err := sqlx.GetContext(ctx, s.db, &p, selectPost+` WHERE p.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return p.toEntity(), nil
}

func (s pg) CreatePost(ctx context.Context, p *entities.Post) error {
	return s.insertPost(ctx, p, "")
}

func (s pg) UpsertPostBySlug(ctx context.Context, p *entities.Post) error {
	return s.insertPost(ctx, p, `ON CONFLICT(slug) DO NOTHING`)
}

func (s pg) insertPost(ctx context.Context, p *entities.Post, onConflict string) error {
	dto := toPostDTO(p)
	dto.ID = uuid.New().String()

	if _, err := sqlx.NamedExecContext(ctx, s.db, `
			INSERT INTO post(id, slug, title, content, excerpt, image, tag, author, likes, like_count, is_default, created_at)
			VALUES(:id, :slug, :title, :content, :excerpt, :image, :tag, :author, :likes, :like_count, :is_default, :created_at)
		`+onConflict, dto,
	); err != nil {
		return wrapExecError(err)
	}

	p.ID, p.CreatedAt = dto.ID, dto.CreatedAt

	return nil
}

func (s pg) UpdatePost(ctx context.Context, p *entities.Post) error {
	res, err := sqlx.NamedExecContext(ctx, s.db, `
			UPDATE post SET
				title=:title, content=:content, excerpt=:excerpt, image=:image, tag=:tag,
				likes=:likes, like_count=:like_count
			WHERE id=:id
		`, toPostDTO(p),
	)
	if err != nil {
		return wrapExecError(err)
	}

	return checkAffected(res)
}

func (s pg) DeletePost(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM post WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return checkAffected(res)
}

func (s pg) DeleteAllPosts(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM post`)
	if err != nil {
		return 0, fmt.Errorf("failed to exec: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return n, nil
}

func (s pg) ListComments(ctx context.Context, postID string) ([]*entities.Comment, error) {
	var cc []*commentDTO

	if err := sqlx.SelectContext(ctx, s.db, &cc,
		selectComment+` WHERE c.post_id = $1 ORDER BY c.created_at DESC, c.id DESC`, postID,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	out := make([]*entities.Comment, len(cc))
	for i, v := range cc {
		out[i] = v.toEntity()
	}

	return out, nil
}

func (s pg) GetComment(ctx context.Context, id string) (*entities.Comment, error) {
	var c commentDTO

	if err := sqlx.GetContext(ctx, s.db, &c, selectComment+` WHERE c.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return c.toEntity(), nil
}

func (s pg) CreateComment(ctx context.Context, c *entities.Comment) error {
	dto := commentDTO{
		ID:        uuid.New().String(),
		PostID:    c.Post,
		Author:    c.Author,
		Content:   c.Content,
		CreatedAt: createdAt(c.CreatedAt),
	}

	if _, err := sqlx.NamedExecContext(ctx, s.db, `
			INSERT INTO comment(id, post_id, author, content, created_at)
			VALUES(:id, :post_id, :author, :content, :created_at)
		`, dto,
	); err != nil {
		return wrapExecError(err)
	}

	c.ID, c.CreatedAt = dto.ID, dto.CreatedAt

	return nil
}

func (s pg) UpdateComment(ctx context.Context, c *entities.Comment) error {
	res, err := s.db.ExecContext(ctx, `UPDATE comment SET content=$2 WHERE id=$1`, c.ID, c.Content)
	if err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return checkAffected(res)
}

func (s pg) DeleteComment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comment WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return checkAffected(res)
}

func (s pg) ListTasks(ctx context.Context) ([]*entities.Task, error) {
	var tt []*taskDTO

	if err := sqlx.SelectContext(ctx, s.db, &tt, `
			SELECT id, title, description, assigned_to, status, deadline, project, created_at
			FROM task ORDER BY created_at DESC, id DESC
		`,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	out := make([]*entities.Task, len(tt))
	for i, v := range tt {
		out[i] = v.toEntity()
	}

	return out, nil
}

func (s pg) GetTask(ctx context.Context, id string) (*entities.Task, error) {
	var t taskDTO

	if err := sqlx.GetContext(ctx, s.db, &t, `
			SELECT id, title, description, assigned_to, status, deadline, project, created_at
			FROM task WHERE id = $1
		`, id,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return t.toEntity(), nil
}

func (s pg) CreateTask(ctx context.Context, t *entities.Task) error {
	dto := toTaskDTO(t)
	dto.ID = uuid.New().String()

	if _, err := sqlx.NamedExecContext(ctx, s.db, `
			INSERT INTO task(id, title, description, assigned_to, status, deadline, project, created_at)
			VALUES(:id, :title, :description, :assigned_to, :status, :deadline, :project, :created_at)
		`, dto,
	); err != nil {
		return wrapExecError(err)
	}

	t.ID, t.CreatedAt = dto.ID, dto.CreatedAt

	return nil
}

func (s pg) UpdateTask(ctx context.Context, t *entities.Task) error {
	res, err := sqlx.NamedExecContext(ctx, s.db, `
			UPDATE task SET
				title=:title, description=:description, assigned_to=:assigned_to,
				status=:status, deadline=:deadline, project=:project
			WHERE id=:id
		`, toTaskDTO(t),
	)
	if err != nil {
		return wrapExecError(err)
	}

	return checkAffected(res)
}

func (s pg) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM task WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return checkAffected(res)
}

func wrapExecError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%w: %s", storage.ErrAlreadyExists, pqErr.Constraint)
		case foreignKeyViolation:
			return storage.ErrNotFound
		}
	}

	return fmt.Errorf("failed to exec: %w", err)
}

func checkAffected(res sql.Result) error {
	c, err := res.RowsAffected()
	if err != nil {
		log.WithError(err).Warn("failed to get affected rows")
		return nil
	}

	if c == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}

	return t.UTC()
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)

	return sql.NullString{String: s, Valid: s != ""}
}

func toUserDTO(u *entities.User) userDTO {
	return userDTO{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    createdAt(u.CreatedAt),
	}
}

func toPostDTO(p *entities.Post) postDTO {
	likes := pq.StringArray(p.Likes)
	if likes == nil {
		likes = pq.StringArray{}
	}

	return postDTO{
		ID:        p.ID,
		Slug:      nullString(p.Slug),
		Title:     p.Title,
		Content:   p.Content,
		Excerpt:   p.Excerpt,
		Image:     p.Image,
		Tag:       p.Tag,
		Author:    p.Author,
		Likes:     likes,
		LikeCount: p.LikeCount,
		IsDefault: p.IsDefault,
		CreatedAt: createdAt(p.CreatedAt),
	}
}

func (p postDTO) toEntity() *entities.Post {
	return &entities.Post{
		ID:         p.ID,
		Slug:       p.Slug.String,
		Title:      p.Title,
		Content:    p.Content,
		Excerpt:    p.Excerpt,
		Image:      p.Image,
		Tag:        p.Tag,
		Author:     p.Author,
		AuthorName: p.AuthorName,
		Likes:      []string(p.Likes),
		LikeCount:  p.LikeCount,
		IsDefault:  p.IsDefault,
		CreatedAt:  p.CreatedAt,
	}
}

func (c commentDTO) toEntity() *entities.Comment {
	return &entities.Comment{
		ID:         c.ID,
		Post:       c.PostID,
		Author:     c.Author,
		AuthorName: c.AuthorName,
		Content:    c.Content,
		CreatedAt:  c.CreatedAt,
	}
}

func toTaskDTO(t *entities.Task) taskDTO {
	dto := taskDTO{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		AssignedTo:  nullString(t.AssignedTo),
		Status:      string(t.Status),
		Project:     nullString(t.Project),
		CreatedAt:   createdAt(t.CreatedAt),
	}

	if t.Deadline != nil {
		dto.Deadline = sql.NullTime{Time: t.Deadline.UTC(), Valid: true}
	}

	return dto
}

func (t taskDTO) toEntity() *entities.Task {
	out := &entities.Task{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		AssignedTo:  t.AssignedTo.String,
		Status:      entities.TaskStatus(t.Status),
		Project:     t.Project.String,
		CreatedAt:   t.CreatedAt,
	}

	if t.Deadline.Valid {
		d := t.Deadline.Time
		out.Deadline = &d
	}

	return out
}
