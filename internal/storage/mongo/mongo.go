// Package mongo is implementation of storage interface backed by MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/blogjet/blogjet/internal/entities"
	"github.com/blogjet/blogjet/internal/identity"
	"github.com/blogjet/blogjet/internal/storage"
)

var log = logrus.WithField("layer", "storage").WithField("package", "mongo")

const (
	usersCollection    = "users"
	postsCollection    = "posts"
	commentsCollection = "comments"
	tasksCollection    = "tasks"
)

var (
	newestFirst      = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	caseInsensitive  = &options.Collation{Locale: "en", Strength: 2}
	errSkipAuthorRef = errors.New("author is not a reference")
)

type store struct {
	db *mongo.Database
}

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Username  string             `bson:"username"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// postDoc is the written shape of a post.
type postDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Slug      string             `bson:"slug,omitempty"`
	Title     string             `bson:"title"`
	Content   string             `bson:"content"`
	Excerpt   string             `bson:"excerpt"`
	Image     string             `bson:"image"`
	Tag       string             `bson:"tag"`
	Author    interface{}        `bson:"author"`
	Likes     []interface{}      `bson:"likes"`
	LikeCount int                `bson:"likeCount"`
	IsDefault bool               `bson:"isDefault"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// postRecord is the read shape of a post. Fields that may have been written
// by other tools are decoded loosely.
type postRecord struct {
	ID        primitive.ObjectID `bson:"_id"`
	Slug      string             `bson:"slug"`
	Title     string             `bson:"title"`
	Content   string             `bson:"content"`
	Excerpt   string             `bson:"excerpt"`
	Image     string             `bson:"image"`
	Tag       string             `bson:"tag"`
	Author    bson.RawValue      `bson:"author"`
	Likes     bson.RawValue      `bson:"likes"`
	LikeCount bson.RawValue      `bson:"likeCount"`
	IsDefault bool               `bson:"isDefault"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type commentDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Post      primitive.ObjectID `bson:"post"`
	Author    interface{}        `bson:"author"`
	Content   string             `bson:"content"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type commentRecord struct {
	ID        primitive.ObjectID `bson:"_id"`
	Post      primitive.ObjectID `bson:"post"`
	Author    bson.RawValue      `bson:"author"`
	Content   string             `bson:"content"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type taskDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	AssignedTo  string             `bson:"assignedTo,omitempty"`
	Status      string             `bson:"status"`
	Deadline    *time.Time         `bson:"deadline,omitempty"`
	Project     string             `bson:"project,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

// New creates new instance of mongo storage and ensures required indexes.
func New(ctx context.Context, db *mongo.Database) (storage.Storage, error) {
	s := store{db: db}

	if _, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetCollation(caseInsensitive)},
	}); err != nil {
		return nil, fmt.Errorf("failed to create users indexes: %w", err)
	}

	if _, err := db.Collection(postsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "author", Value: 1}}},
		{Keys: newestFirst},
	}); err != nil {
		return nil, fmt.Errorf("failed to create posts indexes: %w", err)
	}

	if _, err := db.Collection(commentsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "post", Value: 1}},
	}); err != nil {
		return nil, fmt.Errorf("failed to create comments indexes: %w", err)
	}

	return s, nil
}

func (s store) Ping(ctx context.Context) error {
	if err := s.db.Client().Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("failed to ping: %w", err)
	}

	return nil
}

func (s store) CreateUser(ctx context.Context, u *entities.User) error {
	doc := toUserDoc(u)

	if _, err := s.db.Collection(usersCollection).InsertOne(ctx, doc); err != nil {
		return wrapWriteError(err)
	}

	u.ID, u.CreatedAt = doc.ID.Hex(), doc.CreatedAt

	return nil
}

func (s store) EnsureUser(ctx context.Context, u *entities.User) (*entities.User, error) {
	doc := toUserDoc(u)

	_, err := s.db.Collection(usersCollection).UpdateOne(ctx,
		bson.M{"username": u.Username},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, wrapWriteError(err)
	}

	stored, ferr := s.findUser(ctx, bson.M{"username": u.Username}, options.FindOne())
	if errors.Is(ferr, storage.ErrNotFound) && err != nil {
		// username is free but email is taken
		return nil, wrapWriteError(err)
	}

	return stored, ferr
}

func (s store) GetUser(ctx context.Context, id string) (*entities.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, storage.ErrNotFound
	}

	return s.findUser(ctx, bson.M{"_id": oid}, options.FindOne())
}

func (s store) GetUserByEmail(ctx context.Context, email string) (*entities.User, error) {
	return s.findUser(ctx, bson.M{"email": email}, options.FindOne().SetCollation(caseInsensitive))
}

func (s store) findUser(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*entities.User, error) {
	var doc userDoc

	if err := s.db.Collection(usersCollection).FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return &entities.User{
		ID:           doc.ID.Hex(),
		Username:     doc.Username,
		Email:        doc.Email,
		PasswordHash: doc.Password,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

func (s store) ListPosts(ctx context.Context, p storage.ListPostsParams) ([]*entities.Post, error) {
	filter := bson.M{}
	if p.Author != nil {
		filter["author"] = ref(*p.Author)
	}

	cur, err := s.db.Collection(postsCollection).Find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("failed to find posts: %w", err)
	}

	var records []postRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}

	out := make([]*entities.Post, len(records))
	authors := make([]string, len(records))
	for i, v := range records {
		out[i] = v.toEntity()
		authors[i] = out[i].Author
	}

	names := s.usernames(ctx, authors)
	for _, v := range out {
		v.AuthorName = names[v.Author]
	}

	return out, nil
}

func (s store) GetPost(ctx context.Context, id string) (*entities.Post, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, storage.ErrNotFound
	}

	var record postRecord
	if err := s.db.Collection(postsCollection).FindOne(ctx, bson.M{"_id": oid}).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to find post: %w", err)
	}

	p := record.toEntity()
	p.AuthorName = s.usernames(ctx, []string{p.Author})[p.Author]

	return p, nil
}

func (s store) CreatePost(ctx context.Context, p *entities.Post) error {
	doc := toPostDoc(p)
	doc.ID = primitive.NewObjectID()

	if _, err := s.db.Collection(postsCollection).InsertOne(ctx, doc); err != nil {
		return wrapWriteError(err)
	}

	p.ID, p.CreatedAt = doc.ID.Hex(), doc.CreatedAt

	return nil
}

func (s store) UpsertPostBySlug(ctx context.Context, p *entities.Post) error {
	if p.Slug == "" {
		return s.CreatePost(ctx, p)
	}

	doc := toPostDoc(p)
	doc.ID = primitive.NewObjectID()

	res, err := s.db.Collection(postsCollection).UpdateOne(ctx,
		bson.M{"slug": p.Slug},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		// concurrent upsert of the same slug
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}

		return wrapWriteError(err)
	}

	if res.UpsertedCount > 0 {
		p.ID, p.CreatedAt = doc.ID.Hex(), doc.CreatedAt
	}

	return nil
}

func (s store) UpdatePost(ctx context.Context, p *entities.Post) error {
	oid, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		return storage.ErrNotFound
	}

	doc := toPostDoc(p)
	doc.ID = oid

	res, err := s.db.Collection(postsCollection).ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		return wrapWriteError(err)
	}

	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s store) DeletePost(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return storage.ErrNotFound
	}

	res, err := s.db.Collection(postsCollection).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}

	if _, err := s.db.Collection(commentsCollection).DeleteMany(ctx, bson.M{"post": oid}); err != nil {
		log.WithError(err).WithField("post", id).Error("failed to delete comments of deleted post")
	}

	return nil
}

func (s store) DeleteAllPosts(ctx context.Context) (int64, error) {
	res, err := s.db.Collection(postsCollection).DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to delete posts: %w", err)
	}

	if _, err := s.db.Collection(commentsCollection).DeleteMany(ctx, bson.M{}); err != nil {
		return res.DeletedCount, fmt.Errorf("failed to delete comments: %w", err)
	}

	return res.DeletedCount, nil
}

func (s store) ListComments(ctx context.Context, postID string) ([]*entities.Comment, error) {
	oid, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return []*entities.Comment{}, nil
	}

	cur, err := s.db.Collection(commentsCollection).Find(ctx, bson.M{"post": oid}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("failed to find comments: %w", err)
	}

	var records []commentRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode comments: %w", err)
	}

	out := make([]*entities.Comment, len(records))
	authors := make([]string, len(records))
	for i, v := range records {
		out[i] = v.toEntity()
		authors[i] = out[i].Author
	}

	names := s.usernames(ctx, authors)
	for _, v := range out {
		v.AuthorName = names[v.Author]
	}

	return out, nil
}

func (s store) GetComment(ctx context.Context, id string) (*entities.Comment, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, storage.ErrNotFound
	}

	var record commentRecord
	if err := s.db.Collection(commentsCollection).FindOne(ctx, bson.M{"_id": oid}).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to find comment: %w", err)
	}

	c := record.toEntity()
	c.AuthorName = s.usernames(ctx, []string{c.Author})[c.Author]

	return c, nil
}

func (s store) CreateComment(ctx context.Context, c *entities.Comment) error {
	post, err := primitive.ObjectIDFromHex(c.Post)
	if err != nil {
		return storage.ErrNotFound
	}

	n, err := s.db.Collection(postsCollection).CountDocuments(ctx, bson.M{"_id": post}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("failed to count posts: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}

	doc := commentDoc{
		ID:        primitive.NewObjectID(),
		Post:      post,
		Author:    ref(c.Author),
		Content:   c.Content,
		CreatedAt: createdAt(c.CreatedAt),
	}

	if _, err := s.db.Collection(commentsCollection).InsertOne(ctx, doc); err != nil {
		return wrapWriteError(err)
	}

	c.ID, c.CreatedAt = doc.ID.Hex(), doc.CreatedAt

	return nil
}

func (s store) UpdateComment(ctx context.Context, c *entities.Comment) error {
	oid, err := primitive.ObjectIDFromHex(c.ID)
	if err != nil {
		return storage.ErrNotFound
	}

	res, err := s.db.Collection(commentsCollection).UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"content": c.Content}},
	)
	if err != nil {
		return wrapWriteError(err)
	}

	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s store) DeleteComment(ctx context.Context, id string) error {
	return s.deleteOne(ctx, commentsCollection, id)
}

func (s store) ListTasks(ctx context.Context) ([]*entities.Task, error) {
	cur, err := s.db.Collection(tasksCollection).Find(ctx, bson.M{}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("failed to find tasks: %w", err)
	}

	var docs []taskDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}

	out := make([]*entities.Task, len(docs))
	for i, v := range docs {
		out[i] = v.toEntity()
	}

	return out, nil
}

func (s store) GetTask(ctx context.Context, id string) (*entities.Task, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, storage.ErrNotFound
	}

	var doc taskDoc
	if err := s.db.Collection(tasksCollection).FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	return doc.toEntity(), nil
}

func (s store) CreateTask(ctx context.Context, t *entities.Task) error {
	doc := toTaskDoc(t)
	doc.ID = primitive.NewObjectID()

	if _, err := s.db.Collection(tasksCollection).InsertOne(ctx, doc); err != nil {
		return wrapWriteError(err)
	}

	t.ID, t.CreatedAt = doc.ID.Hex(), doc.CreatedAt

	return nil
}

func (s store) UpdateTask(ctx context.Context, t *entities.Task) error {
	oid, err := primitive.ObjectIDFromHex(t.ID)
	if err != nil {
		return storage.ErrNotFound
	}

	doc := toTaskDoc(t)
	doc.ID = oid

	res, err := s.db.Collection(tasksCollection).ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		return wrapWriteError(err)
	}

	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s store) DeleteTask(ctx context.Context, id string) error {
	return s.deleteOne(ctx, tasksCollection, id)
}

func (s store) deleteOne(ctx context.Context, collection, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return storage.ErrNotFound
	}

	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", collection, err)
	}

	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// usernames resolves author ids to usernames. Unknown authors are missing from the result.
func (s store) usernames(ctx context.Context, ids []string) map[string]string {
	out := make(map[string]string)

	oids := make([]primitive.ObjectID, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, v := range ids {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}

		if oid, err := primitive.ObjectIDFromHex(v); err == nil {
			oids = append(oids, oid)
		}
	}

	if len(oids) == 0 {
		return out
	}

	cur, err := s.db.Collection(usersCollection).Find(ctx,
		bson.M{"_id": bson.M{"$in": oids}},
		options.Find().SetProjection(bson.M{"username": 1}),
	)
	if err != nil {
		log.WithError(err).Warn("failed to resolve usernames")
		return out
	}

	var users []userDoc
	if err := cur.All(ctx, &users); err != nil {
		log.WithError(err).Warn("failed to decode usernames")
		return out
	}

	for _, v := range users {
		out[v.ID.Hex()] = v.Username
	}

	return out
}

func wrapWriteError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", storage.ErrAlreadyExists, err.Error())
	}

	return fmt.Errorf("failed to write: %w", err)
}

// ref stores identifiers that look like ObjectIDs as ObjectIDs.
func ref(id string) interface{} {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}

	return id
}

// decodeRef returns the canonical form of an ObjectID or string reference.
func decodeRef(v bson.RawValue) (string, error) {
	switch v.Type {
	case bson.TypeObjectID:
		return v.ObjectID().Hex(), nil
	case bson.TypeString:
		return identity.Canonical(v.StringValue()), nil
	default:
		return "", errSkipAuthorRef
	}
}

// decodeLikes keeps only well-formed references from a likes array.
func decodeLikes(v bson.RawValue) []string {
	out := make([]string, 0)
	if v.Type != bson.TypeArray {
		return out
	}

	values, err := v.Array().Values()
	if err != nil {
		return out
	}

	for _, e := range values {
		if id, err := decodeRef(e); err == nil && id != "" {
			out = append(out, id)
		}
	}

	return out
}

// decodeCount accepts integral numbers only. Anything else becomes zero.
func decodeCount(v bson.RawValue) int {
	var n int

	switch v.Type {
	case bson.TypeInt32:
		n = int(v.Int32())
	case bson.TypeInt64:
		n = int(v.Int64())
	case bson.TypeDouble:
		f := v.Double()
		if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) || f > math.MaxInt32 {
			return 0
		}
		n = int(f)
	}

	if n < 0 {
		return 0
	}

	return n
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}

	return t.UTC()
}

func toUserDoc(u *entities.User) userDoc {
	return userDoc{
		ID:        primitive.NewObjectID(),
		Username:  u.Username,
		Email:     u.Email,
		Password:  u.PasswordHash,
		CreatedAt: createdAt(u.CreatedAt),
	}
}

func toPostDoc(p *entities.Post) postDoc {
	likes := make([]interface{}, len(p.Likes))
	for i, v := range p.Likes {
		likes[i] = ref(v)
	}

	return postDoc{
		Slug:      p.Slug,
		Title:     p.Title,
		Content:   p.Content,
		Excerpt:   p.Excerpt,
		Image:     p.Image,
		Tag:       p.Tag,
		Author:    ref(p.Author),
		Likes:     likes,
		LikeCount: p.LikeCount,
		IsDefault: p.IsDefault,
		CreatedAt: createdAt(p.CreatedAt),
	}
}

func (r postRecord) toEntity() *entities.Post {
	author, err := decodeRef(r.Author)
	if err != nil && r.Author.Type != 0 {
		log.WithField("post", r.ID.Hex()).Warn("post has malformed author")
	}

	return &entities.Post{
		ID:        r.ID.Hex(),
		Slug:      r.Slug,
		Title:     r.Title,
		Content:   r.Content,
		Excerpt:   r.Excerpt,
		Image:     r.Image,
		Tag:       r.Tag,
		Author:    author,
		Likes:     decodeLikes(r.Likes),
		LikeCount: decodeCount(r.LikeCount),
		IsDefault: r.IsDefault,
		CreatedAt: r.CreatedAt,
	}
}

func (r commentRecord) toEntity() *entities.Comment {
	author, _ := decodeRef(r.Author)

	return &entities.Comment{
		ID:        r.ID.Hex(),
		Post:      r.Post.Hex(),
		Author:    author,
		Content:   r.Content,
		CreatedAt: r.CreatedAt,
	}
}

func toTaskDoc(t *entities.Task) taskDoc {
	return taskDoc{
		Title:       t.Title,
		Description: t.Description,
		AssignedTo:  t.AssignedTo,
		Status:      string(t.Status),
		Deadline:    t.Deadline,
		Project:     t.Project,
		CreatedAt:   createdAt(t.CreatedAt),
	}
}

func (d taskDoc) toEntity() *entities.Task {
	return &entities.Task{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		AssignedTo:  d.AssignedTo,
		Status:      entities.TaskStatus(d.Status),
		Deadline:    d.Deadline,
		Project:     d.Project,
		CreatedAt:   d.CreatedAt,
	}
}
