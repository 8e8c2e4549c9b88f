// Package backend opens the configured storage implementation.
package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratep "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // migrations source
	_ "github.com/lib/pq"                                // postgres driver
	"github.com/sirupsen/logrus"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/blogjet/blogjet/internal/storage"
	"github.com/blogjet/blogjet/internal/storage/memory"
	"github.com/blogjet/blogjet/internal/storage/mongo"
	"github.com/blogjet/blogjet/internal/storage/postgres"
)

var log = logrus.WithField("layer", "storage").WithField("package", "backend")

// Kinds of storage.
const (
	Postgres = "postgres"
	Mongo    = "mongo"
	Memory   = "memory"
)

// ErrUnknownKind is returned when storage kind is not supported.
var ErrUnknownKind = errors.New("unknown storage kind")

// Config ...
type Config struct {
	Kind string

	Postgres                   string
	PostgresMaxOpenConnections int
	PostgresMaxIdleConnections int
	PostgresMigrations         string

	MongoURI      string
	MongoDatabase string

	ConnectRetries       int
	ConnectRetryInterval time.Duration
}

// Open connects to the storage, retrying failed connection attempts.
// Returned close function releases the connection.
func Open(ctx context.Context, c Config) (storage.Storage, func(), error) {
	switch c.Kind {
	case Postgres:
		return openPostgres(ctx, c)
	case Mongo:
		return openMongo(ctx, c)
	case Memory:
		log.Warn("using in-memory storage, data will be lost on restart")
		return memory.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownKind, c.Kind)
	}
}

func openPostgres(ctx context.Context, c Config) (storage.Storage, func(), error) {
	db, err := sql.Open("postgres", c.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create postgres connection: %w", err)
	}
	db.SetMaxOpenConns(c.PostgresMaxOpenConnections)
	db.SetMaxIdleConns(c.PostgresMaxIdleConnections)

	closeFn := func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Error("failed to close postgres connection")
		}
	}

	if err := retry(ctx, c, "postgres", db.PingContext); err != nil {
		closeFn()
		return nil, nil, err
	}

	if err := migratePostgres(db, c.PostgresMigrations); err != nil {
		closeFn()
		return nil, nil, err
	}

	return postgres.New(db), closeFn, nil
}

func migratePostgres(db *sql.DB, migrations string) error {
	driver, err := migratep.WithInstance(db, &migratep.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database migrate driver: %w", err)
	}

	migrator, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", migrations), "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	switch v, d, err := migrator.Version(); {
	case err == nil:
		log.Infof("database version %d with dirty state %t", v, d)
	case errors.Is(err, migrate.ErrNilVersion):
		log.Info("database version: nil")
	default:
		return fmt.Errorf("failed to get version: %w", err)
	}

	switch err := migrator.Up(); {
	case err == nil:
		log.Info("database was migrated")
	case errors.Is(err, migrate.ErrNoChange):
		log.Info("database is up-to-date")
	default:
		return fmt.Errorf("failed to migrate db: %w", err)
	}

	return nil
}

func openMongo(ctx context.Context, c Config) (storage.Storage, func(), error) {
	client, err := mongodriver.Connect(ctx, options.Client().ApplyURI(c.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	closeFn := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.WithError(err).Error("failed to disconnect from mongo")
		}
	}

	if err := retry(ctx, c, "mongo", func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	}); err != nil {
		closeFn()
		return nil, nil, err
	}

	s, err := mongo.New(ctx, client.Database(c.MongoDatabase))
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	return s, closeFn, nil
}

// retry calls ping until it succeeds or attempts are exhausted.
func retry(ctx context.Context, c Config, name string, ping func(ctx context.Context) error) error {
	attempts := c.ConnectRetries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = ping(ctx); err == nil {
			log.WithField("attempt", i).Infof("connected to %s", name)
			return nil
		}

		log.WithError(err).WithField("attempt", i).Warnf("failed to connect to %s", name)

		if i == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.ConnectRetryInterval):
		}
	}

	return fmt.Errorf("failed to connect to %s after %d attempts: %w", name, attempts, err)
}
