package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/blogjet/blogjet/internal/seed"
	"github.com/blogjet/blogjet/internal/storage/backend"
)

// nolint:lll,gochecknoglobals
var opts = struct {
	Storage            string `long:"storage" env:"STORAGE" default:"mongo" description:"storage backend" choice:"postgres" choice:"mongo"`
	Postgres           string `long:"postgres" env:"POSTGRES" default:"host=localhost port=5432 user=postgres password=root sslmode=disable" description:"postgres dsn"`
	PostgresMigrations string `long:"postgres.migrations" env:"POSTGRES_MIGRATIONS" default:"scripts/migrations/postgres" description:"postgres migrations directory"`
	MongoURI           string `long:"mongo.uri" env:"MONGODB_URI" default:"mongodb://localhost:27017" description:"mongo connection uri"`
	MongoDatabase      string `long:"mongo.database" env:"MONGODB_DATABASE" default:"blogjet" description:"mongo database name"`

	TeamPassword string `long:"seed.team-password" env:"TEAM_PASSWORD" default:"blogjetteam123" description:"password of team user"`
	ClearPosts   bool   `long:"clear-posts" description:"delete all posts and their comments instead of seeding"`
}{}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("failed to load .env")
	}

	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "seed"
	parser.LongDescription = "Default content importer"

	_, err := parser.Parse()

	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stdout)
			os.Exit(0)
		}
		logrus.WithError(err).Fatal("error occurred while parsing flags")
	}

	logrus.Info("seed started")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s, closeStorage, err := backend.Open(ctx, backend.Config{
		Kind:                       opts.Storage,
		Postgres:                   opts.Postgres,
		PostgresMaxIdleConnections: 1,
		PostgresMigrations:         opts.PostgresMigrations,
		MongoURI:                   opts.MongoURI,
		MongoDatabase:              opts.MongoDatabase,
		ConnectRetries:             5,
		ConnectRetryInterval:       2 * time.Second,
	})
	if err != nil {
		logrus.WithError(err).Fatal("failed to open storage")
	}
	defer closeStorage()

	if opts.ClearPosts {
		n, err := s.DeleteAllPosts(ctx)
		if err != nil {
			logrus.WithError(err).Error("failed to delete posts")
			return
		}

		logrus.WithField("count", n).Info("posts deleted")
		return
	}

	if err := seed.Seed(ctx, s, opts.TeamPassword); err != nil {
		logrus.WithError(err).Error("failed to seed")
		return
	}

	logrus.Info("done")
}
