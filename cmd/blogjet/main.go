package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Decentr-net/logrus/sentry"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/blogjet/blogjet/internal/auth"
	"github.com/blogjet/blogjet/internal/health"
	"github.com/blogjet/blogjet/internal/seed"
	"github.com/blogjet/blogjet/internal/server"
	"github.com/blogjet/blogjet/internal/service/impl"
	"github.com/blogjet/blogjet/internal/storage/backend"
)

// nolint:lll,gochecknoglobals
var opts = struct {
	Host           string        `long:"http.host" env:"HTTP_HOST" default:"0.0.0.0" description:"IP to listen on"`
	Port           int           `long:"http.port" env:"PORT" default:"5000" description:"port to listen on for insecure connections"`
	RequestTimeout time.Duration `long:"http.request-timeout" env:"HTTP_REQUEST_TIMEOUT" default:"45s" description:"request processing timeout"`
	MaxBodySize    int64         `long:"http.max-body-size" env:"HTTP_MAX_BODY_SIZE" default:"1048576" description:"max request body size in bytes"`
	CORSOrigins    string        `long:"http.cors-origins" env:"CORS_ORIGINS" default:"*" description:"comma separated list of allowed origins"`

	Storage string `long:"storage" env:"STORAGE" default:"mongo" description:"storage backend" choice:"postgres" choice:"mongo" choice:"memory"`

	Postgres                   string `long:"postgres" env:"POSTGRES" default:"host=localhost port=5432 user=postgres password=root sslmode=disable" description:"postgres dsn"`
	PostgresMaxOpenConnections int    `long:"postgres.max_open_connections" env:"POSTGRES_MAX_OPEN_CONNECTIONS" default:"0" description:"postgres maximal open connections count, 0 means unlimited"`
	PostgresMaxIdleConnections int    `long:"postgres.max_idle_connections" env:"POSTGRES_MAX_IDLE_CONNECTIONS" default:"5" description:"postgres maximal idle connections count"`
	PostgresMigrations         string `long:"postgres.migrations" env:"POSTGRES_MIGRATIONS" default:"scripts/migrations/postgres" description:"postgres migrations directory"`

	MongoURI      string `long:"mongo.uri" env:"MONGODB_URI" default:"mongodb://localhost:27017" description:"mongo connection uri"`
	MongoDatabase string `long:"mongo.database" env:"MONGODB_DATABASE" default:"blogjet" description:"mongo database name"`

	ConnectRetries       int           `long:"storage.connect-retries" env:"STORAGE_CONNECT_RETRIES" default:"5" description:"storage connection attempts"`
	ConnectRetryInterval time.Duration `long:"storage.connect-retry-interval" env:"STORAGE_CONNECT_RETRY_INTERVAL" default:"2s" description:"interval between storage connection attempts"`

	JWTSecret string        `long:"jwt.secret" env:"JWT_SECRET" required:"true" description:"secret used to sign tokens"`
	JWTTTL    time.Duration `long:"jwt.ttl" env:"JWT_TTL" default:"24h" description:"token lifetime"`

	Seed         bool   `long:"seed" env:"SEED" description:"create team user and default posts on start"`
	TeamPassword string `long:"seed.team-password" env:"TEAM_PASSWORD" default:"blogjetteam123" description:"password of team user"`

	LogLevel  string `long:"log.level" env:"LOG_LEVEL" default:"info" description:"Log level" choice:"debug" choice:"info" choice:"warning" choice:"error"`
	SentryDSN string `long:"sentry.dsn" env:"SENTRY_DSN" description:"sentry dsn"`
}{}

var errTerminated = errors.New("terminated")

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("failed to load .env")
	}

	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "Blogjet"
	parser.LongDescription = "Blogjet blogging backend"

	_, err := parser.Parse()

	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stdout)
			os.Exit(0)
		}
		logrus.WithError(err).Fatal("error occurred while parsing flags")
	}

	lvl, _ := logrus.ParseLevel(opts.LogLevel) // err will always be nil
	logrus.SetLevel(lvl)

	printed := opts
	printed.JWTSecret = "***"
	printed.TeamPassword = "***"
	logrus.Infof("%+v", printed)

	if opts.SentryDSN != "" {
		hook, err := sentry.NewHook(sentry.Options{
			Dsn:              opts.SentryDSN,
			AttachStacktrace: true,
			Release:          health.GetVersion(),
			ServerName:       "blogjet",
		}, logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel)

		if err != nil {
			logrus.WithError(err).Fatal("failed to init sentry")
		}

		logrus.AddHook(hook)
	} else {
		logrus.Info("empty sentry dsn")
		logrus.Warn("skip sentry initialization")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, closeStorage, err := backend.Open(ctx, backend.Config{
		Kind:                       opts.Storage,
		Postgres:                   opts.Postgres,
		PostgresMaxOpenConnections: opts.PostgresMaxOpenConnections,
		PostgresMaxIdleConnections: opts.PostgresMaxIdleConnections,
		PostgresMigrations:         opts.PostgresMigrations,
		MongoURI:                   opts.MongoURI,
		MongoDatabase:              opts.MongoDatabase,
		ConnectRetries:             opts.ConnectRetries,
		ConnectRetryInterval:       opts.ConnectRetryInterval,
	})
	if err != nil {
		logrus.WithError(err).Fatal("failed to open storage")
	}
	defer closeStorage()

	if opts.Seed {
		if err := seed.Seed(ctx, s, opts.TeamPassword); err != nil {
			logrus.WithError(err).Error("failed to seed default posts")
		}
	}

	tokens := auth.NewTokens(opts.JWTSecret, opts.JWTTTL)

	r := chi.NewMux()
	r.Use(middleware.StripSlashes)
	r.Route("/api", func(r chi.Router) {
		server.SetupRouter(impl.New(s, tokens), tokens, r, server.Options{
			Timeout:        opts.RequestTimeout,
			MaxBodySize:    opts.MaxBodySize,
			AllowedOrigins: strings.Split(opts.CORSOrigins, ","),
		})
		r.Get("/health", health.Handler(5*time.Second, health.SubjectPinger("storage", s.Ping)))
	})

	srv := http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	gr, _ := errgroup.WithContext(ctx)
	gr.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	gr.Go(func() error {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

		sig := <-sigs

		logrus.Infof("terminating by %s signal", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), opts.RequestTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("failed to shutdown server")
		}

		cancel()

		return errTerminated
	})

	logrus.WithField("addr", srv.Addr).Info("service started")

	if err := gr.Wait(); err != nil && !errors.Is(err, errTerminated) {
		logrus.WithError(err).Fatal("service unexpectedly closed")
	}
}
