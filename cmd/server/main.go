package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"quillpost/internal/auth"
	"quillpost/internal/config"
	"quillpost/internal/feed"
	apphttp "quillpost/internal/http"
	"quillpost/internal/repository/sqldb"
	"quillpost/internal/service"
	"quillpost/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	level, _ := logrus.ParseLevel(cfg.Log.Level)
	logger.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := sqldb.Open(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	applied, err := sqldb.Migrate(ctx, db, dialect)
	if err != nil {
		logger.Fatalf("migrate database: %v", err)
	}
	logger.WithFields(logrus.Fields{"dialect": dialect, "applied": applied}).Info("database ready")

	store := sqldb.NewStore(db, dialect)

	authenticator, err := buildAuthenticator(cfg, store, logger)
	if err != nil {
		logger.Fatalf("setup auth: %v", err)
	}

	feedService := service.NewFeedService(store.Posts(), service.FeedConfig{
		Title:       cfg.Feed.Title,
		Link:        cfg.Feed.Link,
		Description: cfg.Feed.Description,
		Limit:       cfg.Feed.Limit,
	})

	publisher, err := buildPublisher(ctx, cfg, feedService, logger)
	if err != nil {
		logger.Fatalf("setup feed publisher: %v", err)
	}
	if err := publisher.Start(ctx); err != nil {
		logger.Fatalf("start feed publisher: %v", err)
	}

	userService := service.NewUserService(store.Users(), authenticator, logger)
	postService := service.NewPostService(store, publisher, logger)

	if cfg.Auth.SuperuserEmail != "" {
		admin, err := userService.EnsureSuperuser(ctx, service.Credentials{
			Email:    cfg.Auth.SuperuserEmail,
			Password: cfg.Auth.SuperuserPassword,
		})
		if err != nil {
			logger.Fatalf("ensure superuser: %v", err)
		}
		logger.WithField("user_id", admin.ID).Info("superuser ready")
	}

	if level < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		userService,
		postService,
		feedService,
		authenticator,
		cfg.Server.CORSOrigins,
		logger,
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	publisher.Shutdown()

	logger.Info("bye")
}

func buildAuthenticator(cfg config.Config, store *sqldb.Store, logger *logrus.Logger) (*auth.Authenticator, error) {
	tokenCfg := cfg.TokenConfig()

	hasher, err := auth.NewHasher(cfg.HasherConfig())
	if err != nil {
		return nil, err
	}
	issuer, err := auth.NewIssuer(tokenCfg)
	if err != nil {
		return nil, err
	}
	verifier, err := auth.NewVerifier(tokenCfg)
	if err != nil {
		return nil, err
	}
	resolver := auth.NewResolver(verifier, store.Users(), logger)

	logger.WithFields(logrus.Fields{
		"algorithm": tokenCfg.Algorithm,
		"ttl":       tokenCfg.TTL,
	}).Info("token signing configured")
	return auth.NewAuthenticator(hasher, issuer, resolver), nil
}

func buildPublisher(ctx context.Context, cfg config.Config, renderer feed.Renderer, logger *logrus.Logger) (feed.Publisher, error) {
	if cfg.Storage.Bucket == "" {
		logger.Info("storage bucket not set, feed publishing disabled")
		return feed.NopPublisher{}, nil
	}

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return feed.NewPublisher(feed.Config{
		Bucket: cfg.Storage.Bucket,
		Key:    cfg.Feed.Key,
		Logger: logger,
	}, renderer, storageSvc), nil
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client), nil
}
