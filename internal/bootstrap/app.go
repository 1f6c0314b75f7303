package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"docsign-backend/internal/audit"
	googleauth "docsign-backend/internal/auth"
	"docsign-backend/internal/certificates"
	"docsign-backend/internal/documents"
	"docsign-backend/internal/events"
	"docsign-backend/internal/queue"
	"docsign-backend/internal/services/health"
	"docsign-backend/internal/shared/config"
	"docsign-backend/internal/shared/server"
	"docsign-backend/internal/shared/storage/db"
	"docsign-backend/internal/shared/storage/object"
	localstore "docsign-backend/internal/shared/storage/object/local"
	s3store "docsign-backend/internal/shared/storage/object/s3"
	"docsign-backend/internal/shared/telemetry"
	"docsign-backend/internal/shares"
	"docsign-backend/internal/uploads"
	"docsign-backend/internal/users"
)

const defaultRegion = "us-east-1"

// App holds shared dependencies and the assembled router.
type App struct {
	Config              config.Config
	Router              *gin.Engine
	DB                  *sql.DB
	Store               object.ObjectStore
	Notify              queue.Client
	Hub                 *events.Hub
	Events              events.Publisher
	Redis               *redis.Client
	Broker              *events.RedisBroker
	UsersService        *users.Service
	AuditService        *audit.Service
	DocumentsService    *documents.Service
	SharesService       *shares.Service
	CertificatesService *certificates.Service
	DocumentsHandler    *documents.Handler
	SharesHandler       *shares.Handler
	AuditHandler        *audit.Handler
	CertificatesHandler *certificates.Handler
	UsersHandler        *users.Handler
	UploadsHandler      *uploads.Handler
	GoogleAuth          *googleauth.GoogleService
	Health              *health.Service

	stopBroker context.CancelFunc
}

// Build prepares every dependency from cfg and wires the router.
// Dev-like environments fall back to in-memory repositories when the
// database is absent or unreachable.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	notify, err := buildNotifyQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	uploadsHandler, err := buildUploads(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:         cfg,
		DB:             sqlDB,
		Store:          store,
		Notify:         notify,
		Hub:            events.NewHub(cfg.CORSAllowOrigin),
		UploadsHandler: uploadsHandler,
	}

	if err := buildEvents(app); err != nil {
		return nil, err
	}
	if err := buildServices(app); err != nil {
		app.Close()
		return nil, err
	}

	app.Health = buildHealth(app)
	app.Router = server.NewRouter(server.RouterDeps{
		Config:             app.Config,
		DocumentHandler:    app.DocumentsHandler,
		ShareHandler:       app.SharesHandler,
		AuditHandler:       app.AuditHandler,
		CertificateHandler: app.CertificatesHandler,
		UserHandler:        app.UsersHandler,
		UploadsHandler:     app.UploadsHandler,
		GoogleAuth:         app.GoogleAuth,
		IsAdmin:            app.UsersService.IsAdmin,
		Health:             app.Health,
	})

	return app, nil
}

// Close stops the event relay and releases the Redis connection.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.stopBroker != nil {
		a.stopBroker()
	}
	if a.Broker != nil {
		if err := a.Broker.Close(); err != nil {
			telemetry.Warn("bootstrap.redis.close_failed", telemetry.Err(nil, err))
		}
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Open(ctx, cfg.DatabaseURL, db.RuntimeProfile(db.ProfileAPI))
	if err != nil {
		if cfg.IsDevLike() {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		store, err := s3store.New(ctx, region(cfg), cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildNotifyQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.NotifyQueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, region(cfg), cfg.NotifyQueueURL)
}

// buildUploads enables presigned uploads only when documents live in S3.
func buildUploads(ctx context.Context, cfg config.Config) (*uploads.Handler, error) {
	if cfg.ObjectStoreType != "s3" || strings.TrimSpace(cfg.S3Bucket) == "" {
		return nil, nil
	}
	return uploads.NewHandler(ctx, region(cfg), cfg.S3Bucket, cfg.S3Prefix, maxUploadBytes(cfg))
}

// buildEvents fans events out through Redis when REDIS_URL is set so every
// API instance sees them; otherwise the in-process hub is the publisher.
func buildEvents(app *App) error {
	app.Events = app.Hub
	if strings.TrimSpace(app.Config.RedisURL) == "" {
		return nil
	}
	client, err := events.NewRedisClient(app.Config.RedisURL)
	if err != nil {
		return err
	}
	broker := events.NewRedisBroker(client, app.Hub, events.DefaultChannel)
	runCtx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := broker.Run(runCtx); err != nil {
			telemetry.Error("bootstrap.redis.relay_stopped", telemetry.Err(nil, err))
		}
	}()
	app.Redis = client
	app.Broker = broker
	app.Events = broker
	app.stopBroker = cancel
	return nil
}

func buildHealth(app *App) *health.Service {
	svc := health.NewService()
	if app.DB != nil {
		svc.Register("database", app.DB.PingContext)
	}
	if app.Redis != nil {
		svc.Register("redis", func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		})
	}
	return svc
}

func buildServices(app *App) error {
	var (
		docRepo   documents.DocumentsRepo
		shareRepo shares.Repo
		userRepo  users.Repo
		auditRepo audit.Repo
		certRepo  certificates.Repo
	)
	if app.DB != nil {
		docRepo = &documents.PGRepo{DB: app.DB}
		shareRepo = &shares.PGRepo{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
		auditRepo = &audit.PGRepo{DB: app.DB}
		certRepo = &certificates.PGRepo{DB: app.DB}
	} else {
		docRepo = documents.NewMemoryRepo()
		shareRepo = shares.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
		auditRepo = audit.NewMemoryRepo()
		certRepo = certificates.NewMemoryRepo()
	}

	userSvc := users.NewService(userRepo, app.Config.AdminEmails)
	auditSvc := audit.NewService(auditRepo)
	certSvc := certificates.NewService(app.Store, certRepo)
	docSvc := &documents.Service{
		Store:           app.Store,
		Repo:            docRepo,
		StorageProvider: app.Config.ObjectStoreType,
		Audit:           auditSvc,
		MaxUploadBytes:  maxUploadBytes(app.Config),
	}
	shareSvc := &shares.Service{
		Repo:   shareRepo,
		Docs:   docSvc,
		Users:  userSvc,
		Certs:  certSvc,
		Audit:  auditSvc,
		Events: app.Events,
		Notify: app.Notify,
	}
	// Documents visible to participants are resolved through the share roster.
	docSvc.Access = shareSvc

	app.UsersService = userSvc
	app.AuditService = auditSvc
	app.CertificatesService = certSvc
	app.DocumentsService = docSvc
	app.SharesService = shareSvc
	app.DocumentsHandler = documents.NewHandler(docSvc)
	app.SharesHandler = shares.NewHandler(shareSvc, app.Hub)
	app.AuditHandler = audit.NewHandler(auditSvc, docSvc, documents.WriteError)
	app.CertificatesHandler = certificates.NewHandler(certSvc)
	app.UsersHandler = users.NewHandler(userSvc)
	app.GoogleAuth = googleauth.NewGoogleService(
		app.Config.GoogleClientID,
		app.Config.GoogleClientSecret,
		app.Config.GoogleRedirectURL,
		app.Config.UIRedirectURL,
		userSvc,
	)

	if app.DocumentsHandler == nil || app.SharesHandler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}

func region(cfg config.Config) string {
	if r := strings.TrimSpace(cfg.AWSRegion); r != "" {
		return r
	}
	return defaultRegion
}

func maxUploadBytes(cfg config.Config) int64 {
	if cfg.MaxUploadMB <= 0 {
		return 0
	}
	return int64(cfg.MaxUploadMB) << 20
}
