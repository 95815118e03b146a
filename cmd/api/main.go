package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/anjiri1684/social_chat/configs"
	"github.com/anjiri1684/social_chat/database"
	"github.com/anjiri1684/social_chat/handlers"
	"github.com/anjiri1684/social_chat/jobs"
	"github.com/anjiri1684/social_chat/logger"
	"github.com/anjiri1684/social_chat/notifications"
	"github.com/anjiri1684/social_chat/routes"
	"github.com/anjiri1684/social_chat/services"
	"github.com/anjiri1684/social_chat/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

func main() {
	settings := config.Load()

	zlog, err := logger.New(settings.LogLevel, settings.LogDevelopment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if settings.JWTSecret == "" {
		zlog.Fatal("JWT_SECRET must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(settings.UsersDriver, settings.DatabaseURL)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.String("driver", settings.UsersDriver), zap.Error(err))
	}
	zlog.Info("database connection successfully opened", zap.String("driver", settings.UsersDriver))

	var store database.MessageStore
	var closeStore func()
	switch settings.DBDriver {
	case database.DriverMongo:
		mdb, err := database.OpenMongo(ctx, settings.MongoURI, settings.MongoDatabase)
		if err != nil {
			zlog.Fatal("failed to connect to mongo", zap.Error(err))
		}
		mongoStore := database.NewMongoMessageStore(mdb, zlog)
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			zlog.Fatal("failed to create mongo indexes", zap.Error(err))
		}
		store = mongoStore
		closeStore = func() { _ = mdb.Client().Disconnect(context.Background()) }
		zlog.Info("message store ready", zap.String("backend", "mongo"), zap.String("database", settings.MongoDatabase))
	default:
		store = database.NewGormMessageStore(db, zlog)
		closeStore = func() {}
		zlog.Info("message store ready", zap.String("backend", settings.DBDriver))
	}
	if err := database.Migrate(db, settings.DBDriver != database.DriverMongo, zlog); err != nil {
		zlog.Fatal("failed to migrate database", zap.Error(err))
	}

	var presence websocket.Registry = websocket.NewMemoryRegistry()
	var nc *nats.Conn
	if settings.NATSURL != "" {
		nc, err = nats.Connect(settings.NATSURL, nats.Name(settings.AppName))
		if err != nil {
			zlog.Fatal("failed to connect to nats", zap.Error(err))
		}
		kv, err := websocket.OpenPresenceBucket(nc)
		if err != nil {
			zlog.Fatal("failed to open presence bucket", zap.Error(err))
		}
		instance := instanceName()
		presence = websocket.NewNATSRegistry(presence, kv, instance, zlog)
		zlog.Info("presence mirrored to nats", zap.String("bucket", websocket.PresenceBucket), zap.String("instance", instance))
	}

	relay := websocket.NewRelay(store, presence, zlog, websocket.Options{
		HistoryLimit:  settings.HistoryLimit,
		OfflineFanout: settings.OfflineFanout,
	})
	directory := database.NewGormUserDirectory(db)
	conversations := services.NewConversationService(store, directory, zlog)

	var mailer notifications.Mailer
	if brevo := notifications.NewBrevoService(settings.BrevoAPIKey, settings.EmailSender, settings.EmailSenderName, zlog); brevo != nil {
		mailer = brevo
	}

	var digest *jobs.UnreadDigest
	if mailer != nil {
		digest = jobs.NewUnreadDigest(store, directory, mailer, settings.UnreadDigestAfter, zlog)
	}
	scheduler, err := jobs.NewScheduler(jobs.NewPresenceSweep(relay, zlog), digest, zlog)
	if err != nil {
		zlog.Fatal("failed to schedule jobs", zap.Error(err))
	}
	scheduler.Start()

	app := fiber.New(fiber.Config{
		Prefork:       false,
		AppName:       settings.AppName,
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler:  handlers.ErrorHandler(zlog),
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  settings.AllowOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "UTC",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.Register(app, routes.Handlers{
		AppName:   settings.AppName,
		JWTSecret: settings.JWTSecret,
		Presence:  presence,
		Auth:      handlers.NewAuthHandler(db, settings.JWTSecret, settings.TokenTTL, mailer, zlog),
		Messaging: handlers.NewMessagingHandler(ctx, conversations, relay, settings.JWTSecret, settings.RequireWSAuth, zlog),
		Users:     handlers.NewUserHandler(directory),
		Uploads:   handlers.NewUploadHandler(settings.CloudinaryURL, zlog),
	})

	go func() {
		<-ctx.Done()
		zlog.Info("shutting down")

		<-scheduler.Stop().Done()
		relay.Shutdown()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zlog.Warn("http shutdown", zap.Error(err))
		}
	}()

	zlog.Info("server is running", zap.String("port", settings.Port))
	if err := app.Listen(":" + settings.Port); err != nil {
		zlog.Error("server stopped", zap.Error(err))
	}

	if nc != nil {
		nc.Close()
	}
	closeStore()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	zlog.Info("shutdown complete")
}

func instanceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "relay"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
