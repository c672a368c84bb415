package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"repairhub/internal/adapter/api"
	"repairhub/internal/adapter/api/handler"
	apimiddleware "repairhub/internal/adapter/api/middleware"
	"repairhub/internal/adapter/api/router"
	"repairhub/internal/adapter/repository"
	domainrepo "repairhub/internal/domain/repository"
	"repairhub/internal/infrastructure/auth"
	"repairhub/internal/infrastructure/database"
	"repairhub/internal/infrastructure/firebase"
	"repairhub/internal/infrastructure/notification"
	"repairhub/internal/infrastructure/ratelimit"
	"repairhub/internal/infrastructure/websocket"
	"repairhub/internal/usecase"
	"repairhub/pkg/config"
	"repairhub/pkg/logger"
)

const (
	shutdownTimeout = 15 * time.Second
	devTokenTTL     = 30 * 24 * time.Hour
)

type stores struct {
	chats domainrepo.ChatRepository
	users domainrepo.UserRepository
	close func(ctx context.Context) error
}

func openStores(ctx context.Context, cfg *config.Config, app *firebase.App) (*stores, error) {
	switch cfg.StoreBackend {
	case config.StoreFirestore:
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info("Using Firestore store for project %s", cfg.FirebaseProject)
		return &stores{
			chats: repository.NewFirestoreChatRepository(client),
			users: repository.NewFirestoreUserRepository(client),
			close: func(context.Context) error { return client.Close() },
		}, nil

	case config.StoreMongo:
		client, err := database.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := client.EnsureIndexes(ctx); err != nil {
			client.Close(ctx)
			return nil, err
		}
		logger.Info("Using MongoDB store, database %s", cfg.MongoDatabase)
		return &stores{
			chats: repository.NewMongoChatRepository(client.Chats()),
			users: repository.NewMongoUserRepository(client.Users()),
			close: client.Close,
		}, nil

	default:
		logger.Warn("Using in-memory store; data is lost on restart")
		return &stores{
			chats: repository.NewMemoryChatRepository(),
			users: repository.NewMemoryUserRepository(),
			close: func(context.Context) error { return nil },
		}, nil
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var app *firebase.App
	if cfg.NeedsFirebase() {
		app, err = firebase.NewApp(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}
	}

	st, err := openStores(ctx, cfg, app)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	var verifier auth.TokenVerifier
	var jwtManager *auth.JWTManager
	if cfg.AuthProvider == config.AuthFirebase {
		authClient, err := app.Auth(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase Auth: %v", err)
		}
		verifier = authClient
	} else {
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, devTokenTTL)
		verifier = jwtManager
	}

	var sender notification.Sender = notification.LogSender{}
	if cfg.PushEnabled {
		messagingClient, err := app.Messaging(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase Messaging: %v", err)
		}
		sender = notification.NewFCMSender(messagingClient)
	}
	dispatcher := notification.NewDispatcher(st.users, sender, cfg.PushTimeout)

	limiter := ratelimit.NewRateLimiter(ratelimit.DefaultLimits(cfg.MessageRatePerMinute, cfg.MessageRateBurst))

	chatUseCase := usecase.NewChatUseCase(st.chats, st.users, dispatcher, limiter)
	userUseCase := usecase.NewUserUseCase(st.users)

	gateway := websocket.NewGateway(websocket.NewManager(), chatUseCase)

	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	authMiddleware := apimiddleware.NewAuthMiddleware(verifier)
	router.Setup(e, router.Handlers{
		Chat:      handler.NewChatHandler(chatUseCase, gateway),
		User:      handler.NewUserHandler(userUseCase),
		WebSocket: handler.NewWebSocketHandler(gateway, authMiddleware),
		Health:    handler.NewHealthHandler(gateway.Manager()),
	}, authMiddleware, apimiddleware.NewRateLimitMiddleware(limiter))

	if jwtManager != nil {
		router.SetupDevRouter(e, cfg.Environment, handler.NewDevHandler(jwtManager, st.users))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server on port %s...", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		limiter.Run(gctx, time.Minute, 10*time.Minute)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		errs = append(errs, e.Shutdown(shutdownCtx))
		errs = append(errs, gateway.Shutdown(shutdownCtx))
		dispatcher.Wait()
		errs = append(errs, st.close(shutdownCtx))
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error: %v", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
