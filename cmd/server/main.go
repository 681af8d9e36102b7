package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/ljpprojects/kolloquy/api"
	"github.com/ljpprojects/kolloquy/auth"
	"github.com/ljpprojects/kolloquy/internal"
	"github.com/ljpprojects/kolloquy/repositories"
	"github.com/ljpprojects/kolloquy/runtime"
	"github.com/ljpprojects/kolloquy/services"
	"github.com/ljpprojects/kolloquy/storage"
	"github.com/ljpprojects/kolloquy/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so that deferred cleanups always execute.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := internal.NewLogger(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Object store backend
	var chats, avatars storage.ObjectStore
	if config.UseBadger() {
		db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
			WithLoggingLevel(badger.WARNING))
		if err != nil {
			return fmt.Errorf("database opening failed: %w", err)
		}
		defer func() {
			log.Info("Closing BadgerDB...")
			_ = db.Close()
		}()
		chats = storage.NewBadgerStore(db, "chats")
		avatars = storage.NewBadgerStore(db, "avatars")
	} else {
		client, err := storage.NewS3Client(storage.S3Config{
			Endpoint:  config.ObjectStoreEndpoint,
			AccessKey: config.ObjectStoreAccessKey,
			SecretKey: config.ObjectStoreSecretKey,
			UseSSL:    config.ObjectStoreSecure,
		})
		if err != nil {
			return fmt.Errorf("object store dial failed: %w", err)
		}
		chatStore := storage.NewS3Store(client, config.ChatsBucket)
		avatarStore := storage.NewS3Store(client, config.AvatarBucket)
		for _, store := range []*storage.S3Store{chatStore, avatarStore} {
			if err := store.EnsureBucket(ctx); err != nil {
				return fmt.Errorf("bucket setup failed: %w", err)
			}
		}
		chats, avatars = chatStore, avatarStore
	}

	// 3. User repository
	var users repositories.IUserRepository
	if config.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, config.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database pool failed: %w", err)
		}
		defer pool.Close()
		users = repositories.NewUserRepository(pool, log)
	} else {
		log.Warn("DATABASE_URL not set, users are kept in memory")
		users = repositories.NewMemoryUserRepository()
	}

	// 4. Services, hub and handlers
	sessions := auth.NewSessionStore(log)
	chatService := services.NewChatService(chats, avatars, users, log)
	hub := runtime.NewHub(config.ConnectionBufferSize, log)
	live := ws.NewHandler(sessions, chatService, avatars, hub, log)
	router := api.NewRouter(api.NewHandler(users, chatService, sessions, avatars, log), live)

	// 5. HTTP server
	server := &http.Server{
		Addr:              config.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting server", "address", config.Address(), "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 6. Wait for stop or error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	log.Info("Program stopped cleanly")
	return nil
}
