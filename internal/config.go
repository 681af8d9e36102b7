package internal

import (
	"fmt"
	"time"
)

// Config is read from the environment. Exactly one object-store backend
// must be configured: a Badger path for single-binary deployments or an
// S3 endpoint for everything else.
type Config struct {
	Host     string `env:"HOST,default=localhost"`
	Port     int    `env:"PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`

	// Empty means the in-memory user repository, for development runs.
	DatabaseURL string `env:"DATABASE_URL"`

	BadgerFilepath string `env:"BADGER_FILEPATH"`

	ObjectStoreEndpoint  string `env:"OBJECT_STORE_ENDPOINT"`
	ObjectStoreAccessKey string `env:"OBJECT_STORE_ACCESS_KEY"`
	ObjectStoreSecretKey string `env:"OBJECT_STORE_SECRET_KEY"`
	ObjectStoreSecure    bool   `env:"OBJECT_STORE_SECURE,default=false"`

	AvatarBucket string `env:"AVATAR_BUCKET,default=kolloquy-user-avatars"`
	ChatsBucket  string `env:"CHATS_BUCKET,default=kolloquy-chats"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// UseBadger reports whether the local backend was selected.
func (c Config) UseBadger() bool {
	return c.BadgerFilepath != ""
}

func (c Config) Validate() error {
	if c.BadgerFilepath == "" && c.ObjectStoreEndpoint == "" {
		return fmt.Errorf("either BADGER_FILEPATH or OBJECT_STORE_ENDPOINT must be set")
	}
	if c.BadgerFilepath != "" && c.ObjectStoreEndpoint != "" {
		return fmt.Errorf("BADGER_FILEPATH and OBJECT_STORE_ENDPOINT are mutually exclusive")
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
