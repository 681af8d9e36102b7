package internal

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfig_Validate_Requires_One_Backend(t *testing.T) {
	req := require.New(t)

	req.Error(Config{}.Validate())
	req.NoError(Config{BadgerFilepath: "/tmp/badger"}.Validate())
	req.NoError(Config{ObjectStoreEndpoint: "http://localhost:9000"}.Validate())
	req.Error(Config{BadgerFilepath: "/tmp/badger", ObjectStoreEndpoint: "http://localhost:9000"}.Validate())
}

func TestConfig_Address(t *testing.T) {
	req := require.New(t)
	cfg := Config{Host: "0.0.0.0", Port: 9090}
	req.Equal("0.0.0.0:9090", cfg.Address())
}

func TestNewLogger_Levels(t *testing.T) {
	req := require.New(t)

	req.True(NewLogger("DEBUG").Enabled(nil, slog.LevelDebug))
	req.False(NewLogger("ERROR").Enabled(nil, slog.LevelWarn))
	req.True(NewLogger("nonsense").Enabled(nil, slog.LevelInfo))
}
