package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDotEnv(t *testing.T) {
	req := require.New(t)
	clearEnv(t)
	// t.Setenv registers cleanup; unset so godotenv is allowed to fill it.
	req.NoError(os.Unsetenv("DISCORD_BOT_TOKEN"))

	path := filepath.Join(t.TempDir(), ".env")
	req.NoError(os.WriteFile(path, []byte("DISCORD_BOT_TOKEN=from-dotenv\n"), 0o600))

	loaded, err := LoadDotEnv(path)
	req.NoError(err)
	req.True(loaded)

	env, err := ReadEnv()
	req.NoError(err)
	req.Equal("from-dotenv", env.DiscordToken)
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	loaded, err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
	require.False(t, loaded)
}

func TestEnvDoesNotOverrideWithBlanks(t *testing.T) {
	req := require.New(t)
	cfg := Default()
	cfg.Gateway.Token = "file-token"

	Env{DiscordToken: "  "}.apply(cfg)
	req.Equal("file-token", cfg.Gateway.Token)

	Env{DiscordToken: "env-token", LogLevel: "WARN"}.apply(cfg)
	req.Equal("env-token", cfg.Gateway.Token)
	req.Equal("warn", cfg.Logging.Level)
}
