package testutils

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/nfrund/evmarket/internal/config"
	"github.com/nfrund/evmarket/internal/logging"
)

// ConfigForTests loads the .env.test file and returns a valid config.
// Every call gets its own in-memory SQLite database.
func ConfigForTests(t *testing.T) *config.Config {
	t.Helper()

	// 1. Find project root by looking for go.mod to reliably locate .env.test
	path, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(path, "go.mod")); err == nil {
			break
		}
		if path == filepath.Dir(path) {
			t.Fatalf("could not find project root with go.mod")
		}
		path = filepath.Dir(path)
	}

	// 2. Manually read the .env.test file.
	env, err := godotenv.Read(filepath.Join(path, ".env.test"))
	if err != nil {
		t.Fatalf("failed to load .env.test file: %v", err)
	}
	env["DB_DSN"] = fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())

	// 3. Use t.Setenv to set the environment variables for this test.
	for key, value := range env {
		t.Setenv(key, value)
	}

	// 4. Now that the environment is set, create the config.
	cfg, err := config.FromEnv()
	if err != nil {
		t.Fatalf("invalid test configuration: %v", err)
	}
	logging.New(cfg.GetLogFormat(), cfg.GetLogLevel())
	return cfg
}
