package testutils

import (
	"context"
	"testing"

	"github.com/nfrund/evmarket/internal/auth"
	"github.com/nfrund/evmarket/internal/config"
	"github.com/nfrund/evmarket/internal/database"
	"github.com/nfrund/evmarket/internal/domain"
)

// NewTestDB opens a migrated database for cfg and closes it when the test ends.
func NewTestDB(t *testing.T, cfg config.Provider) *database.Database {
	t.Helper()

	db, err := database.NewDB(context.Background(), cfg, database.WithMaxOpenConns(1))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// NewTestJWT builds the token service described by cfg.
func NewTestJWT(cfg config.Provider) *auth.JWT {
	return auth.NewJWT(cfg.GetJWTSecret(), cfg.GetJWTIssuer(), cfg.GetJWTTTL())
}

// MemberToken mints a member token for userID.
func MemberToken(t *testing.T, j *auth.JWT, userID uint) string {
	t.Helper()

	token, err := j.GenerateToken(userID, domain.RoleMember)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}
