package users

import (
	"context"
	"fmt"
	"testing"

	"github.com/acari-app/acari-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupUsersTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{`
CREATE TABLE users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE profiles (
  user_id TEXT PRIMARY KEY,
  display_name TEXT NOT NULL,
  company_name TEXT,
  avatar_url TEXT,
  onboarding_completed INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE user_roles (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  role TEXT NOT NULL,
  created_at DATETIME,
  UNIQUE (user_id, role)
);`}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func TestCreateNormalizesEmailAndWritesProfile(t *testing.T) {
	db := setupUsersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	user, err := repo.Create(ctx, CreateUserDTO{
		Email:        "  Founder@Acari.App ",
		PasswordHash: "hash",
		FirstName:    "Ada",
		LastName:     "Lovelace",
	})
	require.NoError(t, err)
	assert.Equal(t, "founder@acari.app", user.Email)

	found, err := repo.FindByEmail(ctx, "FOUNDER@acari.app")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	profile, err := repo.FindProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", profile.DisplayName)
}

func TestRolesAndPrimaryRole(t *testing.T) {
	db := setupUsersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	ok, err := repo.HasRole(ctx, userID, enums.UserRoleAdmin)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.GrantRole(ctx, userID, enums.UserRoleAdmin))
	require.NoError(t, repo.GrantRole(ctx, userID, enums.UserRoleAdmin))
	require.NoError(t, repo.GrantRole(ctx, userID, enums.UserRoleEditor))

	ok, err = repo.HasRole(ctx, userID, enums.UserRoleAdmin)
	require.NoError(t, err)
	assert.True(t, ok)

	roles, err := repo.Roles(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []enums.UserRole{enums.UserRoleAdmin, enums.UserRoleEditor}, roles)
	assert.Equal(t, enums.UserRoleAdmin, PrimaryRole(roles))
	assert.Equal(t, enums.UserRoleUser, PrimaryRole([]enums.UserRole{enums.UserRoleEditor}))
}
