package businesses

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
	"github.com/acari-app/acari-backend/pkg/logger"
)

func newTestService(t *testing.T) *service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{NowFunc: func() time.Time { return time.Now().UTC() }})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(`
CREATE TABLE businesses (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  name TEXT NOT NULL,
  slug TEXT NOT NULL,
  industry TEXT,
  description TEXT,
  website TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	require.NoError(t, conn.Exec(`CREATE UNIQUE INDEX ux_businesses_slug ON businesses(slug);`).Error)

	svc, err := NewService(ServiceParams{Repo: NewRepository(conn), Logger: logger.Nop()})
	require.NoError(t, err)
	return svc.(*service)
}

func TestCreateSuffixesCollidingDerivedSlug(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, uuid.New(), CreateInput{Name: "Acme Bakery"})
	require.NoError(t, err)
	assert.Equal(t, "acme-bakery", first.Slug)

	second, err := svc.Create(ctx, uuid.New(), CreateInput{Name: "ACME bakery"})
	require.NoError(t, err)
	assert.Regexp(t, `^acme-bakery-[a-z0-9]{6}$`, second.Slug)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCreateExplicitSlugConflict(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, uuid.New(), CreateInput{Name: "Acme", Slug: "acme"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, uuid.New(), CreateInput{Name: "Other", Slug: "acme"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestCreateGivesUpAfterRepeatedCollisions(t *testing.T) {
	svc := newTestService(t)
	svc.withSuffix = func(base string) (string, error) { return base + "-fixed1", nil }
	ctx := context.Background()

	_, err := svc.Create(ctx, uuid.New(), CreateInput{Name: "Shop"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, uuid.New(), CreateInput{Name: "Shop"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, uuid.New(), CreateInput{Name: "Shop"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestOwnerScoping(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()
	stranger := uuid.New()

	created, err := svc.Create(ctx, owner, CreateInput{Name: "Fern Florist", Industry: strPtr(" Retail ")})
	require.NoError(t, err)
	assert.Equal(t, "Retail", *created.Industry)

	_, err = svc.Get(ctx, stranger, created.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.True(t, pkgerrors.IsCode(svc.Delete(ctx, stranger, created.ID), pkgerrors.CodeNotFound))

	list, err := svc.List(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	empty, err := svc.List(ctx, stranger)
	require.NoError(t, err)
	assert.Empty(t, empty)

	updated, err := svc.Update(ctx, owner, created.ID, UpdateInput{Name: strPtr("Fern & Co"), Website: strPtr("")})
	require.NoError(t, err)
	assert.Equal(t, "Fern & Co", updated.Name)
	assert.Equal(t, "fern-florist", updated.Slug)
	assert.Nil(t, updated.Website)

	require.NoError(t, svc.Delete(ctx, owner, created.ID))
	_, err = svc.Get(ctx, owner, created.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRequiresUser(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Create(context.Background(), uuid.Nil, CreateInput{Name: "x"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func strPtr(v string) *string { return &v }
