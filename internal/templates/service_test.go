package templates

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
	"github.com/acari-app/acari-backend/pkg/logger"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{NowFunc: func() time.Time { return time.Now().UTC() }})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(`
CREATE TABLE templates (
  id TEXT PRIMARY KEY,
  slug TEXT NOT NULL,
  title TEXT NOT NULL,
  category TEXT NOT NULL DEFAULT 'general',
  description TEXT,
  price TEXT NOT NULL DEFAULT '0',
  file_url TEXT,
  published BOOLEAN NOT NULL DEFAULT false,
  created_by TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	require.NoError(t, conn.Exec(`CREATE UNIQUE INDEX ux_templates_slug ON templates(slug);`).Error)

	svc, err := NewService(ServiceParams{Repo: NewRepository(conn), Logger: logger.Nop()})
	require.NoError(t, err)
	return svc
}

func price(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestCreateDerivesSlugAndRejectsDuplicates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	actor := uuid.New()

	tpl, err := svc.Create(ctx, actor, CreateInput{Title: "Bakery Business Plan", Category: " Plans ", Price: price("19.999"), Published: true})
	require.NoError(t, err)
	assert.Equal(t, "bakery-business-plan", tpl.Slug)
	assert.Equal(t, "plans", tpl.Category)
	assert.Equal(t, "20", tpl.Price.String())

	_, err = svc.Create(ctx, actor, CreateInput{Title: "Bakery business plan!"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = svc.Create(ctx, actor, CreateInput{Title: "Menu", Slug: "Not A Slug"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Create(ctx, actor, CreateInput{Title: "Menu", Price: price("-1")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListOnlyPublishedWithPageMeta(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, uuid.Nil, CreateInput{Title: fmt.Sprintf("Menu %d", i), Category: "menus", Published: true})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, uuid.Nil, CreateInput{Title: "Draft menu", Category: "menus"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, uuid.Nil, CreateInput{Title: "Invoice", Category: "finance", Published: true})
	require.NoError(t, err)

	res, err := svc.List(ctx, ListParams{Page: 2, PageSize: 2, Category: "Menus"})
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
	assert.EqualValues(t, 5, res.Meta.Total)
	assert.Equal(t, 3, res.Meta.TotalPages)
	assert.True(t, res.Meta.HasNext)
	assert.True(t, res.Meta.HasPrev)

	res, err = svc.List(ctx, ListParams{Query: "INVOICE"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "invoice", res.Items[0].Slug)
	assert.Equal(t, 12, res.Meta.PageSize)

	res, err = svc.List(ctx, ListParams{IncludeDrafts: true, PageSize: 50})
	require.NoError(t, err)
	assert.EqualValues(t, 7, res.Meta.Total)
}

func TestGetPublishedHidesDrafts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	draft, err := svc.Create(ctx, uuid.Nil, CreateInput{Title: "Secret"})
	require.NoError(t, err)

	_, err = svc.GetPublished(ctx, "secret")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	published := true
	_, err = svc.Update(ctx, draft.ID, UpdateInput{Published: &published})
	require.NoError(t, err)

	got, err := svc.GetPublished(ctx, "secret")
	require.NoError(t, err)
	assert.Equal(t, draft.ID, got.ID)
}

func TestUpdateAndDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, uuid.Nil, CreateInput{Title: "Alpha"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, uuid.Nil, CreateInput{Title: "Beta"})
	require.NoError(t, err)

	taken := "beta"
	_, err = svc.Update(ctx, a.ID, UpdateInput{Slug: &taken})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	title := "Alpha v2"
	updated, err := svc.Update(ctx, a.ID, UpdateInput{Title: &title, Price: price("5.5")})
	require.NoError(t, err)
	assert.Equal(t, "Alpha v2", updated.Title)
	assert.Equal(t, "alpha", updated.Slug)
	assert.Equal(t, "5.5", updated.Price.String())

	require.NoError(t, svc.Delete(ctx, a.ID))
	assert.True(t, pkgerrors.IsCode(svc.Delete(ctx, a.ID), pkgerrors.CodeNotFound))
	_, err = svc.Update(ctx, a.ID, UpdateInput{Title: &title})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestImportReportsRowErrors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, uuid.Nil, CreateInput{Title: "Existing"})
	require.NoError(t, err)

	csvBody := strings.Join([]string{
		"Published,TITLE,price,category,Slug",
		"true,Cafe Menu,9.99,menus,",
		"no,,1,menus,",
		"yes,Flyer,abc,marketing,",
		"false,Flyer,-2,marketing,",
		"true,Poster,0,marketing,cafe-menu",
		"maybe,Card,1,marketing,",
		"true,Existing,1,general,",
		"1,Price List,$4,finance,price-list",
	}, "\n")

	res, err := svc.Import(ctx, uuid.New(), strings.NewReader(csvBody))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 6, res.Skipped)
	require.Len(t, res.Errors, 6)

	lines := make([]int, 0, len(res.Errors))
	for _, e := range res.Errors {
		lines = append(lines, e.Line)
	}
	assert.Equal(t, []int{3, 4, 5, 6, 7, 8}, lines)
	assert.Equal(t, "title is required", res.Errors[0].Message)
	assert.Equal(t, `invalid price "abc"`, res.Errors[1].Message)
	assert.Equal(t, "price must be zero or greater", res.Errors[2].Message)
	assert.Contains(t, res.Errors[3].Message, "duplicate slug")
	assert.Equal(t, `invalid published value "maybe"`, res.Errors[4].Message)
	assert.Equal(t, `slug "existing" already exists`, res.Errors[5].Message)

	got, err := svc.GetPublished(ctx, "cafe-menu")
	require.NoError(t, err)
	assert.Equal(t, "9.99", got.Price.String())
	assert.Equal(t, "menus", got.Category)
}

func TestImportRequiresTitleHeader(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Import(context.Background(), uuid.Nil, strings.NewReader("name,price\nx,1\n"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Import(context.Background(), uuid.Nil, strings.NewReader(""))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
