package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpExtractsPgxFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_blog_posts_slug", TableName: "blog_posts", Message: "duplicate key"}
	err := Wrap(CodeConflict, fmt.Errorf("insert: %w", pgErr), "slug taken")

	dump := Dump(err)
	assert.Equal(t, CodeConflict, dump.Code)
	assert.Len(t, dump.Chain, 3)
	require.NotNil(t, dump.Postgres)
	assert.Equal(t, "23505", dump.Postgres.Code)
	assert.Equal(t, "ux_blog_posts_slug", dump.Postgres.Constraint)

	fields := dump.Fields()
	assert.Equal(t, "blog_posts", fields["pg_table"])
}

func TestDumpExtractsLibPQFields(t *testing.T) {
	err := fmt.Errorf("exec: %w", &pq.Error{Code: "23503", Constraint: "fk_assets_user", Table: "assets"})

	dump := Dump(err)
	require.NotNil(t, dump.Postgres)
	assert.Equal(t, "23503", dump.Postgres.Code)
	assert.Equal(t, "assets", dump.Postgres.Table)
	assert.Empty(t, dump.Code)
}

func TestDumpFieldsOmitPostgresWhenAbsent(t *testing.T) {
	fields := Dump(New(CodeNotFound, "missing")).Fields()
	assert.NotContains(t, fields, "pg_code")
	assert.Equal(t, CodeNotFound, fields["error_code"])
	assert.Equal(t, ErrorDump{}, Dump(nil))
}
