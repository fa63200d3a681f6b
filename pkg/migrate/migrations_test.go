package migrate

import (
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := fs.Glob(embedded, "migrations/*_"+suffix+".sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one %s migration, got %v", suffix, matches)
	}
	b, err := fs.ReadFile(embedded, matches[0])
	if err != nil {
		t.Fatalf("read %s: %v", matches[0], err)
	}
	return string(b)
}

func TestPaymentFailureMigrationCarriesReminderColumns(t *testing.T) {
	sql := readMigration(t, "create_subscription_payment_failures")
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS subscription_payment_failures",
		"reminder_count integer NOT NULL DEFAULT 0",
		"last_reminder_sent_at timestamptz",
		"resolved boolean NOT NULL DEFAULT false",
		"REFERENCES user_subscriptions(id)",
		"DROP TABLE IF EXISTS subscription_payment_failures",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("payment failure migration missing %q", want)
		}
	}
}

func TestSubscriptionMigrationHasGraceEnd(t *testing.T) {
	sql := readMigration(t, "create_user_subscriptions")
	if !strings.Contains(sql, "grace_period_end timestamptz") {
		t.Fatalf("user_subscriptions must carry grace_period_end")
	}
}

func TestSlugTablesHaveUniqueIndexes(t *testing.T) {
	cases := map[string]string{
		"create_templates":             "ux_templates_slug",
		"create_blog_posts":            "ux_blog_posts_slug",
		"create_businesses_and_assets": "ux_businesses_slug",
		"create_users":                 "ux_user_roles_user_role",
	}
	for suffix, constraint := range cases {
		if !strings.Contains(readMigration(t, suffix), constraint) {
			t.Errorf("%s missing %s", suffix, constraint)
		}
	}
}

func TestEmbeddedMigrationsValidate(t *testing.T) {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	if err := ValidateFS(sub); err != nil {
		t.Fatalf("ValidateFS: %v", err)
	}
}

func TestValidateFSReportsEveryProblem(t *testing.T) {
	files := fstest.MapFS{
		"bad-name.sql":                  {Data: []byte(upMarker + "\n" + downMarker + "\n")},
		"20260301090000_a.sql":          {Data: []byte(upMarker + "\n" + downMarker + "\n")},
		"20260301090000_b.sql":          {Data: []byte(upMarker + "\n" + downMarker + "\n")},
		"20260301090100_reversed.sql":   {Data: []byte(downMarker + "\n" + upMarker + "\n")},
		"20260301090200_missing_up.sql": {Data: []byte(downMarker + "\n")},
		"README.md":                     {Data: []byte("ignored")},
	}
	err := ValidateFS(files)
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"bad-name.sql", "already used", "precedes", "missing"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %q", err, want)
		}
	}
}

func TestCreateSQLMigrationSlugsAndPinsVersion(t *testing.T) {
	orig := nowUTC
	nowUTC = func() time.Time { return time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC) }
	t.Cleanup(func() { nowUTC = orig })

	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add  Reminder-Index!")
	if err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if filepath.Base(path) != "20260402083000_add_reminder_index.sql" {
		t.Fatalf("unexpected path %s", path)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
	if _, err := CreateSQLMigration(dir, "add reminder index"); err == nil {
		t.Fatalf("expected collision on same version and slug")
	}
	if _, err := CreateSQLMigration(dir, "!!!"); err == nil {
		t.Fatalf("expected error for empty slug")
	}
}

func TestNewRequiresDB(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Fatalf("expected error without a database")
	}
}
