package main

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"testing/fstest"

	"fundamental-analyzer/internal/config"
	"fundamental-analyzer/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations(migrationsFS)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(migrations), 2)

	assert.Equal(t, int64(1), migrations[0].Version)
	assert.Equal(t, "create_sector_predictions", migrations[0].Name)
	assert.Equal(t, int64(2), migrations[1].Version)
	assert.Contains(t, migrations[0].UpSQL, "PRIMARY KEY (sector, company)")
	assert.NotEmpty(t, migrations[0].DownSQL)
}

func TestSectorCheckMatchesSupportedSectors(t *testing.T) {
	migrations, err := loadMigrations(migrationsFS)
	require.NoError(t, err)

	inList := regexp.MustCompile(`sector IN \(([^)]*)\)`)
	quoted := regexp.MustCompile(`'([a-z_]+)'`)

	var allowed []string
	for _, m := range migrations {
		match := inList.FindStringSubmatch(m.UpSQL)
		if match == nil {
			continue
		}
		for _, q := range quoted.FindAllStringSubmatch(match[1], -1) {
			allowed = append(allowed, q[1])
		}
	}
	require.NotEmpty(t, allowed, "expected a sector CHECK constraint")

	want := make([]string, 0, len(domain.SupportedSectors))
	for _, s := range domain.SupportedSectors {
		want = append(want, s.String())
	}
	assert.ElementsMatch(t, want, allowed)
}

func TestLoadMigrationsRejectsBadSets(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"empty", fstest.MapFS{}},
		{"bad filename", fstest.MapFS{
			"migrations/init.up.sql": {Data: []byte("SELECT 1")},
		}},
		{"missing down", fstest.MapFS{
			"migrations/0001_init.up.sql": {Data: []byte("SELECT 1")},
		}},
		{"empty file", fstest.MapFS{
			"migrations/0001_init.up.sql":   {Data: []byte("  ")},
			"migrations/0001_init.down.sql": {Data: []byte("SELECT 1")},
		}},
		{"conflicting names", fstest.MapFS{
			"migrations/0001_init.up.sql":    {Data: []byte("SELECT 1")},
			"migrations/0001_other.down.sql": {Data: []byte("SELECT 1")},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadMigrations(tt.fsys)
			assert.Error(t, err)
		})
	}
}

func stubDeps(t *testing.T, connect func(context.Context, string) (conn, func(), error)) {
	t.Helper()
	origEnv, origCfg, origConnect := loadEnvFunc, loadConfigFunc, connectFunc
	t.Cleanup(func() { loadEnvFunc, loadConfigFunc, connectFunc = origEnv, origCfg, origConnect })

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() (*config.Config, error) {
		return &config.Config{DatabaseURL: "postgres://x", LogLevel: "error"}, nil
	}
	connectFunc = connect
}

func execute(args ...string) error {
	root := newRootCmd(context.Background())
	root.SetArgs(args)
	return root.Execute()
}

func TestCommandArgumentErrors(t *testing.T) {
	connected := false
	stubDeps(t, func(context.Context, string) (conn, func(), error) {
		connected = true
		return nil, nil, errors.New("should not connect")
	})

	assert.Error(t, execute("sideways"))
	err := execute("down", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid down steps")
	assert.Error(t, execute("up", "extra"))
	assert.False(t, connected, "argument errors must not open a connection")
}

func TestCommandStopsOnConnectError(t *testing.T) {
	var gotDSN string
	stubDeps(t, func(ctx context.Context, dsn string) (conn, func(), error) {
		gotDSN = dsn
		return nil, nil, errors.New("refused")
	})

	err := execute("up")
	require.Error(t, err)
	assert.Equal(t, "postgres://x", gotDSN)
}

func TestVersionWithNoMigrationsApplied(t *testing.T) {
	fc := &fakeConn{row: fakeRow{err: pgx.ErrNoRows}}
	closed := false
	stubDeps(t, func(context.Context, string) (conn, func(), error) {
		return fc, func() { closed = true }, nil
	})

	require.NoError(t, execute("version"))
	assert.True(t, closed)
	require.Len(t, fc.execs, 1)
	assert.True(t, strings.Contains(fc.execs[0], "schema_migrations"))
}

func TestCurrentVersion(t *testing.T) {
	fc := &fakeConn{row: fakeRow{version: 2, name: "add_sector_predictions_checks"}}
	version, name, err := currentVersion(context.Background(), fc)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
	assert.Equal(t, "add_sector_predictions_checks", name)

	fc.row = fakeRow{err: errors.New("timeout")}
	_, _, err = currentVersion(context.Background(), fc)
	assert.Error(t, err)
}

func TestApplyDownRejectsNonPositiveSteps(t *testing.T) {
	_, err := applyDown(context.Background(), &fakeConn{}, nil, 0)
	assert.Error(t, err)
}

type fakeConn struct {
	execs []string
	row   fakeRow
}

func (f *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag(""), nil
}

func (f *fakeConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return f.row
}

func (f *fakeConn) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("not implemented")
}

type fakeRow struct {
	version int64
	name    string
	err     error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.version
	*dest[1].(*string) = r.name
	return nil
}
