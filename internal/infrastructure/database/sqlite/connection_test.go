package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/defectkit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/defectkit/pkg/errors"
)

func TestOpen_FileDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "energies.db")

	conn, err := Open(ctx, Config{Path: path, BusyTimeout: time.Second}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	assert.Equal(t, path, conn.Path())
	assert.NoError(t, conn.HealthCheck(ctx))

	v, err := conn.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	var mode string
	require.NoError(t, conn.DB().QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "energies.db")

	conn, err := Open(ctx, Config{Path: path}, nil)
	require.NoError(t, err)
	_, err = conn.DB().ExecContext(ctx,
		`INSERT INTO composition_energies (formula, energy, source, updated_at) VALUES ('Mg', -2, '', 0)`)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	conn, err = Open(ctx, Config{Path: path}, nil)
	require.NoError(t, err)
	defer conn.Close()
	var n int
	require.NoError(t, conn.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM composition_energies`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestOpen_Memory(t *testing.T) {
	conn, err := Open(context.Background(), Config{Path: MemoryPath}, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.NotNil(t, conn.Logger())
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), Config{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestOpen_UnwritableDirectory(t *testing.T) {
	_, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "missing", "x.db")}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeStoreUnavailable))
}

func TestClose_Idempotent(t *testing.T) {
	conn, err := Open(context.Background(), Config{Path: MemoryPath}, nil)
	require.NoError(t, err)
	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
}

func TestPragmas(t *testing.T) {
	assert.Equal(t, []string{"PRAGMA foreign_keys = ON"}, pragmas(Config{Path: MemoryPath}))
	assert.Equal(t, []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 2500",
		"PRAGMA journal_mode = WAL",
	}, pragmas(Config{Path: "x.db", BusyTimeout: 2500 * time.Millisecond}))
}
