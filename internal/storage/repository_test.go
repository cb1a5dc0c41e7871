package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hisaab/internal/core"
	"hisaab/internal/storage"
	"hisaab/internal/storage/storagetest"
)

func newSQLite(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "hisaab.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return newSQLite(t) })
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hisaab.db")
	v1, err := storage.RunMigrations(path)
	require.NoError(t, err)
	v2, err := storage.RunMigrations(path)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, uint(1), v1)
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hisaab.db")
	ctx := context.Background()

	repo, err := storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	saved, err := repo.Save(ctx, core.Hisaab{Title: "Keep", Label: "x", OwnerID: "u1"})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()
	got, err := repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Keep", got.Title)
	assert.NotNil(t, got.Content)
	assert.NoError(t, repo.Ping(ctx))
}

func TestFilterMatches(t *testing.T) {
	f := storage.Filter{OwnerID: "u1", TitleContains: "rent"}
	assert.True(t, f.Matches(core.Hisaab{OwnerID: "u1", Title: "March RENT"}))
	assert.False(t, f.Matches(core.Hisaab{OwnerID: "u2", Title: "March rent"}))
	assert.False(t, f.Matches(core.Hisaab{OwnerID: "u1", Title: "Food"}))
	assert.True(t, storage.ValidSort(""))
	assert.False(t, storage.ValidSort("price"))
}
