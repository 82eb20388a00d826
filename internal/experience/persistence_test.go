package experience

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchFor(envID string, n int) []Transition {
	out := make([]Transition, n)
	for i := range out {
		out[i] = createTestTransition(envID, i)
	}
	return out
}

func testPersistenceLayer(t *testing.T, layer PersistenceLayer) {
	ctx := context.Background()

	require.NoError(t, layer.Write(ctx, batchFor("a", 3)))
	require.NoError(t, layer.Write(ctx, batchFor("b", 2)))

	all, err := layer.Read(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	onlyA, err := layer.Read(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, onlyA, 3)
	assert.Equal(t, createTestTransition("a", 0), onlyA[0])

	limited, err := layer.Read(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	require.NoError(t, layer.Delete(ctx, "a"))
	remaining, err := layer.Read(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	for _, tr := range remaining {
		assert.Equal(t, "b", tr.EnvID)
	}

	stats := layer.Stats()
	assert.Equal(t, int64(5), stats.TotalWritten)
	assert.Equal(t, int64(3), stats.TotalDeleted)
	assert.Positive(t, stats.BytesWritten)
}

func TestFilePersistence(t *testing.T) {
	cfg := DefaultPersistenceConfig()
	cfg.Type = PersistenceTypeFile
	cfg.BaseDir = filepath.Join(t.TempDir(), "transitions")
	cfg.RotationInterval = 0

	layer, err := NewPersistenceLayer(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = layer.Close() })

	testPersistenceLayer(t, layer)
}

func TestFilePersistence_RotatesOnSize(t *testing.T) {
	cfg := DefaultPersistenceConfig()
	cfg.BaseDir = t.TempDir()
	cfg.RotationInterval = 0
	cfg.MaxFileSize = 1

	fp, err := NewFilePersistence(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer fp.Close()

	require.NoError(t, fp.Write(context.Background(), batchFor("a", 3)))
	files, err := fp.files()
	require.NoError(t, err)
	assert.Len(t, files, 3)

	got, err := fp.Read(context.Background(), "a", 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSQLitePersistence(t *testing.T) {
	cfg := DefaultPersistenceConfig()
	cfg.Type = PersistenceTypeSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "transitions.db")

	layer, err := NewPersistenceLayer(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = layer.Close() })

	testPersistenceLayer(t, layer)
}

func TestSQLitePersistence_DuplicateIDsIgnored(t *testing.T) {
	store := NewSQLitePersistence(filepath.Join(t.TempDir(), "dup.db"), zerolog.Nop())
	require.NoError(t, store.Init(context.Background()))
	defer store.Close()

	batch := batchFor("a", 2)
	require.NoError(t, store.Write(context.Background(), batch))
	require.NoError(t, store.Write(context.Background(), batch))

	got, err := store.Read(context.Background(), "a", 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSQLitePersistence_NotInitialised(t *testing.T) {
	store := NewSQLitePersistence("unused.db", zerolog.Nop())
	assert.ErrorIs(t, store.Write(context.Background(), batchFor("a", 1)), ErrPersistenceNotConfigured)
	assert.NoError(t, store.Close())
}

func TestNewPersistenceLayer(t *testing.T) {
	layer, err := NewPersistenceLayer(context.Background(), DefaultPersistenceConfig(), zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &NullPersistence{}, layer)
	assert.NoError(t, layer.Write(context.Background(), batchFor("a", 1)))

	_, err = NewPersistenceLayer(context.Background(), PersistenceConfig{Type: "s3"}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrInvalidPersistenceType)
}
