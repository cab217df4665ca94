package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifecraft/profiler/backend/internal/config"
	"github.com/lifecraft/profiler/backend/internal/model/chat"
	"github.com/lifecraft/profiler/backend/internal/store"
)

func TestOpenStore(t *testing.T) {
	mem, err := openStore(config.StoreConfig{Driver: config.StoreMemory})
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, mem)
	require.NoError(t, mem.Close())

	dsn := filepath.Join(t.TempDir(), "nested", "profiler.db")
	db, err := openStore(config.StoreConfig{Driver: config.StoreSQLite, DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.CreateSession(context.Background(), chat.Session{ID: "s1", Module: "vision", Stage: "explore"}))
	got, err := db.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, chat.Stage("explore"), got.Stage)
}

func TestOpenStoreRejectsEmptyDSN(t *testing.T) {
	_, err := openStore(config.StoreConfig{Driver: config.StoreSQLite})
	assert.Error(t, err)
}
