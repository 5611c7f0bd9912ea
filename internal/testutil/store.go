// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edgard/botfriend/internal/database"
	"github.com/edgard/botfriend/internal/logger"
)

// NewStore returns a store over a fresh, migrated in-memory database that is
// closed when the test ends.
func NewStore(t testing.TB) database.Store {
	t.Helper()
	db, err := database.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })
	return database.NewStore(db, logger.Discard())
}

// NewBotModel creates the bot row called name.
func NewBotModel(t testing.TB, store database.Store, name string) *database.Bot {
	t.Helper()
	model, _, err := store.GetOrCreateBot(context.Background(), name)
	require.NoError(t, err)
	return model
}
