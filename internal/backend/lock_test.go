package backend

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireStoreLock_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	first, err := acquireStoreLock(path)
	require.NoError(t, err)

	_, err = acquireStoreLock(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreLocked)

	require.NoError(t, first.release())

	second, err := acquireStoreLock(path)
	require.NoError(t, err)
	require.NoError(t, second.release())
}

func TestAcquireStoreLock_NilRelease(t *testing.T) {
	var l *storeLock
	assert.NoError(t, l.release())
}

func TestSQLiteBackend_OnDiskCatalogIsLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	// Given an open on-disk catalog
	first, err := NewSQLiteBackend("sqlite", path)
	require.NoError(t, err)

	// When a second handle opens the same path
	_, err = NewSQLiteBackend("sqlite", path)

	// Then it fails fast instead of racing the first
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreLocked)

	// And closing the first releases the catalog
	require.NoError(t, first.Close())
	second, err := NewSQLiteBackend("sqlite", path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}
