package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ScopesAreIsolated(t *testing.T) {
	s := NewMemory()
	a := s.Scope("a")
	b := s.Scope("b")

	require.NoError(t, a.SetItem(KeyToken, "tok-a"))

	got, ok := a.GetItem(KeyToken)
	assert.True(t, ok)
	assert.Equal(t, "tok-a", got)

	_, ok = b.GetItem(KeyToken)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Sessions())
}

func TestRemoveItem_RemovesTogether(t *testing.T) {
	s := NewMemory()
	sc := s.Scope("sess")
	require.NoError(t, sc.SetItem(KeyToken, "t"))
	require.NoError(t, sc.SetItem(KeyUser, `{"id":1,"email":"a@b.c"}`))

	require.NoError(t, sc.RemoveItem(KeyToken, KeyUser))

	_, ok := sc.GetItem(KeyToken)
	assert.False(t, ok)
	_, ok = sc.GetItem(KeyUser)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Sessions())
}

func TestFileStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "storage.json")

	s, err := Open(path, "")
	require.NoError(t, err)
	require.NoError(t, s.Scope("sess").SetItem(KeyTheme, "dark"))

	reopened, err := Open(path, "")
	require.NoError(t, err)
	got, ok := reopened.Scope("sess").GetItem(KeyTheme)
	assert.True(t, ok)
	assert.Equal(t, "dark", got)
}

func TestFileStore_Encrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.age")

	s, err := Open(path, "correct horse")
	require.NoError(t, err)
	assert.True(t, s.IsEncrypted())
	require.NoError(t, s.Scope("sess").SetItem(KeyToken, "secret-token"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-token")
	assert.True(t, len(raw) > len(ageHeader) && string(raw[:len(ageHeader)]) == ageHeader)

	reopened, err := Open(path, "correct horse")
	require.NoError(t, err)
	got, _ := reopened.Scope("sess").GetItem(KeyToken)
	assert.Equal(t, "secret-token", got)

	_, err = Open(path, "wrong")
	assert.EqualError(t, err, "incorrect storage passphrase")

	_, err = Open(path, "")
	assert.ErrorContains(t, err, "no passphrase is configured")
}
