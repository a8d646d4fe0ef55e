package wallet

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/achievemint/internal/txn"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "admin.json")
	kp, err := txn.GenerateKeypair(nil)
	require.NoError(t, err)

	require.NoError(t, Save(path, kp, false))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), got.Address())
	assert.Equal(t, kp.Bytes(), got.Bytes())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSave_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.json")
	require.NoError(t, Save(path, Named("a"), false))

	err := Save(path, Named("b"), false)
	assert.ErrorIs(t, err, ErrExists)

	require.NoError(t, Save(path, Named("b"), true))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Named("b").Address(), got.Address())
}

func TestLoad_Rejects(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "hello"},
		{"wrong length", "[1,2,3]"},
		{"byte out of range", "[256]"},
		{"object", `{"key":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MismatchedPublicHalf(t *testing.T) {
	b := Named("alice").Bytes()
	b[63] ^= 0xff
	raw := make([]int, len(b))
	for i, v := range b {
		raw[i] = int(v)
	}
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNamed_Deterministic(t *testing.T) {
	assert.Equal(t, Named("alice").Address(), Named("alice").Address())
	assert.NotEqual(t, Named("alice").Address(), Named("bob").Address())
}

func TestBook(t *testing.T) {
	b := NewBook("bob", "alice")
	assert.Equal(t, []string{"alice", "bob"}, b.Names())

	addr, ok := b.Address("alice")
	require.True(t, ok)
	assert.Equal(t, Named("alice").Address(), addr)

	_, ok = b.Lookup("carol")
	assert.False(t, ok)

	carol := b.Get("carol")
	assert.Equal(t, Named("carol").Address(), carol.Address())
	assert.Equal(t, []string{"alice", "bob", "carol"}, b.Names())
}
