package keyring

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyring")
	kr := New()
	kr.Store("mysql_router4_012345678901", "password", "secret")
	require.NoError(t, kr.Save(path, "master"))

	loaded, err := Load(path, "master")
	require.NoError(t, err)
	value, err := loaded.Fetch("mysql_router4_012345678901", "password")
	require.NoError(t, err)
	assert.Equal(t, "secret", value)
}

func TestLoadWrongMasterKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyring")
	require.NoError(t, New().Save(path, "master"))

	_, err := Load(path, "not-the-master")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong master key or corrupted file")
}

func TestLoadCorruptedFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("truncated", func(t *testing.T) {
		path := filepath.Join(dir, "truncated")
		require.NoError(t, os.WriteFile(path, []byte("MRK"), 0600))
		_, err := Load(path, "master")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid keyring file")
	})
	t.Run("wrong magic", func(t *testing.T) {
		path := filepath.Join(dir, "magic")
		require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 64)), 0600))
		_, err := Load(path, "master")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid keyring file")
	})
	t.Run("flipped ciphertext bit", func(t *testing.T) {
		path := filepath.Join(dir, "flipped")
		kr := New()
		kr.Store("acct", "password", "secret")
		require.NoError(t, kr.Save(path, "master"))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		data[len(data)-1] ^= 0x01
		require.NoError(t, os.WriteFile(path, data, 0600))
		_, err = Load(path, "master")
		assert.Error(t, err)
	})
}

func TestSaveMasterKeyBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyring")
	assert.Error(t, New().Save(path, ""))
	assert.Error(t, New().Save(path, strings.Repeat("x", MaxKeyLength+1)))
	assert.NoError(t, New().Save(path, strings.Repeat("x", MaxKeyLength)))
}

func TestSaveFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyring")
	require.NoError(t, New().Save(path, "master"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestMasterKeyFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mysqlrouter.key")
	key, err := GenerateMasterKey()
	require.NoError(t, err)
	assert.Len(t, key, 64)

	require.NoError(t, WriteMasterKeyFile(path, key))
	read, err := ReadMasterKeyFile(path)
	require.NoError(t, err)
	assert.Equal(t, key, read)
}

func TestReadMasterKeyFileErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing", func(t *testing.T) {
		path := filepath.Join(dir, "absent.key")
		_, err := ReadMasterKeyFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid master key file "+path)
	})
	t.Run("empty", func(t *testing.T) {
		path := filepath.Join(dir, "empty.key")
		require.NoError(t, os.WriteFile(path, []byte("\n"), 0600))
		_, err := ReadMasterKeyFile(path)
		require.Error(t, err)
		assert.Equal(t, "Invalid master key file "+path, err.Error())
	})
	t.Run("too long", func(t *testing.T) {
		path := filepath.Join(dir, "long.key")
		require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", MaxKeyLength+1)), 0600))
		_, err := ReadMasterKeyFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "key too long")
	})
}
