package keyring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreFetch(t *testing.T) {
	kr := New()
	kr.Store("mysql_router1_abc", "password", "secret")
	kr.Store("mysql_router1_abc", "note", "primary")
	kr.Store("other", "password", "hunter2")

	value, err := kr.Fetch("mysql_router1_abc", "password")
	require.NoError(t, err)
	assert.Equal(t, "secret", value)

	value, err = kr.Fetch("mysql_router1_abc", "note")
	require.NoError(t, err)
	assert.Equal(t, "primary", value)

	_, err = kr.Fetch("mysql_router1_abc", "missing")
	assert.Error(t, err)
	_, err = kr.Fetch("nobody", "password")
	assert.Error(t, err)
}

func TestStoreOverwrites(t *testing.T) {
	kr := New()
	kr.Store("acct", "password", "old")
	kr.Store("acct", "password", "new")
	value, err := kr.Fetch("acct", "password")
	require.NoError(t, err)
	assert.Equal(t, "new", value)
}

func TestRemove(t *testing.T) {
	kr := New()
	kr.Store("acct", "password", "secret")
	kr.Remove("acct")
	_, err := kr.Fetch("acct", "password")
	assert.Error(t, err)
	// removing an absent account is a no-op
	kr.Remove("acct")
}

func TestAccounts(t *testing.T) {
	kr := New()
	assert.Empty(t, kr.Accounts())
	kr.Store("b", "password", "2")
	kr.Store("a", "password", "1")
	assert.ElementsMatch(t, []string{"a", "b"}, kr.Accounts())
}
