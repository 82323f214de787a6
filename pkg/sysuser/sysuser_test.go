package sysuser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemLookupUnknownUser(t *testing.T) {
	_, _, err := System{}.Lookup("no-such-user-here")
	require.Error(t, err)
	assert.Equal(t, "Can't use user 'no-such-user-here'. Please check that the user exists!", err.Error())
}

func TestRecorder(t *testing.T) {
	r := &Recorder{UID: 10, GID: 20}
	uid, gid, err := r.Lookup("anyone")
	require.NoError(t, err)
	assert.Equal(t, 10, uid)
	assert.Equal(t, 20, gid)

	require.NoError(t, r.Chown("/tmp/x", uid, gid))
	assert.Equal(t, []string{"/tmp/x"}, r.Chowned)

	r.Fail = errors.New("nope")
	_, _, err = r.Lookup("anyone")
	assert.Error(t, err)
	assert.Error(t, r.Chown("/tmp/y", uid, gid))
}
