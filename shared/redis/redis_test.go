package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	opts, err := Options("")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)

	opts, err = Options("cache:6380")
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)

	opts, err = Options("redis://:secret@cache:6379/2")
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	_, err = Options("http://cache:6379")
	assert.Error(t, err)
}
