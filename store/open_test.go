package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRedis(t *testing.T) {
	s := miniredis.RunT(t)

	st, err := Open(context.Background(), "redis://"+s.Addr(), WithScanCount(5))
	require.NoError(t, err)
	defer st.Close()

	rs, ok := st.(*RedisStore)
	require.True(t, ok)
	assert.Equal(t, int64(5), rs.scanCount)
}

func TestOpenPostgres(t *testing.T) {
	_, err := Open(context.Background(), "postgresql://cleanup@127.0.0.1:1/cleanup?sslmode=disable&connect_timeout=1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to database")
}

func TestOpenUnknownScheme(t *testing.T) {
	_, err := Open(context.Background(), "mysql://localhost/db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid Redis URL")
}
