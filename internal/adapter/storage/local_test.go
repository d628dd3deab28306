package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aq2208/stitch-order-api/internal/adapter/storage"
	"github.com/aq2208/stitch-order-api/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutIsContentAddressed(t *testing.T) {
	dir := t.TempDir()
	s, err := storage.NewLocalStore(dir, "http://cdn.local/files/")
	require.NoError(t, err)
	ctx := context.Background()

	img := usecase.Upload{Data: []byte("photo"), ContentType: "image/png"}
	u1, err := s.Put(ctx, "orders/o1/slots/s1", img)
	require.NoError(t, err)
	u2, err := s.Put(ctx, "orders/o1/slots/s1", img)
	require.NoError(t, err)
	assert.Equal(t, u1, u2)
	assert.True(t, strings.HasPrefix(u1, "http://cdn.local/files/orders/o1/slots/s1/"))
	assert.True(t, strings.HasSuffix(u1, ".png"))

	u3, err := s.Put(ctx, "orders/o1/slots/s1", usecase.Upload{Data: []byte("other"), ContentType: "image/png"})
	require.NoError(t, err)
	assert.NotEqual(t, u1, u3)

	rel := strings.TrimPrefix(u1, "http://cdn.local/files/")
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	assert.Equal(t, []byte("photo"), data)
}

func TestPutRejectsTraversal(t *testing.T) {
	s, err := storage.NewLocalStore(t.TempDir(), "http://x")
	require.NoError(t, err)
	for _, key := range []string{"", "../etc", "orders/../../x", "a//b"} {
		_, err := s.Put(context.Background(), key, usecase.Upload{Data: []byte("x")})
		assert.ErrorIs(t, err, storage.ErrBadKey, key)
	}
}
