package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filedepot/filedepot/pkg/filedepot"
)

func hashOf(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func TestPutOpenRoundTrip(t *testing.T) {
	b := New()
	ctx := context.Background()

	content := "in-memory blob"
	hash := hashOf(content)

	require.NoError(t, b.Put(ctx, hash, strings.NewReader(content), int64(len(content))))

	exists, err := b.Exists(ctx, hash)
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := b.Open(ctx, hash)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestPutIdempotent(t *testing.T) {
	b := New()
	ctx := context.Background()

	content := "once"
	hash := hashOf(content)

	require.NoError(t, b.Put(ctx, hash, strings.NewReader(content), int64(len(content))))
	require.NoError(t, b.Put(ctx, hash, strings.NewReader(content), int64(len(content))))

	err := b.Put(ctx, hash, strings.NewReader(content), int64(len(content))+1)
	assert.ErrorIs(t, err, filedepot.ErrHashSizeMismatch)
}

func TestOpenMissing(t *testing.T) {
	b := New()

	_, err := b.Open(context.Background(), hashOf("absent"))
	assert.ErrorIs(t, err, filedepot.ErrBlobNotFound)
}

func TestRemoveIdempotent(t *testing.T) {
	b := New()
	ctx := context.Background()

	content := "short lived"
	hash := hashOf(content)

	require.NoError(t, b.Put(ctx, hash, strings.NewReader(content), int64(len(content))))
	require.NoError(t, b.Remove(ctx, hash))
	require.NoError(t, b.Remove(ctx, hash))

	exists, err := b.Exists(ctx, hash)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWalkHashes(t *testing.T) {
	b := New()
	ctx := context.Background()

	want := make(map[string]int64)
	for _, c := range []string{"a", "bb", "ccc"} {
		h := hashOf(c)
		require.NoError(t, b.Put(ctx, h, strings.NewReader(c), int64(len(c))))
		want[h] = int64(len(c))
	}

	got := make(map[string]int64)
	require.NoError(t, b.WalkHashes(ctx, func(hash string, sizeBytes int64) error {
		got[hash] = sizeBytes
		return nil
	}))
	assert.Equal(t, want, got)
}
