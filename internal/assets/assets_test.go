package assets

import (
	"bytes"
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/MeKo-Tech/spreadmap/internal/testutil"
)

func TestFSStore(t *testing.T) {
	ctx := context.Background()
	s := NewFSStore(testutil.NewMemFs(t), "/assets")

	_, err := s.Get(ctx, "pdf-1")
	require.ErrorIs(t, err, ErrAssetMissing)

	ok, err := s.Exists(ctx, "pdf-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "pdf-1", []byte("%PDF-1.7")))
	data, err := s.Get(ctx, "pdf-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), data)

	ok, err = s.Exists(ctx, "pdf-1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "pdf-1"))
	require.NoError(t, s.Delete(ctx, "pdf-1"))
	_, err = s.Get(ctx, "pdf-1")
	require.ErrorIs(t, err, ErrAssetMissing)
}

func TestFSStore_RejectsPathIDs(t *testing.T) {
	s := NewFSStore(testutil.NewMemFs(t), "/assets")
	for _, id := range []string{"", "..", "a/b", `a\b`} {
		require.Error(t, s.Put(context.Background(), id, nil), id)
	}
}

func TestFSStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFSStore(testutil.NewMemFs(t), "/").Get(ctx, "x")
	require.ErrorIs(t, err, context.Canceled)
}

func TestDecodeImage(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 3))

	img, format, err := DecodeImage(testutil.EncodePNG(t, src))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, src.Bounds(), img.Bounds())

	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, src))
	_, format, err = DecodeImage(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "bmp", format)

	_, _, err = DecodeImage([]byte("nope"))
	require.Error(t, err)
}
