package images

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageRoundTrip(t *testing.T) {
	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	data := []byte("fake image bytes")
	require.NoError(t, storage.Save("user-1", data))

	assert.True(t, storage.Exists("user-1"))

	got, err := storage.Get("user-1")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	hash, err := storage.Hash("user-1")
	require.NoError(t, err)
	assert.Len(t, hash, 64)
}

func TestStorageDelete(t *testing.T) {
	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, storage.Save("user-1", []byte("x")))
	require.NoError(t, storage.Delete("user-1"))
	assert.False(t, storage.Exists("user-1"))

	// Deleting again is a no-op.
	require.NoError(t, storage.Delete("user-1"))
}

func TestStorageRejectsEmptyInput(t *testing.T) {
	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, storage.Save("", []byte("x")))
	assert.Error(t, storage.Save("user-1", nil))
	assert.False(t, storage.Exists(""))
}

func TestComputeBlurHash(t *testing.T) {
	// A tiny solid-color PNG is enough to exercise the full pipeline.
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	hash, err := ComputeBlurHash(buf.Bytes())
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
}

func TestComputeBlurHashRejectsGarbage(t *testing.T) {
	_, err := ComputeBlurHash([]byte("definitely not an image"))
	assert.Error(t, err)
}
