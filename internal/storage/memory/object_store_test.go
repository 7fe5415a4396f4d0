package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectStoreRoundTrip(t *testing.T) {
	t.Parallel()
	store := NewObjectStore("")
	ctx := context.Background()

	require.NoError(t, store.PutObject(ctx, "360x640/abc.png", "image/png", strings.NewReader("png")))

	data, public, ok := store.Object("360x640/abc.png")
	require.True(t, ok)
	assert.False(t, public)
	assert.Equal(t, "png", string(data))

	url, err := store.MakePublic(ctx, "360x640/abc.png")
	require.NoError(t, err)
	assert.Equal(t, "memory://objects/360x640/abc.png", url)

	_, public, _ = store.Object("360x640/abc.png")
	assert.True(t, public)
	assert.Equal(t, []string{"360x640/abc.png"}, store.Keys())
	assert.Equal(t, 1, store.Puts())
}

func TestMakePublicMissingObject(t *testing.T) {
	t.Parallel()
	store := NewObjectStore("http://bucket")

	_, err := store.MakePublic(context.Background(), "nope.png")
	require.ErrorContains(t, err, "object not found")
}
