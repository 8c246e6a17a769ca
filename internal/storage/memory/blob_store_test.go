package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "reports/run.json", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "memory://reports/run.json", uri)

	payload[0] = 'C'
	got, ok := store.Object("reports/run.json")
	require.True(t, ok)
	assert.Equal(t, "content", string(got))

	got[0] = 'X'
	again, _ := store.Object("reports/run.json")
	assert.Equal(t, "content", string(again))

	_, ok = store.Object("missing")
	assert.False(t, ok)
}

func TestBlobStorePaths(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	for _, p := range []string{"b.json", "a.json"} {
		_, err := store.PutObject(context.Background(), p, "", bytes.NewReader(nil))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a.json", "b.json"}, store.Paths())

	_, err := store.PutObject(context.Background(), "", "", bytes.NewReader(nil))
	assert.Error(t, err)
}
