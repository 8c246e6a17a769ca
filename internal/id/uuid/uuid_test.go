package uuid

import (
	"slices"
	"testing"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDIsVersion7(t *testing.T) {
	t.Parallel()

	id, err := New().NewID()
	require.NoError(t, err)
	parsed, err := goUUID.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, goUUID.Version(7), parsed.Version())
}

func TestNewIDsSortByCreation(t *testing.T) {
	t.Parallel()

	gen := New()
	ids := make([]string, 0, 50)
	for range 50 {
		id, err := gen.NewID()
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.True(t, slices.IsSorted(ids), "run ids must sort in creation order")
	assert.Len(t, slices.Compact(slices.Clone(ids)), len(ids))
}
