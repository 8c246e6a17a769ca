package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/newsdesk/internal/news"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "article-commits", news.CommitEvent{ArticleID: "a1"})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "other", "payload")
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "article-commits", msgs[0].Topic)

	msgs[0].Topic = "modified"
	assert.Equal(t, "article-commits", pub.Messages()[0].Topic, "Messages returns a copy")

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "a1", events[0].ArticleID)
}

func TestPublisherFail(t *testing.T) {
	t.Parallel()

	pub := New()
	boom := errors.New("unavailable")
	pub.Fail(boom)

	_, err := pub.Publish(context.Background(), "t", "x")
	require.ErrorIs(t, err, boom)
	_, err = pub.Publish(context.Background(), "t", "y")
	require.NoError(t, err)
	assert.Len(t, pub.Messages(), 1)
}
