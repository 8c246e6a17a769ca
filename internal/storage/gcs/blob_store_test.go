package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestStore(t *testing.T, cfg Config, handler http.Handler) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(),
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, cfg)
	require.NoError(t, err)
	return store
}

func TestPutObjectUploadsReport(t *testing.T) {
	t.Parallel()

	var gotName, gotBody string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/reports-bucket/o")
		gotName = r.URL.Query().Get("name")
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		gotBody = string(body)
		fmt.Fprintf(w, `{"name": %q, "bucket": "reports-bucket"}`, gotName)
	})

	store := newTestStore(t, Config{Bucket: "reports-bucket", Prefix: "/newsdesk/"}, handler)
	uri, err := store.PutObject(context.Background(), "reports/2025/01/15/run-1.json", "application/json",
		strings.NewReader(`{"run_id":"run-1"}`))
	require.NoError(t, err)

	assert.Equal(t, "gs://reports-bucket/newsdesk/reports/2025/01/15/run-1.json", uri)
	assert.Equal(t, "newsdesk/reports/2025/01/15/run-1.json", gotName)
	assert.Contains(t, gotBody, `{"run_id":"run-1"}`)
	assert.Contains(t, gotBody, "application/json")
}

func TestPutObjectServerError(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": {"code": 403, "message": "forbidden"}}`, http.StatusForbidden)
	})
	store := newTestStore(t, Config{Bucket: "reports-bucket"}, handler)

	_, err := store.PutObject(context.Background(), "a.json", "application/json", strings.NewReader("{}"))
	require.Error(t, err)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	_, err = New(client, Config{Bucket: " "})
	require.Error(t, err)

	store, err := New(client, Config{Bucket: "b"})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), "  ", "", strings.NewReader(""))
	require.ErrorContains(t, err, "path is required")
	assert.NoError(t, store.Close(), "borrowed client is left open")
}
