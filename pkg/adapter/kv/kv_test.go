package kv_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/qtda/pkg/adapter/kv"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// testStore runs the common contract every backend must satisfy
func testStore(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := fmt.Sprintf("test_key_%d", time.Now().UnixNano())
	t.Cleanup(func() { _ = store.Delete(ctx, key) })

	t.Run("missing key", func(t *testing.T) {
		v, found, err := store.Get(ctx, key)
		gt.NoError(t, err)
		gt.False(t, found)
		gt.Equal(t, v, "")
	})

	t.Run("set and get", func(t *testing.T) {
		gt.NoError(t, store.Set(ctx, key, `[{"id":"1"}]`))
		v, found, err := store.Get(ctx, key)
		gt.NoError(t, err)
		gt.True(t, found)
		gt.Equal(t, v, `[{"id":"1"}]`)
	})

	t.Run("overwrite", func(t *testing.T) {
		gt.NoError(t, store.Set(ctx, key, "rắn hổ mang"))
		v, found, err := store.Get(ctx, key)
		gt.NoError(t, err)
		gt.True(t, found)
		gt.Equal(t, v, "rắn hổ mang")
	})

	t.Run("delete", func(t *testing.T) {
		gt.NoError(t, store.Delete(ctx, key))
		_, found, err := store.Get(ctx, key)
		gt.NoError(t, err)
		gt.False(t, found)
	})

	t.Run("delete missing key", func(t *testing.T) {
		gt.NoError(t, store.Delete(ctx, key+"_missing"))
	})
}

func TestMemory(t *testing.T) {
	testStore(t, kv.NewMemory())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "storage.json")
	store, err := kv.NewFile(path)
	gt.NoError(t, err)
	testStore(t, store)
}

func TestFilePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "storage.json")

	first, err := kv.NewFile(path)
	gt.NoError(t, err)
	gt.NoError(t, first.Set(ctx, "current_conversation_id", "1700000000000"))

	second, err := kv.NewFile(path)
	gt.NoError(t, err)
	v, found, err := second.Get(ctx, "current_conversation_id")
	gt.NoError(t, err)
	gt.True(t, found)
	gt.Equal(t, v, "1700000000000")
}

func TestFileRejectsCorruptedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	gt.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := kv.NewFile(path)
	gt.Error(t, err)
}

func TestSQLite(t *testing.T) {
	store, err := kv.NewSQLite(filepath.Join(t.TempDir(), "qtda.db"))
	gt.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	testStore(t, store)
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" && os.Getenv("TEST_REDIS_CONTAINER") == "" {
		t.Skip("TEST_REDIS_ADDR or TEST_REDIS_CONTAINER must be set to run Redis tests")
	}

	ctx := context.Background()
	if addr == "" {
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "redis:7-alpine",
				ExposedPorts: []string{"6379/tcp"},
				WaitingFor:   wait.ForListeningPort("6379/tcp"),
			},
			Started: true,
		})
		gt.NoError(t, err)
		t.Cleanup(func() { _ = container.Terminate(ctx) })

		endpoint, err := container.Endpoint(ctx, "")
		gt.NoError(t, err)
		addr = endpoint
	}

	store, err := kv.NewRedis(ctx, kv.RedisOptions{Addr: addr, Prefix: "qtda_test:"})
	gt.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	testStore(t, store)
}

func TestFirestore(t *testing.T) {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID must be set to run Firestore tests")
	}

	store, err := kv.NewFirestore(context.Background(), projectID, databaseID, "qtda_test")
	gt.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	testStore(t, store)
}

func TestCloudStorage(t *testing.T) {
	bucket := os.Getenv("TEST_STORAGE_BUCKET")
	if bucket == "" {
		t.Skip("TEST_STORAGE_BUCKET must be set to run Cloud Storage tests")
	}

	store, err := kv.NewCloudStorage(context.Background(), bucket, "qtda_test/")
	gt.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	testStore(t, store)
}
