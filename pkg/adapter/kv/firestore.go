package kv

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type firestoreEntry struct {
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// Firestore keeps one document per key in a collection
type Firestore struct {
	client     *firestore.Client
	collection string
}

// NewFirestore creates a Firestore client for the given project and database
func NewFirestore(ctx context.Context, projectID, databaseID, collection string) (*Firestore, error) {
	if projectID == "" {
		return nil, goerr.New("project is required")
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}
	if collection == "" {
		return nil, goerr.New("collection is required")
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}

	return &Firestore{client: client, collection: collection}, nil
}

func (f *Firestore) Get(ctx context.Context, key string) (string, bool, error) {
	snap, err := f.client.Collection(f.collection).Doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to get firestore document", goerr.V("key", key))
	}

	var e firestoreEntry
	if err := snap.DataTo(&e); err != nil {
		return "", false, goerr.Wrap(err, "failed to decode firestore document", goerr.V("key", key))
	}
	return e.Value, true, nil
}

func (f *Firestore) Set(ctx context.Context, key, value string) error {
	e := firestoreEntry{Value: value, UpdatedAt: time.Now()}
	if _, err := f.client.Collection(f.collection).Doc(key).Set(ctx, e); err != nil {
		return goerr.Wrap(err, "failed to set firestore document", goerr.V("key", key))
	}
	return nil
}

func (f *Firestore) Delete(ctx context.Context, key string) error {
	if _, err := f.client.Collection(f.collection).Doc(key).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete firestore document", goerr.V("key", key))
	}
	return nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}
