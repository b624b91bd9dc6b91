package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	storagetypes "github.com/nckslvrmn/stash/internal/storage/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const secretsCollection = "secrets"

// FirestoreClientInterface defines the interface for Firestore client operations we use
type FirestoreClientInterface interface {
	Collection(path string) CollectionRefInterface
	Close() error
}

// CollectionRefInterface defines the interface for collection operations we use
type CollectionRefInterface interface {
	Doc(id string) DocumentRefInterface
}

// DocumentRefInterface defines the interface for document operations we use
type DocumentRefInterface interface {
	Get(ctx context.Context) (DocumentSnapshotInterface, error)
	Create(ctx context.Context, data any) (*firestore.WriteResult, error)
	Delete(ctx context.Context, opts ...firestore.Precondition) (*firestore.WriteResult, error)
}

// DocumentSnapshotInterface defines the interface for document snapshot operations we use
type DocumentSnapshotInterface interface {
	Data() map[string]any
}

type firestoreClientWrapper struct {
	client *firestore.Client
}

func (f *firestoreClientWrapper) Collection(path string) CollectionRefInterface {
	return &collectionRefWrapper{collection: f.client.Collection(path)}
}

func (f *firestoreClientWrapper) Close() error {
	return f.client.Close()
}

type collectionRefWrapper struct {
	collection *firestore.CollectionRef
}

func (c *collectionRefWrapper) Doc(id string) DocumentRefInterface {
	return &documentRefWrapper{doc: c.collection.Doc(id)}
}

type documentRefWrapper struct {
	doc *firestore.DocumentRef
}

func (d *documentRefWrapper) Get(ctx context.Context) (DocumentSnapshotInterface, error) {
	snapshot, err := d.doc.Get(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (d *documentRefWrapper) Create(ctx context.Context, data any) (*firestore.WriteResult, error) {
	return d.doc.Create(ctx, data)
}

func (d *documentRefWrapper) Delete(ctx context.Context, opts ...firestore.Precondition) (*firestore.WriteResult, error) {
	return d.doc.Delete(ctx, opts...)
}

type FirestoreStore struct {
	client FirestoreClientInterface
}

func NewFirestoreStore(ctx context.Context, projectID, database string) (*FirestoreStore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return &FirestoreStore{
		client: &firestoreClientWrapper{client: client},
	}, nil
}

func (f *FirestoreStore) Write(ctx context.Context, secret *storagetypes.Secret) error {
	data := map[string]any{
		"id":               secret.ID,
		"created_at":       secret.CreatedAt.UTC(),
		"encrypted_secret": secret.EncryptedSecret,
	}

	_, err := f.client.Collection(secretsCollection).Doc(secret.ID).Create(ctx, data)
	if status.Code(err) == codes.AlreadyExists {
		return storagetypes.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to store secret in Firestore: %w", err)
	}

	return nil
}

func (f *FirestoreStore) ReadByID(ctx context.Context, id string) (*storagetypes.Secret, error) {
	doc, err := f.client.Collection(secretsCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get secret from Firestore: %w", err)
	}

	docData := doc.Data()

	encrypted, ok := docData["encrypted_secret"].(string)
	if !ok {
		return nil, fmt.Errorf("encrypted_secret field not found")
	}
	createdAt, ok := docData["created_at"].(time.Time)
	if !ok {
		return nil, fmt.Errorf("created_at field not found")
	}

	return &storagetypes.Secret{
		ID:              id,
		CreatedAt:       createdAt.UTC(),
		EncryptedSecret: encrypted,
	}, nil
}

func (f *FirestoreStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	_, err := f.client.Collection(secretsCollection).Doc(id).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete secret from Firestore: %w", err)
	}

	return true, nil
}

func (f *FirestoreStore) Close() error {
	return f.client.Close()
}
