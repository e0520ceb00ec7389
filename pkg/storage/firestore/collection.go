package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ToFirestoreFunc[T any] func(*T) map[string]interface{}
type FromFirestoreFunc[T any] func(map[string]interface{}) *T

// Collection pairs a Firestore collection with explicit converters so the
// stored field names never drift with struct refactors.
type Collection[T any] struct {
	Ref           *firestore.CollectionRef
	ToFirestore   ToFirestoreFunc[T]
	FromFirestore FromFirestoreFunc[T]
}

func (c *Collection[T]) Doc(id string) *DocumentRef[T] {
	return &DocumentRef[T]{
		Ref:           c.Ref.Doc(id),
		ToFirestore:   c.ToFirestore,
		FromFirestore: c.FromFirestore,
	}
}

func (c *Collection[T]) Query() firestore.Query {
	return c.Ref.Query
}

// GetAll runs q and converts every document. q must be derived from Query().
func (c *Collection[T]) GetAll(ctx context.Context, q firestore.Query) ([]*T, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*T
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c.FromFirestore(snap.Data()))
	}
	return out, nil
}

// First returns the first document matching q, or (nil, nil) when none match.
func (c *Collection[T]) First(ctx context.Context, q firestore.Query) (*T, error) {
	iter := q.Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.FromFirestore(snap.Data()), nil
}

type DocumentRef[T any] struct {
	Ref           *firestore.DocumentRef
	ToFirestore   ToFirestoreFunc[T]
	FromFirestore FromFirestoreFunc[T]
}

func (d *DocumentRef[T]) ID() string {
	return d.Ref.ID
}

// Get returns the document, or (nil, nil) when it does not exist.
func (d *DocumentRef[T]) Get(ctx context.Context) (*T, error) {
	snap, err := d.Ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d.FromFirestore(snap.Data()), nil
}

// Set writes the full document, replacing any existing content.
func (d *DocumentRef[T]) Set(ctx context.Context, data *T) error {
	_, err := d.Ref.Set(ctx, d.ToFirestore(data))
	return err
}

// Merge writes the converted fields on top of the existing document.
func (d *DocumentRef[T]) Merge(ctx context.Context, data *T) error {
	_, err := d.Ref.Set(ctx, d.ToFirestore(data), firestore.MergeAll)
	return err
}

// Update applies field-level updates. Paths must use the stored snake_case
// names, not struct field names.
func (d *DocumentRef[T]) Update(ctx context.Context, updates []firestore.Update) error {
	_, err := d.Ref.Update(ctx, updates)
	return err
}

func (d *DocumentRef[T]) Delete(ctx context.Context) error {
	_, err := d.Ref.Delete(ctx)
	return err
}
