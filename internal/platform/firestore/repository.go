package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Decoder hydrates a domain value from a snapshot.
type Decoder[T any] func(snap *firestore.DocumentSnapshot) (T, error)

// QueryBuilder customises a collection query before execution.
type QueryBuilder func(query firestore.Query) firestore.Query

// Page is one page of decoded documents. NextCursor is the ID of the last document when more
// results may follow.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// Collection wraps typed access to one top level collection.
type Collection[T any] struct {
	provider *Provider
	name     string
	decode   Decoder[T]
}

// NewCollection binds a typed helper to the named collection.
func NewCollection[T any](provider *Provider, name string, decode Decoder[T]) *Collection[T] {
	return &Collection[T]{provider: provider, name: strings.TrimSpace(name), decode: decode}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Ref returns the collection reference.
func (c *Collection[T]) Ref(ctx context.Context) (*firestore.CollectionRef, error) {
	if c.provider == nil {
		return nil, errors.New("firestore: provider is nil")
	}
	if c.name == "" {
		return nil, errors.New("firestore: collection name is empty")
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(c.name), nil
}

// Doc returns the reference for the given document ID.
func (c *Collection[T]) Doc(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("firestore: %s document id is empty", c.name)
	}
	coll, err := c.Ref(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

// Get reads and decodes a single document.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	ref, err := c.Doc(ctx, id)
	if err != nil {
		return zero, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return zero, WrapError(c.op("get"), err)
	}
	return c.decodeSnapshot(snap)
}

// GetTx reads and decodes a document inside a transaction.
func (c *Collection[T]) GetTx(ctx context.Context, tx *firestore.Transaction, id string) (T, error) {
	var zero T
	ref, err := c.Doc(ctx, id)
	if err != nil {
		return zero, err
	}
	snap, err := tx.Get(ref)
	if err != nil {
		return zero, WrapError(c.op("get"), err)
	}
	return c.decodeSnapshot(snap)
}

// List runs the query and decodes every result.
func (c *Collection[T]) List(ctx context.Context, build QueryBuilder) ([]T, error) {
	coll, err := c.Ref(ctx)
	if err != nil {
		return nil, err
	}
	query := coll.Query
	if build != nil {
		query = build(query)
	}
	iter := query.Documents(ctx)
	defer iter.Stop()
	return c.drain(iter)
}

// Paginate runs the query starting after the document named by cursor and returns up to
// pageSize results.
func (c *Collection[T]) Paginate(ctx context.Context, build QueryBuilder, pageSize int, cursor string) (Page[T], error) {
	coll, err := c.Ref(ctx)
	if err != nil {
		return Page[T]{}, err
	}
	query := coll.Query
	if build != nil {
		query = build(query)
	}
	if cursor = strings.TrimSpace(cursor); cursor != "" {
		snap, err := coll.Doc(cursor).Get(ctx)
		if err != nil {
			return Page[T]{}, WrapError(c.op("cursor"), err)
		}
		query = query.StartAfter(snap)
	}
	if pageSize > 0 {
		query = query.Limit(pageSize + 1)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()
	var (
		page Page[T]
		last string
	)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return Page[T]{}, WrapError(c.op("query"), err)
		}
		if pageSize > 0 && len(page.Items) == pageSize {
			page.NextCursor = last
			break
		}
		value, err := c.decodeSnapshot(snap)
		if err != nil {
			return Page[T]{}, err
		}
		page.Items = append(page.Items, value)
		last = snap.Ref.ID
	}
	return page, nil
}

func (c *Collection[T]) drain(iter *firestore.DocumentIterator) ([]T, error) {
	var out []T
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, WrapError(c.op("query"), err)
		}
		value, err := c.decodeSnapshot(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
}

// DecodeAll decodes snapshots returned by a transactional query.
func (c *Collection[T]) DecodeAll(snaps []*firestore.DocumentSnapshot) ([]T, error) {
	out := make([]T, 0, len(snaps))
	for _, snap := range snaps {
		value, err := c.decodeSnapshot(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}

func (c *Collection[T]) decodeSnapshot(snap *firestore.DocumentSnapshot) (T, error) {
	if c.decode == nil {
		var value T
		if err := snap.DataTo(&value); err != nil {
			return value, fmt.Errorf("firestore: decode %s/%s: %w", c.name, snap.Ref.ID, err)
		}
		return value, nil
	}
	value, err := c.decode(snap)
	if err != nil {
		return value, fmt.Errorf("firestore: decode %s/%s: %w", c.name, snap.Ref.ID, err)
	}
	return value, nil
}

func (c *Collection[T]) op(action string) string {
	return c.name + "." + action
}
