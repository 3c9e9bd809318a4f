package firestore

import (
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"

	domain "github.com/foodhub/api/internal/domain"
	"github.com/foodhub/api/internal/platform/pagination"
)

// pageCursor extracts the document ID a page token points after.
func pageCursor(pager domain.Pagination) (string, error) {
	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return "", err
	}
	return cursor.After, nil
}

func toCursorPage[T any](items []T, next string) domain.CursorPage[T] {
	return domain.CursorPage[T]{Items: items, NextPageToken: pagination.EncodeToken(pagination.Cursor{After: next})}
}

func cloneOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneOptionalInt(value *int64) *int64 {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := value.UTC()
	return &v
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return append([]string(nil), values...)
}

// aggregateInt reads an integer produced by a count aggregation.
func aggregateInt(result firestore.AggregationResult, alias string) (int64, error) {
	raw, ok := result[alias]
	if !ok {
		return 0, fmt.Errorf("aggregation %q missing from result", alias)
	}
	value, ok := raw.(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("aggregation %q has unexpected type %T", alias, raw)
	}
	return value.GetIntegerValue(), nil
}

// aggregateFloat reads a number produced by an avg aggregation. An average over no documents
// is null and reads as zero.
func aggregateFloat(result firestore.AggregationResult, alias string) (float64, error) {
	raw, ok := result[alias]
	if !ok {
		return 0, fmt.Errorf("aggregation %q missing from result", alias)
	}
	value, ok := raw.(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("aggregation %q has unexpected type %T", alias, raw)
	}
	switch v := value.GetValueType().(type) {
	case *firestorepb.Value_DoubleValue:
		return v.DoubleValue, nil
	case *firestorepb.Value_IntegerValue:
		return float64(v.IntegerValue), nil
	default:
		return 0, nil
	}
}
