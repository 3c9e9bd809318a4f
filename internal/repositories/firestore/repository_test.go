package firestore

import (
	"testing"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/foodhub/api/internal/domain"
	"github.com/foodhub/api/internal/platform/pagination"
)

func TestAppendTokenRingBuffer(t *testing.T) {
	tokens := []string{"t1", "t2", "t3"}

	assert.Equal(t, []string{"t1", "t3", "t2"}, appendToken(tokens, "t2", 10), "re-registering moves the token to the newest slot")
	assert.Equal(t, []string{"t2", "t3", "t4"}, appendToken(tokens, "t4", 3), "the oldest token is evicted")
	assert.Equal(t, []string{"t1", "t2", "t3"}, tokens, "input must not be mutated")
}

func TestSameDriver(t *testing.T) {
	a, b := "d1", "d1"
	c := "d2"
	assert.True(t, sameDriver(nil, nil))
	assert.True(t, sameDriver(&a, &b))
	assert.False(t, sameDriver(&a, &c))
	assert.False(t, sameDriver(&a, nil))
}

func TestPageTokensRoundTrip(t *testing.T) {
	page := toCursorPage([]int{1, 2}, "doc_9")
	require.NotEmpty(t, page.NextPageToken)

	cursor, err := pageCursor(domain.Pagination{PageToken: page.NextPageToken})
	require.NoError(t, err)
	assert.Equal(t, "doc_9", cursor)

	assert.Empty(t, toCursorPage([]int{1}, "").NextPageToken)

	_, err = pageCursor(domain.Pagination{PageToken: "%%%"})
	assert.ErrorIs(t, err, pagination.ErrInvalidPageToken)
}

func TestAggregateValues(t *testing.T) {
	result := firestore.AggregationResult{
		"count":   &firestorepb.Value{ValueType: &firestorepb.Value_IntegerValue{IntegerValue: 3}},
		"average": &firestorepb.Value{ValueType: &firestorepb.Value_DoubleValue{DoubleValue: 4.333}},
		"empty":   &firestorepb.Value{ValueType: &firestorepb.Value_NullValue{}},
	}

	count, err := aggregateInt(result, "count")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	avg, err := aggregateFloat(result, "average")
	require.NoError(t, err)
	assert.InDelta(t, 4.333, avg, 1e-9)

	empty, err := aggregateFloat(result, "empty")
	require.NoError(t, err)
	assert.Zero(t, empty)

	_, err = aggregateInt(result, "missing")
	assert.Error(t, err)
}

func TestFromDomainOrderCopiesSnapshots(t *testing.T) {
	driver := "drv_1"
	order := domain.Order{
		ID:          "ord_1",
		Number:      7,
		VendorID:    "v1",
		DriverID:    &driver,
		Lines:       []domain.OrderLine{{ItemID: "itm_a", Name: "Burger", Quantity: 2, UnitPrice: 1000, LineTotal: 2000}},
		Subtotal:    2000,
		DeliveryFee: 500,
		Total:       2500,
		Status:      domain.OrderStatusOutForDelivery,
		StatusHistory: []domain.OrderStatusChange{
			{To: domain.OrderStatusPending, ActorID: "c1", ActorType: domain.UserTypeCustomer},
		},
	}
	doc := fromDomainOrder(order)
	assert.Equal(t, "out_for_delivery", doc.Status)
	assert.Equal(t, int64(2500), doc.Total)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, int64(2000), doc.Lines[0].LineTotal)
	require.NotNil(t, doc.DriverID)
	driver = "changed"
	assert.Equal(t, "drv_1", *doc.DriverID, "document must not alias the order")
}
