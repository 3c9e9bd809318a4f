package textutil

import (
	"reflect"
	"testing"
	"time"
)

func TestStringifyMap(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	input := map[string]any{
		" orderId ": " ord_1 ",
		"number":    int64(42),
		"pickup":    false,
		"at":        at,
		"skip":      nil,
		" ":         "ignored",
	}
	expected := map[string]string{
		"orderId": "ord_1",
		"number":  "42",
		"pickup":  "false",
		"at":      "2025-01-02T03:04:05Z",
	}
	if actual := StringifyMap(input); !reflect.DeepEqual(actual, expected) {
		t.Fatalf("expected %#v got %#v", expected, actual)
	}
	if StringifyMap(map[string]any{"": "x"}) != nil {
		t.Fatalf("expected nil for map without usable keys")
	}
}
