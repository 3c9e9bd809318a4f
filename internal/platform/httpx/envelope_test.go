package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestWriteErrorUsesFailForClientErrors(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	rec := httptest.NewRecorder()

	WriteError(ctx, rec, NewError(http.StatusNotFound, "order not found\n"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != StatusFail || body.Message != "order not found" || body.RequestID != "req-1" {
		t.Fatalf("unexpected envelope %+v", body)
	}
}

func TestWriteErrorUsesErrorForServerErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), rec, NewError(0, "boom"))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusInternalServerError || body["status"] != StatusError {
		t.Fatalf("unexpected response %d %v", rec.Code, body)
	}
	if _, ok := body["data"]; ok {
		t.Fatalf("data should be omitted when empty")
	}
}

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, http.StatusCreated, "", map[string]int{"total": 40})

	var body struct {
		Status  string         `json:"status"`
		Message string         `json:"message"`
		Data    map[string]int `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusCreated || body.Status != StatusSuccess || body.Message != "ok" || body.Data["total"] != 40 {
		t.Fatalf("unexpected envelope %+v", body)
	}
}
