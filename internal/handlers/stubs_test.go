package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"

	domain "github.com/foodhub/api/internal/domain"
	"github.com/foodhub/api/internal/platform/auth"
	"github.com/foodhub/api/internal/services"
)

// tokenVerifier resolves the bearer token to a fixed set of test identities.
type tokenVerifier map[string]*firebaseauth.Token

func (v tokenVerifier) VerifyIDToken(_ context.Context, token string) (*firebaseauth.Token, error) {
	if decoded, ok := v[token]; ok {
		return decoded, nil
	}
	return nil, errors.New("unknown token")
}

func testAuthenticator() *auth.Authenticator {
	return auth.NewAuthenticator(tokenVerifier{
		"customer": {UID: "u1", Claims: map[string]any{"type": "user"}},
		"vendor":   {UID: "owner1", Claims: map[string]any{"type": "vendor"}},
		"driver":   {UID: "d1", Claims: map[string]any{"type": "delivery"}},
		"admin":    {UID: "a1", Claims: map[string]any{"type": "admin"}},
	})
}

type envelope struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"requestId"`
}

func serve(t *testing.T, h http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var env envelope
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
			t.Fatalf("response is not an envelope: %v (%s)", err, rr.Body.String())
		}
	}
	return rr, env
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data: %v (%s)", err, string(env.Data))
	}
}

type stubOrderService struct {
	preview       func(context.Context, services.CreateOrderCommand) (services.PricingResult, error)
	create        func(context.Context, services.CreateOrderCommand) (services.OrderDetails, error)
	get           func(context.Context, services.Caller, string) (services.OrderDetails, error)
	list          func(context.Context, services.Caller, services.OrderListFilter) (domain.CursorPage[services.Order], error)
	listAvailable func(context.Context, services.Caller, services.Pagination) (domain.CursorPage[services.Order], error)
	transition    func(context.Context, services.TransitionCommand) (services.OrderDetails, error)
}

func (s *stubOrderService) Preview(ctx context.Context, cmd services.CreateOrderCommand) (services.PricingResult, error) {
	if s.preview == nil {
		return services.PricingResult{}, errors.New("not implemented")
	}
	return s.preview(ctx, cmd)
}

func (s *stubOrderService) Create(ctx context.Context, cmd services.CreateOrderCommand) (services.OrderDetails, error) {
	if s.create == nil {
		return services.OrderDetails{}, errors.New("not implemented")
	}
	return s.create(ctx, cmd)
}

func (s *stubOrderService) Get(ctx context.Context, caller services.Caller, id string) (services.OrderDetails, error) {
	if s.get == nil {
		return services.OrderDetails{}, errors.New("not implemented")
	}
	return s.get(ctx, caller, id)
}

func (s *stubOrderService) List(ctx context.Context, caller services.Caller, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.list == nil {
		return domain.CursorPage[services.Order]{}, errors.New("not implemented")
	}
	return s.list(ctx, caller, filter)
}

func (s *stubOrderService) ListAvailable(ctx context.Context, caller services.Caller, pager services.Pagination) (domain.CursorPage[services.Order], error) {
	if s.listAvailable == nil {
		return domain.CursorPage[services.Order]{}, errors.New("not implemented")
	}
	return s.listAvailable(ctx, caller, pager)
}

func (s *stubOrderService) Transition(ctx context.Context, cmd services.TransitionCommand) (services.OrderDetails, error) {
	if s.transition == nil {
		return services.OrderDetails{}, errors.New("not implemented")
	}
	return s.transition(ctx, cmd)
}

type stubAddressService struct {
	create     func(context.Context, services.SaveAddressCommand) (services.Address, error)
	update     func(context.Context, services.SaveAddressCommand) (services.Address, error)
	remove     func(context.Context, services.Caller, string) error
	list       func(context.Context, services.Caller) ([]services.Address, error)
	setDefault func(context.Context, services.Caller, string) (services.Address, error)
}

func (s *stubAddressService) Create(ctx context.Context, cmd services.SaveAddressCommand) (services.Address, error) {
	return s.create(ctx, cmd)
}

func (s *stubAddressService) Update(ctx context.Context, cmd services.SaveAddressCommand) (services.Address, error) {
	return s.update(ctx, cmd)
}

func (s *stubAddressService) Delete(ctx context.Context, caller services.Caller, id string) error {
	return s.remove(ctx, caller, id)
}

func (s *stubAddressService) List(ctx context.Context, caller services.Caller) ([]services.Address, error) {
	return s.list(ctx, caller)
}

func (s *stubAddressService) SetDefault(ctx context.Context, caller services.Caller, id string) (services.Address, error) {
	return s.setDefault(ctx, caller, id)
}

type stubUserService struct {
	get      func(context.Context, services.Caller) (services.User, error)
	register func(context.Context, services.Caller, string) ([]string, error)
	remove   func(context.Context, services.Caller, string) error
}

func (s *stubUserService) Get(ctx context.Context, caller services.Caller) (services.User, error) {
	return s.get(ctx, caller)
}

func (s *stubUserService) RegisterFCMToken(ctx context.Context, caller services.Caller, token string) ([]string, error) {
	return s.register(ctx, caller, token)
}

func (s *stubUserService) RemoveFCMToken(ctx context.Context, caller services.Caller, token string) error {
	return s.remove(ctx, caller, token)
}

type stubSystemService struct {
	report services.HealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.HealthReport, error) {
	return s.report, s.err
}

type stubDispatcher struct {
	broadcasts []services.BroadcastCommand
	err        error
}

func (s *stubDispatcher) Dispatch(context.Context, services.Notification) bool { return true }

func (s *stubDispatcher) Broadcast(_ context.Context, cmd services.BroadcastCommand) error {
	if s.err != nil {
		return s.err
	}
	s.broadcasts = append(s.broadcasts, cmd)
	return nil
}

func (s *stubDispatcher) Start(context.Context) {}

func (s *stubDispatcher) Close(context.Context) error { return nil }

func newJSONRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func record(h http.Handler, req *http.Request) *http.Response {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Result()
}
