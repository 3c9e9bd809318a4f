package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/foodhub/api/internal/domain"
	"github.com/foodhub/api/internal/platform/auth"
	"github.com/foodhub/api/internal/platform/httpx"
	"github.com/foodhub/api/internal/services"
)

const (
	maxBodySize     = 64 * 1024
	maxPageSize     = 100
	defaultPageSize = 20
)

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body exceeds allowed size")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxBodySize
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeJSON reads and decodes the request body into dst. When optional is set an empty body
// leaves dst untouched.
func decodeJSON(r *http.Request, dst any, optional bool) error {
	body, err := readLimitedBody(r, maxBodySize)
	if err != nil {
		if optional && errors.Is(err, errEmptyBody) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("invalid JSON payload: %w", err)
	}
	return nil
}

// writeDecodeError reports a body decoding failure. It returns false when err is nil.
func writeDecodeError(ctx context.Context, w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errBodyTooLarge) {
		httpx.WriteError(ctx, w, httpx.NewError(http.StatusRequestEntityTooLarge, err.Error()))
		return true
	}
	writeBadRequest(ctx, w, err.Error())
	return true
}

// callerFromRequest converts the authenticated identity into a service caller, writing a 401
// when the request carries none.
func callerFromRequest(w http.ResponseWriter, r *http.Request) (services.Caller, bool) {
	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError(http.StatusUnauthorized, "authentication required"))
		return services.Caller{}, false
	}
	return services.Caller{ID: identity.UID, Type: domain.UserType(identity.Type)}, true
}

func pathParam(r *http.Request, name string) string {
	return strings.TrimSpace(chi.URLParam(r, name))
}

func paginationFromQuery(r *http.Request) (services.Pagination, error) {
	query := r.URL.Query()
	pager := services.Pagination{
		PageSize:  defaultPageSize,
		PageToken: strings.TrimSpace(query.Get("pageToken")),
	}
	if raw := strings.TrimSpace(query.Get("pageSize")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return services.Pagination{}, errors.New("pageSize must be an integer")
		}
		switch {
		case size <= 0:
		case size > maxPageSize:
			pager.PageSize = maxPageSize
		default:
			pager.PageSize = size
		}
	}
	return pager, nil
}

// parseStatuses accepts repeated or comma separated status values.
func parseStatuses(values []string) ([]services.OrderStatus, error) {
	var statuses []services.OrderStatus
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			status := domain.OrderStatus(part)
			if !status.Valid() {
				return nil, fmt.Errorf("unknown order status %q", part)
			}
			statuses = append(statuses, status)
		}
	}
	return statuses, nil
}
