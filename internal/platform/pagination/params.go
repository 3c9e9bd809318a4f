package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	domain "github.com/foodhub/api/internal/domain"
)

const (
	// DefaultPageSize is used when the client omits pageSize.
	DefaultPageSize = 20
	// DefaultMaxPageSize caps pageSize to prevent unbounded queries.
	DefaultMaxPageSize = 100
)

// Options control how Parse behaves for a given route.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid pageSize")
	ErrInvalidPageToken = errors.New("pagination: invalid pageToken")
)

// FromRequest parses pageSize and pageToken from the request query string.
func FromRequest(r *http.Request, opts Options) (domain.Pagination, error) {
	if r == nil {
		return domain.Pagination{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse validates the page size and token. The token is checked eagerly so malformed input
// fails before any query runs.
func Parse(values url.Values, opts Options) (domain.Pagination, error) {
	size, err := parsePageSize(values.Get("pageSize"), opts)
	if err != nil {
		return domain.Pagination{}, err
	}
	token := strings.TrimSpace(values.Get("pageToken"))
	if _, err := DecodeToken(token); err != nil {
		return domain.Pagination{}, err
	}
	return domain.Pagination{PageSize: size, PageToken: token}, nil
}

// Normalize clamps a pagination request coming from code rather than a query string.
func Normalize(p domain.Pagination, opts Options) domain.Pagination {
	max := opts.MaxPageSize
	if max <= 0 {
		max = DefaultMaxPageSize
	}
	switch {
	case p.PageSize <= 0:
		p.PageSize = defaultSize(opts, max)
	case p.PageSize > max:
		p.PageSize = max
	}
	return p
}

func parsePageSize(raw string, opts Options) (int, error) {
	max := opts.MaxPageSize
	if max <= 0 {
		max = DefaultMaxPageSize
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultSize(opts, max), nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", ErrInvalidPageSize)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidPageSize)
	}
	if value > max {
		value = max
	}
	return value, nil
}

func defaultSize(opts Options, max int) int {
	size := opts.DefaultPageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > max {
		size = max
	}
	return size
}
