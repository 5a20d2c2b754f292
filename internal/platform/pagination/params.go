package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	domain "github.com/techfy/storefront-api/internal/domain"
)

const (
	// DefaultLimit is used when the client omits limit.
	DefaultLimit = 10
	// DefaultMaxLimit caps limit to keep listing queries bounded.
	DefaultMaxLimit = 50
)

// Options control how Parse behaves for a given handler.
type Options struct {
	DefaultLimit int
	MaxLimit     int
}

// ErrInvalidPage is wrapped by every parse failure.
var ErrInvalidPage = errors.New("pagination: invalid page parameters")

// FieldError names the query parameter that failed to parse.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidPage }

// FromRequest parses page and limit from the request query string.
func FromRequest(r *http.Request, opts Options) (domain.PageQuery, error) {
	if r == nil || r.URL == nil {
		return Parse(nil, opts)
	}
	return Parse(r.URL.Query(), opts)
}

// Parse reads page (>= 1, default 1) and limit (1..MaxLimit, default DefaultLimit).
func Parse(values url.Values, opts Options) (domain.PageQuery, error) {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = DefaultMaxLimit
	}
	if opts.DefaultLimit > opts.MaxLimit {
		opts.DefaultLimit = opts.MaxLimit
	}

	page, err := parseBounded(values.Get("page"), "page", 1, 1, 0)
	if err != nil {
		return domain.PageQuery{}, err
	}
	limit, err := parseBounded(values.Get("limit"), "limit", opts.DefaultLimit, 1, opts.MaxLimit)
	if err != nil {
		return domain.PageQuery{}, err
	}
	return domain.PageQuery{Page: page, Limit: limit}, nil
}

// parseBounded parses raw as an integer in [lo, hi]; hi <= 0 means unbounded.
func parseBounded(raw, field string, fallback, lo, hi int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &FieldError{Field: field, Reason: "must be an integer"}
	}
	if value < lo {
		return 0, &FieldError{Field: field, Reason: fmt.Sprintf("must be at least %d", lo)}
	}
	if hi > 0 && value > hi {
		return 0, &FieldError{Field: field, Reason: fmt.Sprintf("must be at most %d", hi)}
	}
	return value, nil
}
