package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 20
	// MaxLimit caps how many entries a single page can carry.
	MaxLimit = 100
)

// Params holds cursor pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor points at the last entry of the previous page.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Keyed is implemented by entries that can be paged newest-first.
type Keyed interface {
	CursorKey() Cursor
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// EncodeCursor builds a base64 cursor string from the provided values.
func EncodeCursor(cursor Cursor) string {
	payload := fmt.Sprintf("%s|%s", cursor.CreatedAt.UTC().Format(time.RFC3339Nano), cursor.ID.String())
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ParseCursor decodes the cursor string back into its components. An empty value yields nil.
func ParseCursor(value string) (*Cursor, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return &Cursor{CreatedAt: t, ID: id}, nil
}

// Page slices a newest-first list after the given cursor and returns the cursor for the
// following page, empty when there is none.
func Page[T Keyed](items []T, params Params) ([]T, string, error) {
	cursor, err := ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	start := 0
	if cursor != nil {
		start = len(items)
		for i, item := range items {
			if isAfter(item.CursorKey(), *cursor) {
				start = i
				break
			}
		}
	}
	limit := NormalizeLimit(params.Limit)
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	page := items[start:end]
	next := ""
	if end < len(items) && len(page) > 0 {
		next = EncodeCursor(page[len(page)-1].CursorKey())
	}
	return page, next, nil
}

// isAfter reports whether key sorts strictly after c in newest-first order.
func isAfter(key, c Cursor) bool {
	if key.CreatedAt.Before(c.CreatedAt) {
		return true
	}
	return key.CreatedAt.Equal(c.CreatedAt) && strings.Compare(key.ID.String(), c.ID.String()) < 0
}
