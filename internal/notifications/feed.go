package notifications

import (
	"context"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/neurocare-backend/pkg/errors"
	"github.com/angelmondragon/neurocare-backend/pkg/pagination"
	"github.com/google/uuid"
)

const defaultFeedLimit = 50

// ListParams configures pagination for the feed.
type ListParams struct {
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []Notification `json:"items"`
	Cursor string         `json:"cursor"`
}

// Feed keeps the most recent notifications of one session, newest first.
type Feed struct {
	mu    sync.Mutex
	items []Notification
	limit int
	now   func() time.Time
}

// NewFeed builds a feed retaining at most limit entries.
func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	return &Feed{limit: limit, now: time.Now}
}

func (f *Feed) Notify(_ context.Context, n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = f.now().UTC()
	}
	f.items = append([]Notification{n}, f.items...)
	if len(f.items) > f.limit {
		f.items = f.items[:f.limit]
	}
}

func (f *Feed) List(_ context.Context, params ListParams) (*ListResult, error) {
	f.mu.Lock()
	snapshot := make([]Notification, 0, len(f.items))
	for _, n := range f.items {
		if params.UnreadOnly && n.ReadAt != nil {
			continue
		}
		snapshot = append(snapshot, n)
	}
	f.mu.Unlock()

	page, next, err := pagination.Page(snapshot, pagination.Params{Limit: params.Limit, Cursor: params.Cursor})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return &ListResult{Items: page, Cursor: next}, nil
}

func (f *Feed) MarkRead(_ context.Context, notificationID uuid.UUID) error {
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID != notificationID {
			continue
		}
		if f.items[i].ReadAt == nil {
			now := f.now().UTC()
			f.items[i].ReadAt = &now
		}
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
}

// MarkAllRead returns how many notifications changed.
func (f *Feed) MarkAllRead(context.Context) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now().UTC()
	count := 0
	for i := range f.items {
		if f.items[i].ReadAt == nil {
			f.items[i].ReadAt = &now
			count++
		}
	}
	return count
}

func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}
