// Package paging follows continuation tokens of list APIs until exhaustion.
package paging

import (
	"context"
	"fmt"
	"time"

	"github.com/theakshaypant/today/internal/core"
)

// QueryFunc fetches one page. An empty next token ends the sequence.
type QueryFunc[T any] func(ctx context.Context, pageToken string) (items []T, next string, err error)

type options struct {
	maxPages    int
	callTimeout time.Duration
	op          string
}

// Option tunes FetchAll.
type Option func(*options)

// WithMaxPages caps the number of calls. Zero means unlimited.
func WithMaxPages(n int) Option {
	return func(o *options) { o.maxPages = n }
}

// WithCallTimeout bounds each individual page call.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) { o.callTimeout = d }
}

// WithOp names the listing in returned errors.
func WithOp(op string) Option {
	return func(o *options) { o.op = op }
}

// FetchAll calls query with "" and then with each returned token until one
// comes back empty, concatenating items in page order.
func FetchAll[T any](ctx context.Context, query QueryFunc[T], opts ...Option) ([]T, error) {
	o := options{op: "list"}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		all   []T
		token string
		seen  = make(map[string]struct{})
	)
	for page := 1; ; page++ {
		if o.maxPages > 0 && page > o.maxPages {
			return nil, core.Wrap(core.KindSyncPagingFailed, o.op,
				fmt.Errorf("more than %d pages", o.maxPages))
		}

		items, next, err := call(ctx, query, token, o.callTimeout)
		if err != nil {
			return nil, core.Wrap(core.KindSyncListFailed, fmt.Sprintf("%s page %d", o.op, page), err)
		}
		all = append(all, items...)

		if next == "" {
			return all, nil
		}
		if _, dup := seen[next]; dup {
			return nil, core.Wrap(core.KindSyncPagingFailed, o.op,
				fmt.Errorf("continuation token repeated after page %d", page))
		}
		seen[next] = struct{}{}
		token = next
	}
}

func call[T any](ctx context.Context, query QueryFunc[T], token string, timeout time.Duration) ([]T, string, error) {
	if timeout <= 0 {
		return query(ctx, token)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return query(ctx, token)
}
