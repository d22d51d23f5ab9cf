package wiki

import (
	"context"
	"errors"
	"time"
)

// ReadRetrier wraps a Remote so that idempotent reads carry an independent
// timeout and a small bounded retry count. Mutating calls pass through
// untouched: retrying a create or update risks duplicate pages and double
// version bumps.
type ReadRetrier struct {
	Remote

	attempts int
	timeout  time.Duration
	backoff  time.Duration
}

// NewReadRetrier wraps remote. attempts < 1 is treated as 1; timeout <= 0
// disables the per-call deadline.
func NewReadRetrier(remote Remote, attempts int, timeout time.Duration) *ReadRetrier {
	if attempts < 1 {
		attempts = 1
	}
	return &ReadRetrier{
		Remote:   remote,
		attempts: attempts,
		timeout:  timeout,
		backoff:  250 * time.Millisecond,
	}
}

func (r *ReadRetrier) do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.backoff * time.Duration(attempt)):
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if r.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		}
		err = fn(callCtx)
		if cancel != nil {
			cancel()
		}

		if err == nil || errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (r *ReadRetrier) FindPageByTitle(ctx context.Context, title, parentID string) (*Page, error) {
	var page *Page
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		page, err = r.Remote.FindPageByTitle(ctx, title, parentID)
		return err
	})
	return page, err
}

func (r *ReadRetrier) GetPage(ctx context.Context, id string, expand []string) (*Page, error) {
	var page *Page
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		page, err = r.Remote.GetPage(ctx, id, expand)
		return err
	})
	return page, err
}

func (r *ReadRetrier) GetChildren(ctx context.Context, parentID string) ([]*Page, error) {
	var pages []*Page
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		pages, err = r.Remote.GetChildren(ctx, parentID)
		return err
	})
	return pages, err
}

func (r *ReadRetrier) DownloadAttachment(ctx context.Context, ref AttachmentRef) ([]byte, error) {
	var data []byte
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		data, err = r.Remote.DownloadAttachment(ctx, ref)
		return err
	})
	return data, err
}
