package wiki

import (
	"context"
	"errors"
	"testing"
	"time"
)

// countingRemote fails GetPage a fixed number of times before succeeding and
// counts every call.
type countingRemote struct {
	getPageCalls int
	failuresLeft int
	updateCalls  int
}

func (c *countingRemote) FindPageByTitle(context.Context, string, string) (*Page, error) {
	return nil, ErrNotFound
}

func (c *countingRemote) CreatePage(context.Context, string, string, string) (*Page, error) {
	return &Page{ID: "1", Version: 1}, nil
}

func (c *countingRemote) UpdatePage(context.Context, string, string, string, int) (*Page, error) {
	c.updateCalls++
	return nil, errors.New("write failed")
}

func (c *countingRemote) GetPage(context.Context, string, []string) (*Page, error) {
	c.getPageCalls++
	if c.failuresLeft > 0 {
		c.failuresLeft--
		return nil, errors.New("transient failure")
	}
	return &Page{ID: "42", Version: 7}, nil
}

func (c *countingRemote) GetChildren(context.Context, string) ([]*Page, error) {
	return nil, nil
}

func (c *countingRemote) DownloadAttachment(context.Context, AttachmentRef) ([]byte, error) {
	return []byte("data"), nil
}

func quickRetrier(remote Remote, attempts int) *ReadRetrier {
	r := NewReadRetrier(remote, attempts, time.Second)
	r.backoff = time.Millisecond
	return r
}

func TestRetrierRetriesTransientReadFailure(t *testing.T) {
	remote := &countingRemote{failuresLeft: 2}
	r := quickRetrier(remote, 3)

	page, err := r.GetPage(context.Background(), "42", nil)
	if err != nil {
		t.Fatalf("GetPage should succeed on the third attempt: %v", err)
	}
	if page.ID != "42" {
		t.Errorf("Page.ID = %s, want 42", page.ID)
	}
	if remote.getPageCalls != 3 {
		t.Errorf("Expected 3 calls, got %d", remote.getPageCalls)
	}
}

func TestRetrierGivesUpAfterAttempts(t *testing.T) {
	remote := &countingRemote{failuresLeft: 10}
	r := quickRetrier(remote, 3)

	_, err := r.GetPage(context.Background(), "42", nil)
	if err == nil {
		t.Fatal("Expected failure after exhausting attempts")
	}
	if remote.getPageCalls != 3 {
		t.Errorf("Expected exactly 3 calls, got %d", remote.getPageCalls)
	}
}

func TestRetrierDoesNotRetryNotFound(t *testing.T) {
	remote := &countingRemote{}
	r := quickRetrier(remote, 3)

	_, err := r.FindPageByTitle(context.Background(), "Missing", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	// FindPageByTitle always returns ErrNotFound here; a retry would be a bug
	// because absence is a definitive answer.
	if remote.getPageCalls != 0 {
		t.Errorf("GetPage should be untouched, got %d calls", remote.getPageCalls)
	}
}

func TestRetrierStopsOnCancelledContext(t *testing.T) {
	remote := &countingRemote{failuresLeft: 10}
	r := quickRetrier(remote, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.GetPage(ctx, "42", nil)
	if err == nil {
		t.Fatal("Expected an error with a cancelled context")
	}
	if remote.getPageCalls > 1 {
		t.Errorf("Cancelled context should stop retries, got %d calls", remote.getPageCalls)
	}
}

func TestRetrierWritesPassThroughUnretried(t *testing.T) {
	remote := &countingRemote{}
	r := quickRetrier(remote, 3)

	_, err := r.UpdatePage(context.Background(), "42", "T", "<p>x</p>", 2)
	if err == nil {
		t.Fatal("Expected write failure to propagate")
	}
	if remote.updateCalls != 1 {
		t.Errorf("Writes must not retry, got %d calls", remote.updateCalls)
	}
}

func TestReadWriteErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")

	readErr := &ReadError{Op: "getPage", Ref: "42", Err: inner}
	if !errors.Is(readErr, inner) {
		t.Error("ReadError should unwrap to the inner error")
	}

	writeErr := &WriteError{Op: "createPage", Ref: "T", Err: inner}
	if !errors.Is(writeErr, inner) {
		t.Error("WriteError should unwrap to the inner error")
	}
}
