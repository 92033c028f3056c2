package publish

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type fakePublisher struct {
	name  string
	err   error
	panic bool
	block bool
	calls atomic.Int32
}

func (f *fakePublisher) Name() string { return f.name }

func (f *fakePublisher) Publish(ctx context.Context, post *Post) error {
	f.calls.Add(1)
	if f.panic {
		panic("boom")
	}
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcher_IsolatesFailures(t *testing.T) {
	errDown := errors.New("platform down")
	ok1 := &fakePublisher{name: "one"}
	bad := &fakePublisher{name: "two", err: errDown}
	crash := &fakePublisher{name: "three", panic: true}
	ok2 := &fakePublisher{name: "four"}

	d := NewDispatcher([]Publisher{ok1, bad, crash, ok2}, time.Second, discardLogger())
	res := d.Dispatch(context.Background(), &Post{Text: "hello"})

	if res.ID == "" {
		t.Error("expected dispatch ID to be set")
	}
	if len(res.Results) != 4 {
		t.Fatalf("got %d results, want 4", len(res.Results))
	}
	for i, want := range []string{"one", "two", "three", "four"} {
		if res.Results[i].Platform != want {
			t.Errorf("result %d platform = %s, want %s", i, res.Results[i].Platform, want)
		}
	}
	if !res.Results[0].OK() || !res.Results[3].OK() {
		t.Error("expected healthy publishers to succeed")
	}
	if !errors.Is(res.Results[1].Err, errDown) {
		t.Errorf("result 1 err = %v, want %v", res.Results[1].Err, errDown)
	}
	if res.Results[2].Err == nil {
		t.Error("expected panicking publisher to report an error")
	}
	if res.Failed() != 2 {
		t.Errorf("Failed() = %d, want 2", res.Failed())
	}
	for _, p := range []*fakePublisher{ok1, bad, crash, ok2} {
		if p.calls.Load() != 1 {
			t.Errorf("%s called %d times, want 1", p.name, p.calls.Load())
		}
	}
}

func TestDispatcher_Timeout(t *testing.T) {
	slow := &fakePublisher{name: "slow", block: true}
	fast := &fakePublisher{name: "fast"}

	d := NewDispatcher([]Publisher{slow, fast}, 20*time.Millisecond, discardLogger())
	res := d.Dispatch(context.Background(), &Post{Text: "hello"})

	if !errors.Is(res.Results[0].Err, context.DeadlineExceeded) {
		t.Errorf("slow err = %v, want deadline exceeded", res.Results[0].Err)
	}
	if !res.Results[1].OK() {
		t.Errorf("fast err = %v, want nil", res.Results[1].Err)
	}
}

func TestDispatcher_EmptyPost(t *testing.T) {
	p := &fakePublisher{name: "p"}
	d := NewDispatcher([]Publisher{p}, time.Second, discardLogger())

	res := d.Dispatch(context.Background(), &Post{})
	if !errors.Is(res.Results[0].Err, ErrEmptyPost) {
		t.Errorf("err = %v, want ErrEmptyPost", res.Results[0].Err)
	}
	if p.calls.Load() != 0 {
		t.Error("publisher should not be called for an empty post")
	}
}

func TestDispatcher_NoPublishers(t *testing.T) {
	d := NewDispatcher(nil, 0, discardLogger())
	res := d.Dispatch(context.Background(), &Post{Text: "x"})
	if len(res.Results) != 0 {
		t.Errorf("got %d results, want 0", len(res.Results))
	}
	if len(d.Publishers()) != 0 {
		t.Errorf("Publishers() = %v, want empty", d.Publishers())
	}
}

func TestDispatcher_SummaryReportsFirstError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ok := &fakePublisher{name: "one"}
	bad := &fakePublisher{name: "two", err: errors.New("quota exceeded")}
	d := NewDispatcher([]Publisher{ok, bad}, time.Second, logger)

	res := d.Dispatch(context.Background(), &Post{Text: "hello"})
	if !res.Results[0].OK() || res.Results[1].OK() {
		t.Fatalf("unexpected results: %+v", res.Results)
	}
	if ok.calls.Load() != 1 {
		t.Errorf("healthy publisher called %d times, want 1", ok.calls.Load())
	}

	var summary string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "dispatch finished") {
			summary = line
		}
	}
	if !strings.Contains(summary, "level=WARN") || !strings.Contains(summary, "quota exceeded") {
		t.Errorf("unexpected summary line: %q", summary)
	}
}

func TestDispatcher_SummaryInfoWhenAllSucceed(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	d := NewDispatcher([]Publisher{&fakePublisher{name: "one"}}, time.Second, logger)
	d.Dispatch(context.Background(), &Post{Text: "hello"})

	if !strings.Contains(buf.String(), "level=INFO msg=\"dispatch finished\"") {
		t.Errorf("expected info summary, got:\n%s", buf.String())
	}
}
