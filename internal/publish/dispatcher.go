package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const DefaultTimeout = 60 * time.Second

// Dispatch collects the results of one fan-out, in publisher order.
type Dispatch struct {
	ID        string
	StartedAt time.Time
	Results   []Result
}

// Failed returns the number of publishers that reported an error.
func (d *Dispatch) Failed() int {
	n := 0
	for _, r := range d.Results {
		if !r.OK() {
			n++
		}
	}
	return n
}

// Dispatcher fans a post out to every configured publisher in parallel.
// Publishers are isolated from each other: an error or panic in one never
// prevents the others from running.
type Dispatcher struct {
	publishers []Publisher
	timeout    time.Duration
	logger     *slog.Logger
}

func NewDispatcher(publishers []Publisher, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		publishers: publishers,
		timeout:    timeout,
		logger:     logger,
	}
}

// Publishers returns the platform names in dispatch order.
func (d *Dispatcher) Publishers() []string {
	names := make([]string, 0, len(d.publishers))
	for _, p := range d.publishers {
		names = append(names, p.Name())
	}
	return names
}

// Dispatch publishes post to all platforms and waits for every call to finish
// or for the timeout to elapse.
func (d *Dispatcher) Dispatch(ctx context.Context, post *Post) *Dispatch {
	dispatch := &Dispatch{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Results:   make([]Result, len(d.publishers)),
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	// The group has no context, so one failure never cancels the others.
	var g errgroup.Group
	for i, p := range d.publishers {
		g.Go(func() error {
			res := d.publishOne(ctx, dispatch.ID, p, post)
			dispatch.Results[i] = res
			return res.Err
		})
	}

	level := slog.LevelInfo
	firstErr := g.Wait()
	if firstErr != nil {
		level = slog.LevelWarn
	}

	d.logger.Log(ctx, level, "dispatch finished",
		"dispatch_id", dispatch.ID,
		"platforms", len(dispatch.Results),
		"failed", dispatch.Failed(),
		"first_error", firstErr,
		"duration", time.Since(dispatch.StartedAt).Round(time.Millisecond),
	)
	return dispatch
}

func (d *Dispatcher) publishOne(ctx context.Context, dispatchID string, p Publisher, post *Post) (res Result) {
	start := time.Now()
	res.Platform = p.Name()

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("publisher panicked: %v", r)
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			d.logger.Error("publish failed",
				"dispatch_id", dispatchID,
				"platform", res.Platform,
				"error", res.Err,
			)
			return
		}
		d.logger.Info("published",
			"dispatch_id", dispatchID,
			"platform", res.Platform,
			"duration", res.Duration.Round(time.Millisecond),
		)
	}()

	if post.IsEmpty() {
		res.Err = ErrEmptyPost
		return res
	}
	res.Err = p.Publish(ctx, post)
	return res
}
