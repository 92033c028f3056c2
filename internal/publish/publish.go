package publish

import (
	"context"
	"errors"
	"time"

	"nuclight.org/crossposter/internal/approval"
)

var (
	ErrEmptyPost        = errors.New("post has no text and no media")
	ErrUnsupportedMedia = errors.New("media type not supported by platform")
)

// Attachment is a media file already downloaded from the inbound channel.
type Attachment struct {
	Kind     approval.MediaKind
	MimeType string
	Data     []byte
}

// Post is the platform-neutral payload handed to every publisher.
type Post struct {
	Text  string
	Media []Attachment
}

func (p *Post) IsEmpty() bool {
	return p.Text == "" && len(p.Media) == 0
}

// Publisher delivers a post to one external platform.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, post *Post) error
}

// Result is the outcome of one publisher call within a dispatch.
type Result struct {
	Platform string
	Err      error
	Duration time.Duration
}

func (r Result) OK() bool {
	return r.Err == nil
}
