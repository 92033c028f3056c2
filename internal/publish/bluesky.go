package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"nuclight.org/crossposter/internal/approval"
)

const (
	DefaultBlueskyPDS = "https://bsky.social"
	blueskyMaxRunes   = 300
	blueskyMaxImages  = 4
)

type BlueskyConfig struct {
	Identifier string
	Password   string // app password
	PDS        string
	Client     *http.Client
	Now        func() time.Time
}

// Bluesky publishes app.bsky.feed.post records over XRPC. The session is
// created on first use and re-created once when the server reports it expired.
type Bluesky struct {
	identifier string
	password   string
	pds        string
	api        apiClient
	now        func() time.Time

	mu      sync.Mutex
	session *blueskySession
}

type blueskySession struct {
	AccessJwt string `json:"accessJwt"`
	DID       string `json:"did"`
	Handle    string `json:"handle"`
}

func NewBluesky(cfg BlueskyConfig) *Bluesky {
	if cfg.PDS == "" {
		cfg.PDS = DefaultBlueskyPDS
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Bluesky{
		identifier: cfg.Identifier,
		password:   cfg.Password,
		pds:        strings.TrimRight(cfg.PDS, "/"),
		api:        apiClient{platform: "bluesky", http: cfg.Client},
		now:        cfg.Now,
	}
}

func (b *Bluesky) Name() string {
	return "bluesky"
}

func (b *Bluesky) Publish(ctx context.Context, post *Post) error {
	err := b.publish(ctx, post)
	if isExpiredToken(err) {
		b.resetSession()
		err = b.publish(ctx, post)
	}
	return err
}

func (b *Bluesky) publish(ctx context.Context, post *Post) error {
	sess, err := b.login(ctx)
	if err != nil {
		return err
	}

	record := map[string]any{
		"$type":     "app.bsky.feed.post",
		"text":      truncateRunes(post.Text, blueskyMaxRunes),
		"createdAt": b.now().UTC().Format(time.RFC3339),
	}
	if len(post.Media) > 0 {
		embed, err := b.embed(ctx, sess, post.Media)
		if err != nil {
			return err
		}
		record["embed"] = embed
	}

	req := map[string]any{
		"repo":       sess.DID,
		"collection": "app.bsky.feed.post",
		"record":     record,
	}
	var resp struct {
		URI string `json:"uri"`
		CID string `json:"cid"`
	}
	if err := b.api.doJSON(ctx, http.MethodPost, b.xrpc("com.atproto.repo.createRecord"), bearer(sess.AccessJwt), req, &resp); err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

// embed uploads attachments and builds the post embed. A video takes the
// whole embed; photos are grouped up to the platform limit.
func (b *Bluesky) embed(ctx context.Context, sess *blueskySession, media []Attachment) (map[string]any, error) {
	for _, m := range media {
		if m.Kind == approval.MediaVideo || m.Kind == approval.MediaAnimation {
			blob, err := b.uploadBlob(ctx, sess, m)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"$type": "app.bsky.embed.video",
				"video": blob,
			}, nil
		}
	}

	var images []map[string]any
	for _, m := range media {
		if len(images) == blueskyMaxImages {
			break
		}
		blob, err := b.uploadBlob(ctx, sess, m)
		if err != nil {
			return nil, err
		}
		images = append(images, map[string]any{"alt": "", "image": blob})
	}
	return map[string]any{
		"$type":  "app.bsky.embed.images",
		"images": images,
	}, nil
}

func (b *Bluesky) uploadBlob(ctx context.Context, sess *blueskySession, m Attachment) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.xrpc("com.atproto.repo.uploadBlob"), bytes.NewReader(m.Data))
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+sess.AccessJwt)
	req.Header.Set("Content-Type", mimeOrDefault(m))

	var resp struct {
		Blob json.RawMessage `json:"blob"`
	}
	if err := b.api.do(req, &resp); err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}
	if len(resp.Blob) == 0 {
		return nil, errors.New("upload blob: empty blob in response")
	}
	return resp.Blob, nil
}

func (b *Bluesky) login(ctx context.Context) (*blueskySession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != nil {
		return b.session, nil
	}

	var sess blueskySession
	req := map[string]string{"identifier": b.identifier, "password": b.password}
	if err := b.api.doJSON(ctx, http.MethodPost, b.xrpc("com.atproto.server.createSession"), nil, req, &sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	b.session = &sess
	return b.session, nil
}

func (b *Bluesky) resetSession() {
	b.mu.Lock()
	b.session = nil
	b.mu.Unlock()
}

func (b *Bluesky) xrpc(method string) string {
	return b.pds + "/xrpc/" + method
}

func isExpiredToken(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || strings.Contains(apiErr.Body, "ExpiredToken")
}

func mimeOrDefault(m Attachment) string {
	if m.MimeType != "" {
		return m.MimeType
	}
	switch m.Kind {
	case approval.MediaVideo, approval.MediaAnimation:
		return "video/mp4"
	default:
		return "image/jpeg"
	}
}
